package sightengine

// responseSchema accepts success and failure bodies; scores must be probabilities.
func responseSchema() map[string]any {
	prob := map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
	probObject := map[string]any{
		"type":       "object",
		"properties": map[string]any{"prob": prob},
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"status"},
		"properties": map[string]any{
			"status": map[string]any{"type": "string", "enum": []string{"success", "failure"}},
			"nudity": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sexual_activity": prob,
					"sexual_display":  prob,
					"raw":             prob,
					"partial":         prob,
					"none":            prob,
				},
			},
			"offensive": probObject,
			"gore":      probObject,
			"error": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":    map[string]any{"type": "string"},
					"message": map[string]any{"type": "string"},
				},
			},
		},
	}
}
