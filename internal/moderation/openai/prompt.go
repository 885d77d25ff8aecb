package openai

const systemPrompt = `You are an image moderation system. You receive one still frame from a user-uploaded video.
Rate the frame on three independent categories, each a probability between 0 and 1:
- nsfw: nudity or sexual content (1 = explicit sexual activity, 0.5 = partial nudity, 0 = none)
- violence: gore, blood, weapons in use, physical harm
- scene: offensive or disturbing context that is neither nsfw nor violence (hate symbols, drugs, self-harm cues)
Score conservatively: an ordinary frame scores 0 in every category.
Respond with ONLY a JSON object: {"nsfw": number, "violence": number, "scene": number, "reason": string}.
The reason is one short sentence describing what drove the highest score.`

const userPrompt = "Score this frame."

// scoresSchema is what the model must return inside the message content.
func scoresSchema() map[string]any {
	prob := map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
	return map[string]any{
		"type":                 "object",
		"required":             []string{"nsfw", "violence", "scene"},
		"additionalProperties": false,
		"properties": map[string]any{
			"nsfw":     prob,
			"violence": prob,
			"scene":    prob,
			"reason":   map[string]any{"type": "string"},
		},
	}
}

// responseSchema covers the chat/completions envelope.
func responseSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"choices"},
		"properties": map[string]any{
			"choices": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []string{"message"},
					"properties": map[string]any{
						"message": map[string]any{
							"type":       "object",
							"required":   []string{"content"},
							"properties": map[string]any{"content": map[string]any{"type": "string"}},
						},
					},
				},
			},
		},
	}
}
