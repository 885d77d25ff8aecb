package openai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var synonyms = map[string]string{
	"nudity":     "nsfw",
	"sexual":     "nsfw",
	"gore":       "violence",
	"context":    "scene",
	"disturbing": "scene",
}

var knownKeys = map[string]bool{"nsfw": true, "violence": true, "scene": true, "reason": true}

// sanitizeScores makes a model reply fit scoresSchema where the intent is unambiguous:
// - strips markdown code fences
// - renames category synonyms
// - parses numeric strings and rescales 0..100 percentages
// - drops unknown keys
func sanitizeScores(content string) ([]byte, []string, error) {
	content = stripFences(content)

	var m map[string]any
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changed := make([]string, 0, 4)
	for from, to := range synonyms {
		v, ok := m[from]
		if !ok {
			continue
		}
		if _, exists := m[to]; !exists {
			m[to] = v
		}
		delete(m, from)
		changed = append(changed, from+"->"+to)
	}

	for _, k := range []string{"nsfw", "violence", "scene"} {
		v, ok := m[k]
		if !ok {
			continue
		}
		f, isNum := v.(float64)
		if s, isStr := v.(string); isStr {
			parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
			if err != nil {
				continue
			}
			f, isNum = parsed, true
			if strings.HasSuffix(strings.TrimSpace(s), "%") {
				f /= 100
			}
			changed = append(changed, k+":string")
		}
		if !isNum {
			continue
		}
		if f > 1 && f <= 100 {
			f /= 100
			changed = append(changed, k+":percent")
		}
		m[k] = f
	}

	for k := range m {
		if !knownKeys[k] {
			delete(m, k)
			changed = append(changed, "-"+k)
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, changed, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
