// Package openai adapts a vision-capable chat/completions endpoint to moderation.Adapter.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
	"github.com/joseph-ayodele/vidscreen/internal/moderation"
)

type Adapter struct {
	cfg     Config
	content *jsonschema.Schema
	logger  *slog.Logger
}

func NewAdapter(cfg Config, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	schema, err := moderation.CompileSchema(scoresSchema())
	if err != nil {
		return nil, fmt.Errorf("scores schema: %w", err)
	}
	return &Adapter{cfg: cfg, content: schema, logger: logger}, nil
}

func (a *Adapter) Name() string           { return ProviderName }
func (a *Adapter) Models() []string       { return []string{a.cfg.Model} }
func (a *Adapter) Schema() map[string]any { return responseSchema() }

func (a *Adapter) Ready() error {
	if a.cfg.APIKey == "" {
		return moderation.ErrNoCredentials
	}
	return nil
}

// NewRequest sends the frame inline as a data URL.
func (a *Adapter) NewRequest(ctx context.Context, framePath string) (*http.Request, error) {
	dataURL, err := readAsDataURL(framePath)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"model":           a.cfg.Model,
		"temperature":     a.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": userPrompt},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "low"}},
			}},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	return req, nil
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type verdict struct {
	NSFW     float64 `json:"nsfw"`
	Violence float64 `json:"violence"`
	Scene    float64 `json:"scene"`
	Reason   string  `json:"reason"`
}

// Normalize reads the model's JSON verdict out of the first choice.
func (a *Adapter) Normalize(raw []byte) (entity.FrameScore, error) {
	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return entity.FrameScore{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return entity.FrameScore{}, fmt.Errorf("%w: no choices in response", moderation.ErrProvider)
	}
	content := cc.Choices[0].Message.Content

	cleaned, changed, err := sanitizeScores(content)
	if err != nil {
		a.logger.Error("openai.verdict.sanitize_failed", "error", err, "content", truncate(content, 256))
		return entity.FrameScore{}, fmt.Errorf("%w: %v", moderation.ErrProvider, err)
	}
	if len(changed) > 0 {
		a.logger.Warn("openai.verdict.lenient_sanitize_applied", "changed", changed)
	}
	if err := moderation.ValidateJSON(a.content, cleaned); err != nil {
		a.logger.Error("openai.verdict.schema_validation_failed", "error", err, "content", string(cleaned))
		return entity.FrameScore{}, fmt.Errorf("%w: %v", moderation.ErrProvider, err)
	}

	var v verdict
	if err := json.Unmarshal(cleaned, &v); err != nil {
		return entity.FrameScore{}, fmt.Errorf("unmarshal verdict: %w", err)
	}

	score := entity.NewFrameScore(0, v.NSFW, v.Violence, v.Scene, constants.SourceProvider)
	if v.Reason != "" {
		reason, _ := json.Marshal(map[string]string{"reason": v.Reason})
		score.Details = map[constants.Category]json.RawMessage{dominant(score): reason}
	}
	return score, nil
}

// dominant is the category with the highest score; ties go to nsfw, then violence.
func dominant(s entity.FrameScore) constants.Category {
	switch {
	case s.NSFW >= s.Violence && s.NSFW >= s.Scene:
		return constants.NSFW
	case s.Violence >= s.Scene:
		return constants.Violence
	}
	return constants.Scene
}

func readAsDataURL(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat frame: %w", err)
	}
	if st.Size() > maxFrameBytes {
		return "", fmt.Errorf("frame %s is %d bytes, limit %d", filepath.Base(path), st.Size(), maxFrameBytes)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		switch ext {
		case ".jpg", ".jpeg":
			mt = "image/jpeg"
		case ".png":
			mt = "image/png"
		default:
			mt = "application/octet-stream"
		}
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
