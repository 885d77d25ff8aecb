// Package sightengine adapts the Sightengine check API to moderation.Adapter.
package sightengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
	"github.com/joseph-ayodele/vidscreen/internal/moderation"
)

type Adapter struct {
	cfg    Config
	logger *slog.Logger
}

func NewAdapter(cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	return &Adapter{cfg: cfg, logger: logger}
}

func (a *Adapter) Name() string { return ProviderName }

func (a *Adapter) Models() []string {
	out := make([]string, len(a.cfg.Models))
	copy(out, a.cfg.Models)
	return out
}

func (a *Adapter) Ready() error {
	if a.cfg.APIUser == "" || a.cfg.APISecret == "" {
		return moderation.ErrNoCredentials
	}
	return nil
}

func (a *Adapter) Schema() map[string]any { return responseSchema() }

// NewRequest builds the multipart upload for one frame.
func (a *Adapter) NewRequest(ctx context.Context, framePath string) (*http.Request, error) {
	f, err := os.Open(framePath)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("media", filepath.Base(framePath))
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy frame data: %w", err)
	}
	fields := [][2]string{
		{"models", strings.Join(a.cfg.Models, ",")},
		{"api_user", a.cfg.APIUser},
		{"api_secret", a.cfg.APISecret},
	}
	for _, kv := range fields {
		if err := writer.WriteField(kv[0], kv[1]); err != nil {
			return nil, fmt.Errorf("write %s field: %w", kv[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create check request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return req, nil
}

type probability struct {
	Prob float64 `json:"prob"`
}

type checkResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Type    string `json:"type"`
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Nudity *struct {
		SexualActivity float64  `json:"sexual_activity"`
		SexualDisplay  float64  `json:"sexual_display"`
		Raw            float64  `json:"raw"`
		Partial        float64  `json:"partial"`
		None           *float64 `json:"none"`
	} `json:"nudity"`
	Offensive *probability `json:"offensive"`
	Gore      *probability `json:"gore"`
}

// Normalize folds the nudity, offensive and gore models into the three categories.
func (a *Adapter) Normalize(raw []byte) (entity.FrameScore, error) {
	var resp checkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return entity.FrameScore{}, fmt.Errorf("decode check response: %w", err)
	}
	if resp.Status != "success" {
		msg, kind := "unknown error", ""
		if resp.Error != nil {
			kind = resp.Error.Type
			if resp.Error.Message != "" {
				msg = resp.Error.Message
			}
		}
		a.logger.Warn("sightengine.check.failure", "status", resp.Status, "type", kind, "message", msg)
		return entity.FrameScore{}, fmt.Errorf("%w: %s", moderation.ErrProvider, msg)
	}

	var nsfw, violence, scene float64
	if n := resp.Nudity; n != nil {
		nsfw = n.SexualActivity*1.0 + n.SexualDisplay*0.9 + n.Raw*0.7 + n.Partial*0.5
		if n.None != nil {
			scene += (1 - *n.None) * 0.3
		}
	}
	if resp.Gore != nil {
		violence += resp.Gore.Prob * 0.8
	}
	if resp.Offensive != nil {
		violence += resp.Offensive.Prob * 0.6
		scene += resp.Offensive.Prob * 0.5
	}

	score := entity.NewFrameScore(0,
		math.Min(nsfw, 1),
		math.Min(violence, 1),
		math.Min(scene, 1),
		constants.SourceProvider,
	)
	score.Details = details(raw)
	return score, nil
}

// details keeps the provider sub-objects that explain each category.
func details(raw []byte) map[constants.Category]json.RawMessage {
	var parts map[string]json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil
	}
	out := make(map[constants.Category]json.RawMessage, 3)
	for key, cat := range map[string]constants.Category{
		"nudity":    constants.NSFW,
		"gore":      constants.Violence,
		"offensive": constants.Scene,
	} {
		if v, ok := parts[key]; ok {
			out[cat] = v
		}
	}
	return out
}
