package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
	"github.com/joseph-ayodele/vidscreen/internal/moderation"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatBody(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	require.NoError(t, err)
	return b
}

func newAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	a, err := NewAdapter(cfg, quietLogger())
	require.NoError(t, err)
	return a
}

func TestNormalize_StrictVerdict(t *testing.T) {
	a := newAdapter(t, Config{APIKey: "k"})

	score, err := a.Normalize(chatBody(t, `{"nsfw":0.1,"violence":0.7,"scene":0.2,"reason":"a fist fight"}`))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, score.NSFW, 1e-9)
	assert.InDelta(t, 0.7, score.Violence, 1e-9)
	assert.InDelta(t, 0.2, score.Scene, 1e-9)
	assert.Equal(t, constants.SourceProvider, score.Source)
	require.Contains(t, score.Details, constants.Violence)
	assert.JSONEq(t, `{"reason":"a fist fight"}`, string(score.Details[constants.Violence]))
}

func TestNormalize_LenientReply(t *testing.T) {
	a := newAdapter(t, Config{APIKey: "k"})

	content := "```json\n{\"nudity\": \"40%\", \"gore\": 0, \"scene\": 25, \"confidence\": \"high\"}\n```"
	score, err := a.Normalize(chatBody(t, content))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, score.NSFW, 1e-9)
	assert.Zero(t, score.Violence)
	assert.InDelta(t, 0.25, score.Scene, 1e-9)
	assert.Nil(t, score.Details)
}

func TestNormalize_RejectsIncompleteVerdict(t *testing.T) {
	a := newAdapter(t, Config{APIKey: "k"})

	_, err := a.Normalize(chatBody(t, `{"nsfw":0.1,"violence":0.2}`))
	assert.ErrorIs(t, err, moderation.ErrProvider)

	_, err = a.Normalize(chatBody(t, `I can't help with that.`))
	assert.ErrorIs(t, err, moderation.ErrProvider)

	_, err = a.Normalize([]byte(`{"choices":[]}`))
	assert.ErrorIs(t, err, moderation.ErrProvider)
}

func TestReady(t *testing.T) {
	assert.ErrorIs(t, newAdapter(t, Config{}).Ready(), moderation.ErrNoCredentials)
	a := newAdapter(t, Config{APIKey: "k"})
	assert.NoError(t, a.Ready())
	assert.Equal(t, []string{DefaultModel}, a.Models())
}

func TestClassify_ThroughClient(t *testing.T) {
	frame := filepath.Join(t.TempDir(), "frame-002.jpg")
	require.NoError(t, os.WriteFile(frame, []byte("\xff\xd8jpeg"), 0o644))

	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatBody(t, `{"nsfw":0.9,"violence":0,"scene":0.1}`))
	}))
	defer srv.Close()

	a := newAdapter(t, Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "vision-small"})
	c, err := moderation.NewClient(a, quietLogger(), moderation.WithAttempts(1))
	require.NoError(t, err)

	score := c.Classify(context.Background(), entity.Frame{Path: frame, Index: 2})
	assert.Empty(t, score.Error)
	assert.Equal(t, 2, score.Index)
	assert.InDelta(t, 0.9, score.NSFW, 1e-9)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "vision-small", gotBody["model"])
	raw, _ := json.Marshal(gotBody["messages"])
	assert.True(t, strings.Contains(string(raw), "data:image/jpeg;base64,"))
}
