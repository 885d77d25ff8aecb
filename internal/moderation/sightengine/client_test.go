package sightengine

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
	"github.com/joseph-ayodele/vidscreen/internal/moderation"
)

const okBody = `{
  "status": "success",
  "nudity": {"sexual_activity": 0.2, "sexual_display": 0.1, "raw": 0.4, "partial": 0.2, "none": 0.5},
  "offensive": {"prob": 0.4},
  "gore": {"prob": 0.5}
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFrame(t *testing.T) entity.Frame {
	t.Helper()
	p := filepath.Join(t.TempDir(), "frame-001.jpg")
	require.NoError(t, os.WriteFile(p, []byte("\xff\xd8jpeg"), 0o644))
	return entity.Frame{Path: p, Index: 3}
}

func TestNormalize_WeightedCategories(t *testing.T) {
	a := NewAdapter(Config{APIUser: "u", APISecret: "s"}, quietLogger())

	score, err := a.Normalize([]byte(okBody))
	require.NoError(t, err)
	assert.InDelta(t, 0.67, score.NSFW, 1e-9)
	assert.InDelta(t, 0.64, score.Violence, 1e-9)
	assert.InDelta(t, 0.35, score.Scene, 1e-9)
	assert.Equal(t, constants.SourceProvider, score.Source)
	assert.Contains(t, score.Details, constants.NSFW)
	assert.Contains(t, score.Details, constants.Violence)
}

func TestNormalize_ClipsAndHandlesMissingFields(t *testing.T) {
	a := NewAdapter(Config{}, quietLogger())

	score, err := a.Normalize([]byte(`{"status":"success","nudity":{"sexual_activity":0.9,"sexual_display":0.8},"gore":{"prob":1},"offensive":{"prob":1}}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, score.NSFW)
	assert.Equal(t, 1.0, score.Violence)
	// no "none" field: only the offensive term counts
	assert.InDelta(t, 0.5, score.Scene, 1e-9)
	assert.LessOrEqual(t, score.Composite(), 1.0)

	empty, err := a.Normalize([]byte(`{"status":"success"}`))
	require.NoError(t, err)
	assert.Zero(t, empty.Composite())
}

func TestNormalize_ProviderFailure(t *testing.T) {
	a := NewAdapter(Config{}, quietLogger())
	_, err := a.Normalize([]byte(`{"status":"failure","error":{"type":"usage_limit","code":32,"message":"Daily usage limit reached"}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, moderation.ErrProvider)
	assert.Contains(t, err.Error(), "Daily usage limit")
}

func TestNewRequest_MultipartFields(t *testing.T) {
	a := NewAdapter(Config{Endpoint: "http://provider.test/check", APIUser: "user", APISecret: "secret"}, quietLogger())
	frame := writeFrame(t)

	req, err := a.NewRequest(context.Background(), frame.Path)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	require.NoError(t, req.ParseMultipartForm(1<<20))
	assert.Equal(t, "nudity-2.0,offensive,gore", req.FormValue("models"))
	assert.Equal(t, "user", req.FormValue("api_user"))
	assert.Equal(t, "secret", req.FormValue("api_secret"))
	fh := req.MultipartForm.File["media"]
	require.Len(t, fh, 1)
	assert.Equal(t, "frame-001.jpg", fh[0].Filename)
}

func newClient(t *testing.T, url string, opts ...moderation.Option) *moderation.Client {
	t.Helper()
	a := NewAdapter(Config{Endpoint: url, APIUser: "u", APISecret: "s"}, quietLogger())
	opts = append([]moderation.Option{moderation.WithBackoff(time.Millisecond)}, opts...)
	c, err := moderation.NewClient(a, quietLogger(), opts...)
	require.NoError(t, err)
	return c
}

func TestClassify_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"status":"failure"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	score := newClient(t, srv.URL).Classify(context.Background(), writeFrame(t))
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, score.Failed())
	assert.Equal(t, 3, score.Index)
	assert.InDelta(t, 0.67*0.5+0.64*0.3+0.35*0.2, score.Composite(), 1e-9)
}

func TestClassify_ExhaustedRetriesYieldErrorScore(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	score := newClient(t, srv.URL).Classify(context.Background(), writeFrame(t))
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, score.Failed())
	assert.Equal(t, constants.SourceError, score.Source)
	assert.Zero(t, score.NSFW)
	assert.Zero(t, score.Violence)
	assert.Zero(t, score.Scene)
	assert.Zero(t, score.Composite())
	assert.NotEmpty(t, score.Error)
}

func TestClassify_SchemaViolationIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"success","gore":{"prob":7}}`))
	}))
	defer srv.Close()

	score := newClient(t, srv.URL, moderation.WithAttempts(3)).Classify(context.Background(), writeFrame(t))
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, score.Failed())
}

func TestClassify_TimeoutPerCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	score := newClient(t, srv.URL, moderation.WithTimeout(50*time.Millisecond)).Classify(context.Background(), writeFrame(t))
	assert.True(t, score.Failed())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClassify_MissingCredentialsSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	a := NewAdapter(Config{Endpoint: srv.URL}, quietLogger())
	c, err := moderation.NewClient(a, quietLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Ready(), moderation.ErrNoCredentials)
	score := c.Classify(context.Background(), writeFrame(t))
	assert.True(t, score.Failed())
	assert.Zero(t, calls.Load())
}

func TestClassify_BackoffGrowsLinearlyPerAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var waits []time.Duration
	c := newClient(t, srv.URL,
		moderation.WithAttempts(4),
		moderation.WithBackoff(250*time.Millisecond),
		moderation.WithSleep(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}),
	)

	score := c.Classify(context.Background(), writeFrame(t))
	assert.True(t, score.Failed())
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, 750 * time.Millisecond}, waits)
}

func TestClassify_StopsWhenWaitIsCancelled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL,
		moderation.WithAttempts(3),
		moderation.WithSleep(func(context.Context, time.Duration) error { return context.Canceled }),
	)

	score := c.Classify(context.Background(), writeFrame(t))
	assert.True(t, score.Failed())
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, score.Error, context.Canceled.Error())
}
