package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vidscreen/constants"
)

type recorder struct {
	mu       sync.Mutex
	events   []string
	failWith error
}

func (r *recorder) Progress(_ context.Context, msg ProgressMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "progress")
	return r.failWith
}

func (r *recorder) Finished(_ context.Context, msg FinishedMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "finished")
	return r.failWith
}

func TestMultiDeliversToEveryTransport(t *testing.T) {
	broken := &recorder{failWith: errors.New("broker down")}
	ok := &recorder{}
	m := NewMulti(nil).Add("broken", broken).Add("ok", ok).Add("nil", nil)
	require.Equal(t, 2, m.Len())

	ctx := context.Background()
	err := m.Progress(ctx, ProgressMessage{VideoID: uuid.New(), Progress: 20, Status: constants.VideoStatusProcessing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	require.Error(t, m.Finished(ctx, FinishedMessage{VideoID: uuid.New()}))
	assert.Equal(t, []string{"progress", "finished"}, ok.events)
	assert.Equal(t, []string{"progress", "finished"}, broken.events)
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.NoError(t, n.Progress(context.Background(), ProgressMessage{VideoID: uuid.New()}))
	assert.NoError(t, n.Finished(context.Background(), FinishedMessage{VideoID: uuid.New()}))
}

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	out []published
	err error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.out = append(f.out, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestRabbitNotifierRoutesRoomAndGlobal(t *testing.T) {
	ch := &fakeChannel{}
	n := newRabbitNotifier(ch, "vidscreen.events", nil)
	id := uuid.New()

	require.NoError(t, n.Progress(context.Background(), ProgressMessage{VideoID: id, Progress: 40, Status: constants.VideoStatusProcessing, Thumbnail: "/uploads/thumbnails/a.jpg"}))
	require.NoError(t, n.Finished(context.Background(), FinishedMessage{VideoID: id, Status: constants.VideoStatusDone, Progress: 100}))

	require.Len(t, ch.out, 4)
	assert.Equal(t, "video."+id.String()+".processing:update", ch.out[0].key)
	assert.Equal(t, "video.global.processingProgress", ch.out[1].key)
	assert.Equal(t, "video."+id.String()+".processing:finished", ch.out[2].key)
	assert.Equal(t, "video.global.processingComplete", ch.out[3].key)
	for _, p := range ch.out {
		assert.Equal(t, "vidscreen.events", p.exchange)
		assert.Equal(t, "application/json", p.msg.ContentType)
		assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	}

	var env struct {
		Event string          `json:"event"`
		Data  ProgressMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ch.out[0].msg.Body, &env))
	assert.Equal(t, EventUpdate, env.Event)
	assert.Equal(t, 40, env.Data.Progress)
	assert.Equal(t, "/uploads/thumbnails/a.jpg", env.Data.Thumbnail)
}

func TestRabbitNotifierPublishError(t *testing.T) {
	n := newRabbitNotifier(&fakeChannel{err: amqp.ErrClosed}, "x", nil)
	err := n.Progress(context.Background(), ProgressMessage{VideoID: uuid.New()})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

type fakeRedis struct {
	published map[string][]string
	hashes    map[string]map[string]any
	expiries  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		published: map[string][]string{},
		hashes:    map[string]map[string]any{},
		expiries:  map[string]time.Duration{},
	}
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.published[channel] = append(f.published[channel], string(message.([]byte)))
	return redis.NewIntCmd(ctx)
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]any{}
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1]
	}
	return redis.NewIntCmd(ctx)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expiries[key] = expiration
	return redis.NewBoolCmd(ctx)
}

func TestRedisNotifierMirrorsJobHash(t *testing.T) {
	fr := newFakeRedis()
	n := newRedisNotifier(fr, nil)
	id := uuid.New()
	ctx := context.Background()

	require.NoError(t, n.Progress(ctx, ProgressMessage{VideoID: id, Progress: 50, Status: constants.VideoStatusAnalyzing}))
	key := JobKey(id.String())
	assert.Equal(t, "analyzing", fr.hashes[key]["status"])
	assert.Equal(t, "50", fr.hashes[key]["progress"])
	assert.NotContains(t, fr.expiries, key)

	require.NoError(t, n.Finished(ctx, FinishedMessage{
		VideoID: id, Status: constants.VideoStatusFlagged, Progress: 100,
		Sensitivity: constants.SensitivityFlagged, SensitivityScore: 55, RiskLevel: constants.RiskMedium,
	}))
	assert.Equal(t, "flagged", fr.hashes[key]["status"])
	assert.Equal(t, "55", fr.hashes[key]["sensitivity_score"])
	assert.Equal(t, JobKeyTTL, fr.expiries[key])

	assert.Len(t, fr.published[Room(id)], 2)
	assert.Len(t, fr.published[GlobalProgress], 1)
	assert.Len(t, fr.published[GlobalComplete], 1)

	var got FinishedMessage
	require.NoError(t, json.Unmarshal([]byte(fr.published[GlobalComplete][0]), &got))
	assert.Equal(t, id, got.VideoID)
	assert.Equal(t, constants.RiskMedium, got.RiskLevel)
}
