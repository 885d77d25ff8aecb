package async

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAck struct {
	acks    int
	nacks   []bool
	failErr error
}

func (r *recordingAck) Ack(uint64, bool) error { r.acks++; return r.failErr }
func (r *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	r.nacks = append(r.nacks, requeue)
	return r.failErr
}
func (r *recordingAck) Reject(uint64, bool) error { return r.failErr }

type stubQueue struct {
	jobs []Job
	err  error
}

func (s *stubQueue) Enqueue(_ context.Context, job Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}
func (s *stubQueue) Shutdown(context.Context) {}

func newTestIntake(target Queue) (*Intake, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &Intake{target: target, logger: logger}, &buf
}

func TestIntakeDeliver_SettlesEachOutcome(t *testing.T) {
	id := uuid.New()
	body := []byte(`{"videoId":"` + id.String() + `"}`)

	q := &stubQueue{}
	in, _ := newTestIntake(q)

	ok := &recordingAck{}
	in.deliver(context.Background(), amqp.Delivery{Acknowledger: ok, Body: body})
	assert.Equal(t, 1, ok.acks)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, id, q.jobs[0].VideoID)

	bad := &recordingAck{}
	in.deliver(context.Background(), amqp.Delivery{Acknowledger: bad, Body: []byte(`{}`)})
	assert.Equal(t, []bool{false}, bad.nacks)

	in.target = &stubQueue{err: ErrQueueClosed}
	busy := &recordingAck{}
	in.deliver(context.Background(), amqp.Delivery{Acknowledger: busy, Body: body})
	assert.Equal(t, []bool{true}, busy.nacks)
	assert.Zero(t, busy.acks)
}

func TestIntakeDeliver_LogsSettleFailures(t *testing.T) {
	body := []byte(`{"videoId":"` + uuid.NewString() + `"}`)
	in, logs := newTestIntake(&stubQueue{})

	in.deliver(context.Background(), amqp.Delivery{
		Acknowledger: &recordingAck{failErr: errors.New("channel closed")},
		DeliveryTag:  7,
		Body:         body,
	})

	out := logs.String()
	assert.Contains(t, out, "delivery settle failed")
	assert.Contains(t, out, "op=ack")
	assert.Contains(t, out, "delivery_tag=7")
	assert.Contains(t, out, "channel closed")
}
