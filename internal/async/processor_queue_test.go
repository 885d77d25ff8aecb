package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

type fakeProcessor struct {
	mu       sync.Mutex
	seen     []uuid.UUID
	traceIDs []string
	deadline []bool
	release  chan struct{}
	err      error
}

func (f *fakeProcessor) ProcessVideo(ctx context.Context, id uuid.UUID) (entity.AnalysisResult, error) {
	if f.release != nil {
		<-f.release
	}
	_, hasDeadline := ctx.Deadline()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, id)
	f.traceIDs = append(f.traceIDs, common.TraceIDFromContext(ctx))
	f.deadline = append(f.deadline, hasDeadline)
	return entity.AnalysisResult{}, f.err
}

func (f *fakeProcessor) processed() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.seen...)
}

func TestProcessorQueue_ProcessesEveryJob(t *testing.T) {
	proc := &fakeProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(3), WithQueueSize(4))

	ids := make([]uuid.UUID, 10)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: ids[i], TraceID: "trace-1"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.ElementsMatch(t, ids, proc.processed())
	for _, tid := range proc.traceIDs {
		assert.Equal(t, "trace-1", tid)
	}
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{VideoID: uuid.New()}), ErrQueueClosed)
}

func TestProcessorQueue_SkipsQueuedDuplicatesUnlessForced(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(8))

	blocker := uuid.New()
	id := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: blocker}))
	require.Eventually(t, func() bool {
		return q.waiting(blocker) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: id}))
	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: id}))
	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: id, Force: true}))

	close(proc.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	count := 0
	for _, got := range proc.processed() {
		if got == id {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func (q *ProcessorQueue) waiting(id uuid.UUID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending[id]
}

func TestProcessorQueue_FullBufferStillDrains(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
	}
	done := make(chan error, 1)
	go func() {
		for _, id := range ids {
			if err := q.Enqueue(context.Background(), Job{VideoID: id}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	// One job in the worker, one buffered, the third blocked on send.
	require.Eventually(t, func() bool { return q.waiting(ids[2]) == 1 }, time.Second, 5*time.Millisecond)
	close(proc.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("enqueue did not return while the buffer was full")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)
	assert.ElementsMatch(t, ids, proc.processed())
}

func TestProcessorQueue_ShutdownReleasesBlockedSender(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	running, buffered, blocked := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: running}))
	require.Eventually(t, func() bool { return q.waiting(running) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: buffered}))

	sendErr := make(chan error, 1)
	go func() { sendErr <- q.Enqueue(context.Background(), Job{VideoID: blocked}) }()
	require.Eventually(t, func() bool { return q.waiting(blocked) == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)
	}()

	select {
	case err := <-sendErr:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("blocked enqueue was not released by shutdown")
	}
	assert.Equal(t, 0, q.waiting(blocked))

	close(proc.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.ElementsMatch(t, []uuid.UUID{running, buffered}, proc.processed())
}

func TestProcessorQueue_EnqueueHonoursContextWhenFull(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(proc.release)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)
	}()

	first := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: first}))
	require.Eventually(t, func() bool { return q.waiting(first) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: uuid.New()}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	late := uuid.New()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{VideoID: late}), context.DeadlineExceeded)
	assert.Equal(t, 0, q.waiting(late))
}

func TestProcessorQueue_TimeoutAndFailuresDoNotStopWorkers(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("boom")}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithProcessTimeout(time.Minute))

	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: uuid.New()}))
	require.NoError(t, q.Enqueue(context.Background(), Job{VideoID: uuid.New()}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.Len(t, proc.processed(), 2)
	assert.Equal(t, []bool{true, true}, proc.deadline)
}

func TestDecodeJob(t *testing.T) {
	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	job, err := DecodeJob([]byte(`{"videoId":"`+id.String()+`","force":true,"traceId":"abc"}`), at)
	require.NoError(t, err)
	assert.Equal(t, id, job.VideoID)
	assert.True(t, job.Force)
	assert.Equal(t, "abc", job.TraceID)
	assert.Equal(t, at, job.SubmittedAt)

	_, err = DecodeJob([]byte(`{"videoId":"nope"}`), at)
	assert.Error(t, err)
	_, err = DecodeJob([]byte(`not json`), at)
	assert.Error(t, err)
}
