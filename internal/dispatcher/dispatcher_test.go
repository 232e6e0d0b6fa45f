package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/clock/system"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/storage/memory"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/worker"
)

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(context.Context, crawler.QueueItem) error {
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (crawler.QueueItem, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return crawler.QueueItem{}, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, crawler.QueueItem) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (crawler.QueueItem, error) {
	return crawler.QueueItem{}, nil
}

type nopRunner struct{}

func (nopRunner) Run(context.Context, string, crawler.TaskParameters) (crawler.TaskCounters, error) {
	return crawler.TaskCounters{}, nil
}

func TestDispatcherRunStartsWorkersAndStops(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 2)}
	workers := []*worker.Worker{
		worker.New(queue, memory.NewTaskStore(), nopRunner{}, nil, system.New(), worker.Config{}, zap.NewNop()),
		worker.New(queue, memory.NewTaskStore(), nopRunner{}, nil, system.New(), worker.Config{}, zap.NewNop()),
	}
	dispatch := New(queue, workers, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	for range 2 {
		select {
		case <-queue.started:
		case <-time.After(time.Second):
			t.Fatal("worker did not begin dequeuing")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

func TestDispatcherEnqueueWrapsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	dispatch := New(&errorQueue{err: boom}, nil, nil)

	err := dispatch.Enqueue(context.Background(), crawler.QueueItem{TaskID: "task"})
	require.ErrorIs(t, err, boom)
	require.EqualError(t, err, "queue enqueue: boom")
}
