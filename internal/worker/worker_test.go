package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/clock/system"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	pubmemory "github.com/JakeFAU/sam-opportunity-crawler/internal/publisher/memory"
	queuememory "github.com/JakeFAU/sam-opportunity-crawler/internal/queue/memory"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/storage/memory"
)

type fakeRunner struct {
	mu       sync.Mutex
	counters crawler.TaskCounters
	err      error
	block    bool
	calls    []string
}

func (r *fakeRunner) Run(ctx context.Context, taskID string, _ crawler.TaskParameters) (crawler.TaskCounters, error) {
	r.mu.Lock()
	r.calls = append(r.calls, taskID)
	block := r.block
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return crawler.TaskCounters{Found: 1}, ctx.Err()
	}
	return r.counters, r.err
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seedTask(t *testing.T, store *memory.TaskStore, id string) crawler.QueueItem {
	t.Helper()
	params := crawler.TaskParameters{SearchType: crawler.SearchTypeRP, Page: 2, PageSize: 50, Query: "cloud"}
	require.NoError(t, store.CreateTask(context.Background(), crawler.CrawlTask{
		ID:         id,
		Type:       crawler.TaskType,
		Status:     crawler.TaskStatusPending,
		Parameters: params,
		CreatedAt:  created,
		UpdatedAt:  created,
	}))
	return crawler.QueueItem{TaskID: id, Params: params}
}

func newWorker(tasks *memory.TaskStore, runner Runner, pub crawler.Publisher, cfg Config) *Worker {
	return New(queuememory.NewQueue(4), tasks, runner, pub, system.NewFixed(created), cfg, zap.NewNop())
}

func TestWorker_ProcessCompletesAndPublishes(t *testing.T) {
	t.Parallel()

	tasks := memory.NewTaskStore()
	pub := pubmemory.New()
	runner := &fakeRunner{counters: crawler.TaskCounters{Found: 3, Fetched: 3, Stored: 2, Inserted: 2, DroppedDefense: 1}}
	w := newWorker(tasks, runner, pub, Config{Topic: "crawls"})
	item := seedTask(t, tasks, "task-ok")

	require.Equal(t, crawler.TaskStatusCompleted, w.Process(context.Background(), item))

	task, err := tasks.GetTask(context.Background(), "task-ok")
	require.NoError(t, err)
	require.Equal(t, crawler.TaskStatusCompleted, task.Status)
	require.Equal(t, runner.counters, task.Counters)
	require.NotNil(t, task.StartedAt)
	require.NotNil(t, task.FinishedAt)
	require.Empty(t, task.ErrorText)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "crawls", msgs[0].Topic)
	event, ok := msgs[0].Payload.(CompletionEvent)
	require.True(t, ok)
	require.Equal(t, CompletionEvent{
		TaskID:     "task-ok",
		Status:     crawler.TaskStatusCompleted,
		Counters:   runner.counters,
		SearchType: crawler.SearchTypeRP,
		Page:       2,
		PageSize:   50,
		Query:      "cloud",
		FinishedAt: created,
	}, event)
}

func TestWorker_SearchFailureMarksTaskFailed(t *testing.T) {
	t.Parallel()

	tasks := memory.NewTaskStore()
	runner := &fakeRunner{err: errors.New("search: unexpected status 503")}
	w := newWorker(tasks, runner, nil, Config{Topic: "crawls"})
	item := seedTask(t, tasks, "task-fail")

	require.Equal(t, crawler.TaskStatusFailed, w.Process(context.Background(), item))
	task, err := tasks.GetTask(context.Background(), "task-fail")
	require.NoError(t, err)
	require.Equal(t, crawler.TaskStatusFailed, task.Status)
	require.Equal(t, "search: unexpected status 503", task.ErrorText)
}

func TestWorker_SkipsCancelledTask(t *testing.T) {
	t.Parallel()

	tasks := memory.NewTaskStore()
	runner := &fakeRunner{}
	w := newWorker(tasks, runner, nil, Config{})
	item := seedTask(t, tasks, "task-cancelled")
	require.NoError(t, tasks.UpdateTaskStatus(context.Background(), "task-cancelled", crawler.TaskStatusCancelled, "", crawler.TaskCounters{}))

	require.Equal(t, crawler.TaskStatusCancelled, w.Process(context.Background(), item))
	require.Zero(t, runner.callCount())
}

func TestWorker_MissingTaskIsIgnored(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	w := newWorker(memory.NewTaskStore(), runner, nil, Config{})
	require.Empty(t, w.Process(context.Background(), crawler.QueueItem{TaskID: "ghost"}))
	require.Zero(t, runner.callCount())
}

func TestWorker_ContextCancellationRecordsCancelled(t *testing.T) {
	t.Parallel()

	tasks := memory.NewTaskStore()
	pub := pubmemory.New()
	runner := &fakeRunner{block: true}
	w := newWorker(tasks, runner, pub, Config{Topic: "crawls"})
	item := seedTask(t, tasks, "task-stop")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan crawler.TaskStatus, 1)
	go func() { done <- w.Process(ctx, item) }()

	require.Eventually(t, func() bool { return runner.callCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case status := <-done:
		require.Equal(t, crawler.TaskStatusCancelled, status)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	task, err := tasks.GetTask(context.Background(), "task-stop")
	require.NoError(t, err)
	require.Equal(t, crawler.TaskStatusCancelled, task.Status)
	require.Equal(t, 1, task.Counters.Found)
	require.Len(t, pub.Messages(), 1)
}

func TestWorker_TimeoutFailsTask(t *testing.T) {
	t.Parallel()

	tasks := memory.NewTaskStore()
	w := newWorker(tasks, &fakeRunner{block: true}, nil, Config{TaskTimeout: 10 * time.Millisecond})
	item := seedTask(t, tasks, "task-slow")

	require.Equal(t, crawler.TaskStatusFailed, w.Process(context.Background(), item))
	task, err := tasks.GetTask(context.Background(), "task-slow")
	require.NoError(t, err)
	require.Contains(t, task.ErrorText, "task timed out")
}

func TestWorker_RunDrainsQueue(t *testing.T) {
	t.Parallel()

	tasks := memory.NewTaskStore()
	queue := queuememory.NewQueue(4)
	runner := &fakeRunner{}
	w := New(queue, tasks, runner, nil, system.NewFixed(created), Config{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, queue.Enqueue(ctx, seedTask(t, tasks, id)))
	}
	require.Eventually(t, func() bool {
		for _, id := range []string{"a", "b"} {
			task, err := tasks.GetTask(ctx, id)
			if err != nil || task.Status != crawler.TaskStatusCompleted {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestDeriveFinalStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status crawler.TaskStatus
	}{
		{name: "success", status: crawler.TaskStatusCompleted},
		{name: "cancelled", err: context.Canceled, status: crawler.TaskStatusCancelled},
		{name: "timeout", err: context.DeadlineExceeded, status: crawler.TaskStatusFailed},
		{name: "invalid params", err: crawler.ErrInvalidParameters, status: crawler.TaskStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, _ := deriveFinalStatus(tt.err)
			require.Equal(t, tt.status, status)
		})
	}
}
