// Package worker runs queued crawl tasks through the pipeline and records
// their lifecycle in the task store.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/metrics"
)

// Runner executes a single task. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, taskID string, params crawler.TaskParameters) (crawler.TaskCounters, error)
}

// Config controls Worker behavior.
type Config struct {
	// Topic receives completion events. Empty disables publishing.
	Topic string
	// TaskTimeout bounds one task. Zero means no limit.
	TaskTimeout time.Duration
}

// CompletionEvent is published once per finished task.
type CompletionEvent struct {
	TaskID     string               `json:"task_id"`
	Status     crawler.TaskStatus   `json:"status"`
	ErrorText  string               `json:"error_text,omitempty"`
	Counters   crawler.TaskCounters `json:"counters"`
	SearchType crawler.SearchType   `json:"search_type"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	Query      string               `json:"query"`
	FinishedAt time.Time            `json:"finished_at"`
}

// Worker consumes queue items and executes the pipeline.
type Worker struct {
	queue     crawler.Queue
	tasks     crawler.TaskStore
	runner    Runner
	publisher crawler.Publisher
	clock     crawler.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue crawler.Queue,
	tasks crawler.TaskStore,
	runner Runner,
	publisher crawler.Publisher,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		tasks:     tasks,
		runner:    runner,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task", zap.String("task_id", item.TaskID))
		w.Process(ctx, item)
	}
}

// Process runs one task end to end. The final status update and completion
// event survive cancellation of ctx so a shutdown still records the outcome.
func (w *Worker) Process(ctx context.Context, item crawler.QueueItem) crawler.TaskStatus {
	logger := w.logger.With(zap.String("task_id", item.TaskID))
	detached := context.WithoutCancel(ctx)

	task, err := w.tasks.GetTask(ctx, item.TaskID)
	if err != nil {
		logger.Error("load task failed", zap.Error(err))
		return ""
	}
	if task.Status.Terminal() {
		logger.Info("skipping task", zap.String("status", string(task.Status)))
		return task.Status
	}

	if err := w.tasks.UpdateTaskStatus(ctx, item.TaskID, crawler.TaskStatusRunning, "", crawler.TaskCounters{}); err != nil {
		if errors.Is(err, crawler.ErrInvalidTransition) {
			logger.Info("task left pending state before start", zap.Error(err))
			return ""
		}
		logger.Error("update task status failed", zap.Error(err))
		return ""
	}

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	runCtx := ctx
	if w.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.TaskTimeout)
		defer cancel()
	}

	started := w.clock.Now()
	counters, runErr := w.runner.Run(runCtx, item.TaskID, item.Params)
	status, errText := deriveFinalStatus(runErr)

	if err := w.tasks.UpdateTaskStatus(detached, item.TaskID, status, errText, counters); err != nil {
		logger.Error("final task status update failed", zap.Error(err))
	}
	metrics.ObserveTask(string(status))

	fields := []zap.Field{
		zap.String("status", string(status)),
		zap.Duration("duration", w.clock.Now().Sub(started)),
		zap.Int("found", counters.Found),
		zap.Int("stored", counters.Stored),
	}
	if runErr != nil {
		logger.Warn("task ended with error", append(fields, zap.Error(runErr))...)
	} else {
		logger.Info("task completed", fields...)
	}

	w.publishCompletion(detached, logger, item, status, errText, counters)
	return status
}

func (w *Worker) publishCompletion(
	ctx context.Context,
	logger *zap.Logger,
	item crawler.QueueItem,
	status crawler.TaskStatus,
	errText string,
	counters crawler.TaskCounters,
) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	event := CompletionEvent{
		TaskID:     item.TaskID,
		Status:     status,
		ErrorText:  errText,
		Counters:   counters,
		SearchType: item.Params.SearchType,
		Page:       item.Params.Page,
		PageSize:   item.Params.PageSize,
		Query:      item.Params.Query,
		FinishedAt: w.clock.Now().UTC(),
	}
	id, err := w.publisher.Publish(ctx, w.cfg.Topic, event)
	if err != nil {
		logger.Error("publish completion event failed", zap.Error(err))
		return
	}
	logger.Debug("completion event published", zap.String("message_id", id))
}

// deriveFinalStatus maps a pipeline error onto a terminal status. Partial
// record failures never reach here as errors.
func deriveFinalStatus(err error) (crawler.TaskStatus, string) {
	switch {
	case err == nil:
		return crawler.TaskStatusCompleted, ""
	case errors.Is(err, context.Canceled):
		return crawler.TaskStatusCancelled, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return crawler.TaskStatusFailed, "task timed out: " + err.Error()
	default:
		return crawler.TaskStatusFailed, err.Error()
	}
}
