package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// TaskStore provides an in-memory crawler.TaskStore for development/testing.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]crawler.CrawlTask
	now   func() time.Time
}

// NewTaskStore constructs a TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]crawler.CrawlTask),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateTask stores a new task.
func (s *TaskStore) CreateTask(_ context.Context, task crawler.CrawlTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return errors.New("task already exists")
	}
	s.tasks[task.ID] = task
	return nil
}

// UpdateTaskStatus updates the status and counters for a live, non-terminal task.
func (s *TaskStore) UpdateTaskStatus(
	_ context.Context,
	taskID string,
	status crawler.TaskStatus,
	errText string,
	counters crawler.TaskCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || task.Deleted {
		return crawler.ErrNotFound
	}
	if task.Status.Terminal() {
		return fmt.Errorf("task %s is %s: %w", taskID, task.Status, crawler.ErrInvalidTransition)
	}
	now := s.now()
	task.Status = status
	task.ErrorText = errText
	task.Counters = counters
	task.UpdatedAt = now
	if status == crawler.TaskStatusRunning && task.StartedAt == nil {
		task.StartedAt = pointerTime(now)
	}
	if status.Terminal() {
		task.FinishedAt = pointerTime(now)
	}
	s.tasks[taskID] = task
	return nil
}

// GetTask fetches a task by ID. Soft-deleted tasks are not found.
func (s *TaskStore) GetTask(_ context.Context, taskID string) (crawler.CrawlTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok || task.Deleted {
		return crawler.CrawlTask{}, crawler.ErrNotFound
	}
	return task, nil
}

// ListTasks returns matching tasks newest first.
func (s *TaskStore) ListTasks(_ context.Context, filter crawler.TaskFilter) ([]crawler.CrawlTask, error) {
	s.mu.RLock()
	out := make([]crawler.CrawlTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		if task.Deleted && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != "" && task.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, task)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []crawler.CrawlTask{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SoftDeleteTask marks a task deleted.
func (s *TaskStore) SoftDeleteTask(_ context.Context, taskID string, deletedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || task.Deleted {
		return crawler.ErrNotFound
	}
	now := s.now()
	task.Deleted = true
	task.DeletedAt = pointerTime(now)
	task.DeletedBy = deletedBy
	task.UpdatedAt = now
	s.tasks[taskID] = task
	return nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
