package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// DefaultTaskTable is used when no task table name is configured.
const DefaultTaskTable = "crawler_tasks"

var taskColumns = []string{
	"id", "task_type", "status", "parameters", "created_by", "created_at", "updated_at",
	"started_at", "finished_at", "error_text", "counters", "deleted", "deleted_at", "deleted_by",
}

// TaskStore persists crawl task metadata.
type TaskStore struct {
	pool  DB
	table string
	now   func() time.Time
}

// NewTaskStore wraps pool. An empty table uses DefaultTaskTable.
func NewTaskStore(pool DB, table string, clock crawler.Clock) (*TaskStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, DefaultTaskTable)
	if err != nil {
		return nil, err
	}
	now := func() time.Time { return time.Now().UTC() }
	if clock != nil {
		now = func() time.Time { return clock.Now().UTC() }
	}
	return &TaskStore{pool: pool, table: name, now: now}, nil
}

// EnsureSchema creates the task table when it is missing.
func (s *TaskStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	task_type TEXT NOT NULL,
	status TEXT NOT NULL,
	parameters JSONB NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	error_text TEXT NOT NULL DEFAULT '',
	counters JSONB NOT NULL DEFAULT '{}',
	deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ,
	deleted_by TEXT NOT NULL DEFAULT ''
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// CreateTask inserts a new task row.
func (s *TaskStore) CreateTask(ctx context.Context, task crawler.CrawlTask) error {
	params, err := json.Marshal(task.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	counters, err := json.Marshal(task.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	query, args, err := psql.Insert(s.table).
		Columns("id", "task_type", "status", "parameters", "created_by", "created_at", "updated_at", "counters").
		Values(task.ID, task.Type, string(task.Status), params, task.CreatedBy, task.CreatedAt, task.UpdatedAt, counters).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert task: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return nil
}

// UpdateTaskStatus moves a non-terminal task to status. started_at is set on
// the first transition to running and finished_at on any terminal status.
func (s *TaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID string,
	status crawler.TaskStatus,
	errText string,
	counters crawler.TaskCounters,
) error {
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	now := s.now()
	update := psql.Update(s.table).
		Set("status", string(status)).
		Set("error_text", errText).
		Set("counters", countersJSON).
		Set("updated_at", now)
	if status == crawler.TaskStatusRunning {
		update = update.Set("started_at", sq.Expr("COALESCE(started_at, ?)", now))
	}
	if status.Terminal() {
		update = update.Set("finished_at", now)
	}
	query, args, err := update.
		Where(sq.Eq{"id": taskID, "deleted": false}).
		Where(sq.NotEq{"status": terminalStatuses()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update task: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return err
	}
	return fmt.Errorf("task %s: %w", taskID, crawler.ErrInvalidTransition)
}

func terminalStatuses() []string {
	return []string{
		string(crawler.TaskStatusCompleted),
		string(crawler.TaskStatusFailed),
		string(crawler.TaskStatusCancelled),
	}
}

func scanTask(row pgx.Row) (crawler.CrawlTask, error) {
	var (
		task     crawler.CrawlTask
		status   string
		params   []byte
		counters []byte
	)
	if err := row.Scan(
		&task.ID, &task.Type, &status, &params, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt,
		&task.StartedAt, &task.FinishedAt, &task.ErrorText, &counters, &task.Deleted, &task.DeletedAt, &task.DeletedBy,
	); err != nil {
		return crawler.CrawlTask{}, err
	}
	task.Status = crawler.TaskStatus(status)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &task.Parameters); err != nil {
			return crawler.CrawlTask{}, fmt.Errorf("decode parameters: %w", err)
		}
	}
	if len(counters) > 0 {
		if err := json.Unmarshal(counters, &task.Counters); err != nil {
			return crawler.CrawlTask{}, fmt.Errorf("decode counters: %w", err)
		}
	}
	return task, nil
}

// GetTask loads a non-deleted task.
func (s *TaskStore) GetTask(ctx context.Context, taskID string) (crawler.CrawlTask, error) {
	query, args, err := psql.Select(taskColumns...).
		From(s.table).
		Where(sq.Eq{"id": taskID, "deleted": false}).
		ToSql()
	if err != nil {
		return crawler.CrawlTask{}, fmt.Errorf("build get task: %w", err)
	}
	task, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.CrawlTask{}, crawler.ErrNotFound
	}
	if err != nil {
		return crawler.CrawlTask{}, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return task, nil
}

// ListTasks returns tasks newest first.
func (s *TaskStore) ListTasks(ctx context.Context, filter crawler.TaskFilter) ([]crawler.CrawlTask, error) {
	builder := psql.Select(taskColumns...).From(s.table).OrderBy("created_at DESC")
	if !filter.IncludeDeleted {
		builder = builder.Where(sq.Eq{"deleted": false})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.CreatedBy != "" {
		builder = builder.Where(sq.Eq{"created_by": filter.CreatedBy})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []crawler.CrawlTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// SoftDeleteTask hides a task from reads without removing the row.
func (s *TaskStore) SoftDeleteTask(ctx context.Context, taskID string, deletedBy string) error {
	now := s.now()
	query, args, err := psql.Update(s.table).
		Set("deleted", true).
		Set("deleted_at", now).
		Set("deleted_by", deletedBy).
		Set("updated_at", now).
		Where(sq.Eq{"id": taskID, "deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete task: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("soft delete task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.ErrNotFound
	}
	return nil
}
