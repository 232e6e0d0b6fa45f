package crawler

import (
	"context"
	"io"
	"time"
)

// OpportunityStore persists filtered-in opportunities keyed by notice id.
type OpportunityStore interface {
	Upsert(ctx context.Context, opp Opportunity) (UpsertResult, error)
	Get(ctx context.Context, noticeID string) (StoredOpportunity, error)
	List(ctx context.Context, query OpportunityQuery) (OpportunityPage, error)
	Delete(ctx context.Context, noticeID string) error
	// Departments lists distinct resolved department names in order.
	Departments(ctx context.Context) ([]string, error)
}

// TaskStore persists crawl task metadata.
type TaskStore interface {
	CreateTask(ctx context.Context, task CrawlTask) error
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, errText string, counters TaskCounters) error
	GetTask(ctx context.Context, taskID string) (CrawlTask, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]CrawlTask, error)
	SoftDeleteTask(ctx context.Context, taskID string, deletedBy string) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RelevanceClassifier decides whether a title is in scope. Implementations
// return false on any failure.
type RelevanceClassifier interface {
	Classify(ctx context.Context, title string) bool
}

// Queue provides enqueue/dequeue semantics for crawl tasks.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// RateLimiter blocks until a request to url may proceed.
type RateLimiter interface {
	Wait(ctx context.Context, url string) error
}

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
