package crawler

import (
	"net/http"
	"strings"
	"time"
)

// Sentinel stands in for any opportunity field that could not be extracted.
const Sentinel = "-"

// TaskType is the only task kind the service runs.
const TaskType = "sam_search"

// SearchType selects the program/notice filter applied to a search.
type SearchType string

// Known search types. Any other value runs an unfiltered search.
const (
	SearchType8A   SearchType = "8A"
	SearchTypeRP   SearchType = "RP"
	SearchTypeO    SearchType = "O"
	SearchTypeWOSB SearchType = "WOSB"
)

// ParseSearchType normalizes user input; empty input yields 8A.
func ParseSearchType(raw string) SearchType {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return SearchType8A
	}
	return SearchType(raw)
}

// TaskStatus represents the lifecycle state of a crawl task.
type TaskStatus string

// Task status values persisted in the task store.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskParameters is the flat bundle a crawl task runs with. Page is 1-based.
type TaskParameters struct {
	SearchType SearchType `json:"search_type" mapstructure:"search_type"`
	Page       int        `json:"page" mapstructure:"page"`
	PageSize   int        `json:"page_size" mapstructure:"page_size"`
	Query      string     `json:"query" mapstructure:"query"`
}

// Validate enforces page >= 1 and page size > 0.
func (p TaskParameters) Validate() error {
	if p.Page < 1 {
		return invalidParameter("page must be >= 1")
	}
	if p.PageSize <= 0 {
		return invalidParameter("page_size must be > 0")
	}
	return nil
}

// ZeroBasedPage converts the caller-facing page number to the search API's.
func (p TaskParameters) ZeroBasedPage() int {
	if p.Page < 1 {
		return 0
	}
	return p.Page - 1
}

// CrawlTask is the metadata persisted for each submitted crawl request.
type CrawlTask struct {
	ID         string         `json:"id"`
	Type       string         `json:"task_type"`
	Status     TaskStatus     `json:"status"`
	Parameters TaskParameters `json:"parameters"`
	CreatedBy  string         `json:"created_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	ErrorText  string         `json:"error_text,omitempty"`
	Counters   TaskCounters   `json:"counters"`
	Deleted    bool           `json:"deleted,omitempty"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty"`
	DeletedBy  string         `json:"deleted_by,omitempty"`
}

// TaskCounters tracks per-record outcomes for one task.
type TaskCounters struct {
	Found            int `json:"found"`
	Fetched          int `json:"fetched"`
	Stored           int `json:"stored"`
	Inserted         int `json:"inserted"`
	Updated          int `json:"updated"`
	DroppedNoID      int `json:"dropped_no_id"`
	DroppedDefense   int `json:"dropped_defense"`
	DroppedDeadline  int `json:"dropped_deadline"`
	DroppedRelevance int `json:"dropped_relevance"`
	Skipped          int `json:"skipped"`
	Errors           int `json:"errors"`
}

// Dropped sums every filter-chain and missing-id drop.
func (c TaskCounters) Dropped() int {
	return c.DroppedNoID + c.DroppedDefense + c.DroppedDeadline + c.DroppedRelevance
}

// TaskFilter narrows ListTasks results.
type TaskFilter struct {
	Status         TaskStatus
	CreatedBy      string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// DropReason names the stage that excluded a record.
type DropReason string

// Drop reasons in pipeline order.
const (
	DropNone      DropReason = ""
	DropNoID      DropReason = "no_notice_id"
	DropDefense   DropReason = "defense"
	DropDeadline  DropReason = "deadline"
	DropRelevance DropReason = "relevance"
)

// Opportunity is the unit of work flowing through the pipeline. Every field
// holds either an extracted value or Sentinel.
type Opportunity struct {
	NoticeID                string     `json:"notice_id"`
	Title                   string     `json:"title"`
	PublishDate             string     `json:"publish_date"`
	ResponseDate            string     `json:"response_date"`
	Link                    string     `json:"link"`
	ContractOpportunityType string     `json:"contract_opportunity_type"`
	OriginalSetAside        string     `json:"original_set_aside"`
	NAICSCode               string     `json:"naics_code"`
	Department              string     `json:"department"`
	State                   string     `json:"state"`
	City                    string     `json:"city"`
	Email                   string     `json:"email"`
	SearchType              SearchType `json:"search_type"`
	OrganizationID          string     `json:"organization_id"`
}

// NewOpportunity returns a record with every field set to Sentinel.
func NewOpportunity(searchType SearchType) Opportunity {
	return Opportunity{
		NoticeID:                Sentinel,
		Title:                   Sentinel,
		PublishDate:             Sentinel,
		ResponseDate:            Sentinel,
		Link:                    Sentinel,
		ContractOpportunityType: Sentinel,
		OriginalSetAside:        Sentinel,
		NAICSCode:               Sentinel,
		Department:              Sentinel,
		State:                   Sentinel,
		City:                    Sentinel,
		Email:                   Sentinel,
		SearchType:              searchType,
		OrganizationID:          Sentinel,
	}
}

// Normalize replaces empty fields with Sentinel.
func (o *Opportunity) Normalize() {
	for _, field := range []*string{
		&o.NoticeID, &o.Title, &o.PublishDate, &o.ResponseDate, &o.Link,
		&o.ContractOpportunityType, &o.OriginalSetAside, &o.NAICSCode,
		&o.Department, &o.State, &o.City, &o.Email, &o.OrganizationID,
	} {
		if strings.TrimSpace(*field) == "" {
			*field = Sentinel
		}
	}
	if o.SearchType == "" {
		o.SearchType = SearchType(Sentinel)
	}
}

// HasNoticeID reports whether the record carries a usable natural key.
func (o Opportunity) HasNoticeID() bool {
	return IsPresent(o.NoticeID)
}

// HasOrganization reports whether a department lookup is possible.
func (o Opportunity) HasOrganization() bool {
	return IsPresent(o.OrganizationID)
}

// IsPresent is false for empty and sentinel values.
func IsPresent(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && value != Sentinel
}

// StoredOpportunity is the persisted projection of an Opportunity.
type StoredOpportunity struct {
	ID int64 `json:"id"`
	Opportunity
	CreatedAt time.Time `json:"created_at"`
}

// UpsertResult says whether an upsert created or overwrote a row.
type UpsertResult string

// Upsert outcomes.
const (
	UpsertInserted UpsertResult = "inserted"
	UpsertUpdated  UpsertResult = "updated"
)

// OpportunityQuery drives paged opportunity listings.
type OpportunityQuery struct {
	Page       int
	PerPage    int
	SortBy     string
	SortDir    string
	Department string
}

// Offset converts the 1-based page into a row offset.
func (q OpportunityQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// OpportunityPage is one page of a listing plus the unpaged total.
type OpportunityPage struct {
	Items   []StoredOpportunity `json:"items"`
	Total   int                 `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
	Pages   int                 `json:"pages"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	TaskID  string
	URL     string
	Kind    string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// QueueItem wraps a task ready to run.
type QueueItem struct {
	TaskID    string
	Params    TaskParameters
	Attempt   int
	Submitted int64
}
