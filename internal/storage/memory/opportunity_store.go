package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// OpportunityStore is a map-backed crawler.OpportunityStore with the same
// overwrite-on-notice-id semantics as the Postgres store.
type OpportunityStore struct {
	mu     sync.RWMutex
	rows   map[string]crawler.StoredOpportunity
	nextID int64
	now    func() time.Time
}

// NewOpportunityStore creates an empty store.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{
		rows: make(map[string]crawler.StoredOpportunity),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Upsert inserts opp or overwrites the existing row, keeping its id and created_at.
func (s *OpportunityStore) Upsert(_ context.Context, opp crawler.Opportunity) (crawler.UpsertResult, error) {
	if !opp.HasNoticeID() {
		return "", fmt.Errorf("upsert opportunity: notice_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[opp.NoticeID]; ok {
		existing.Opportunity = opp
		s.rows[opp.NoticeID] = existing
		return crawler.UpsertUpdated, nil
	}
	s.nextID++
	s.rows[opp.NoticeID] = crawler.StoredOpportunity{ID: s.nextID, Opportunity: opp, CreatedAt: s.now()}
	return crawler.UpsertInserted, nil
}

// Get returns one opportunity by notice id.
func (s *OpportunityStore) Get(_ context.Context, noticeID string) (crawler.StoredOpportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[noticeID]
	if !ok {
		return crawler.StoredOpportunity{}, crawler.ErrNotFound
	}
	return row, nil
}

// List filters, sorts and pages like the Postgres store.
func (s *OpportunityStore) List(_ context.Context, q crawler.OpportunityQuery) (crawler.OpportunityPage, error) {
	q = q.Normalize()
	needle := strings.ToLower(q.Department)

	s.mu.RLock()
	matched := make([]crawler.StoredOpportunity, 0, len(s.rows))
	for _, row := range s.rows {
		if needle != "" && !strings.Contains(strings.ToLower(row.Department), needle) {
			continue
		}
		matched = append(matched, row)
	}
	s.mu.RUnlock()

	less := sortKey(q.SortBy)
	sort.SliceStable(matched, func(i, j int) bool {
		if q.SortDir == "asc" {
			return less(matched[i], matched[j])
		}
		return less(matched[j], matched[i])
	})

	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.PerPage
	if end > total {
		end = total
	}
	return crawler.NewOpportunityPage(append([]crawler.StoredOpportunity(nil), matched[start:end]...), total, q), nil
}

func sortKey(column string) func(a, b crawler.StoredOpportunity) bool {
	switch column {
	case "publish_date":
		return func(a, b crawler.StoredOpportunity) bool { return a.PublishDate < b.PublishDate }
	case "response_date":
		return func(a, b crawler.StoredOpportunity) bool { return a.ResponseDate < b.ResponseDate }
	case "title":
		return func(a, b crawler.StoredOpportunity) bool { return a.Title < b.Title }
	case "department":
		return func(a, b crawler.StoredOpportunity) bool { return a.Department < b.Department }
	case "notice_id":
		return func(a, b crawler.StoredOpportunity) bool { return a.NoticeID < b.NoticeID }
	case "created_at":
		return func(a, b crawler.StoredOpportunity) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return func(a, b crawler.StoredOpportunity) bool { return a.ID < b.ID }
	}
}

// Delete removes one opportunity.
func (s *OpportunityStore) Delete(_ context.Context, noticeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[noticeID]; !ok {
		return crawler.ErrNotFound
	}
	delete(s.rows, noticeID)
	return nil
}

// Departments lists distinct resolved department names in order.
func (s *OpportunityStore) Departments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, row := range s.rows {
		if crawler.IsPresent(row.Department) {
			seen[row.Department] = struct{}{}
		}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for dept := range seen {
		out = append(out, dept)
	}
	sort.Strings(out)
	return out, nil
}

// Len reports the number of stored rows.
func (s *OpportunityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
