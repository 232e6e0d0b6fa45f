package crawler

import "strings"

// Listing bounds for opportunity queries.
const (
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// SortColumns are the keys an opportunity listing may be ordered by.
var SortColumns = map[string]struct{}{
	"id":            {},
	"publish_date":  {},
	"response_date": {},
	"title":         {},
	"department":    {},
	"notice_id":     {},
	"created_at":    {},
}

// Normalize clamps paging and replaces unknown sort keys with id/desc.
func (q OpportunityQuery) Normalize() OpportunityQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	q.SortBy = strings.ToLower(strings.TrimSpace(q.SortBy))
	if _, ok := SortColumns[q.SortBy]; !ok {
		q.SortBy = "id"
	}
	q.SortDir = strings.ToLower(strings.TrimSpace(q.SortDir))
	if q.SortDir != "asc" {
		q.SortDir = "desc"
	}
	q.Department = strings.TrimSpace(q.Department)
	return q
}

// NewOpportunityPage assembles a page for a normalized query.
func NewOpportunityPage(items []StoredOpportunity, total int, q OpportunityQuery) OpportunityPage {
	pages := 0
	if q.PerPage > 0 {
		pages = (total + q.PerPage - 1) / q.PerPage
	}
	if items == nil {
		items = []StoredOpportunity{}
	}
	return OpportunityPage{
		Items:   items,
		Total:   total,
		Page:    q.Page,
		PerPage: q.PerPage,
		Pages:   pages,
	}
}
