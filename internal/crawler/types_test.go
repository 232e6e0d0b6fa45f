package crawler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOpportunity_AllFieldsSentinel(t *testing.T) {
	t.Parallel()

	opp := NewOpportunity(SearchTypeRP)
	require.Equal(t, SearchTypeRP, opp.SearchType)
	require.Equal(t, Sentinel, opp.NoticeID)
	require.Equal(t, Sentinel, opp.Department)
	require.Equal(t, Sentinel, opp.OrganizationID)
	require.False(t, opp.HasNoticeID())
	require.False(t, opp.HasOrganization())
}

func TestOpportunity_NormalizeFillsBlanks(t *testing.T) {
	t.Parallel()

	opp := Opportunity{NoticeID: "N-1", Title: "  ", City: "Denver"}
	opp.Normalize()

	require.Equal(t, "N-1", opp.NoticeID)
	require.Equal(t, Sentinel, opp.Title)
	require.Equal(t, "Denver", opp.City)
	require.Equal(t, Sentinel, opp.Email)
	require.Equal(t, SearchType(Sentinel), opp.SearchType)
	require.True(t, opp.HasNoticeID())
}

func TestParseSearchType(t *testing.T) {
	t.Parallel()

	require.Equal(t, SearchType8A, ParseSearchType(""))
	require.Equal(t, SearchTypeWOSB, ParseSearchType(" wosb "))
	require.Equal(t, SearchType("ANY"), ParseSearchType("any"))
}

func TestTaskParameters_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, TaskParameters{Page: 1, PageSize: 200}.Validate())

	err := TaskParameters{Page: 0, PageSize: 10}.Validate()
	require.True(t, errors.Is(err, ErrInvalidParameters))

	err = TaskParameters{Page: 2, PageSize: 0}.Validate()
	require.ErrorIs(t, err, ErrInvalidParameters)

	require.Equal(t, 0, TaskParameters{Page: 1}.ZeroBasedPage())
	require.Equal(t, 4, TaskParameters{Page: 5}.ZeroBasedPage())
}

func TestTaskStatus_Terminal(t *testing.T) {
	t.Parallel()

	require.False(t, TaskStatusPending.Terminal())
	require.False(t, TaskStatusRunning.Terminal())
	require.True(t, TaskStatusCompleted.Terminal())
	require.True(t, TaskStatusFailed.Terminal())
	require.True(t, TaskStatusCancelled.Terminal())
}

func TestOpportunityQuery_Offset(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, OpportunityQuery{Page: 0, PerPage: 50}.Offset())
	require.Equal(t, 100, OpportunityQuery{Page: 3, PerPage: 50}.Offset())
}

func TestOpportunityQuery_Normalize(t *testing.T) {
	t.Parallel()

	q := OpportunityQuery{Page: 0, PerPage: 10000, SortBy: "DROP TABLE", SortDir: "sideways", Department: "  state "}.Normalize()
	require.Equal(t, OpportunityQuery{Page: 1, PerPage: MaxPerPage, SortBy: "id", SortDir: "desc", Department: "state"}, q)

	q = OpportunityQuery{Page: 3, SortBy: "Title", SortDir: "ASC"}.Normalize()
	require.Equal(t, DefaultPerPage, q.PerPage)
	require.Equal(t, "title", q.SortBy)
	require.Equal(t, "asc", q.SortDir)
	require.Equal(t, 100, q.Offset())
}

func TestNewOpportunityPage(t *testing.T) {
	t.Parallel()

	page := NewOpportunityPage(nil, 101, OpportunityQuery{Page: 2, PerPage: 50})
	require.Equal(t, 3, page.Pages)
	require.NotNil(t, page.Items)
	require.Empty(t, page.Items)
}
