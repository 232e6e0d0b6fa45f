package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
)

// DefaultOpportunityTable is used when no table name is configured.
const DefaultOpportunityTable = "sam_opportunities"

const uniqueViolation = "23505"

// opportunityColumns lists the writable columns in insert order.
var opportunityColumns = []string{
	"notice_id", "title", "publish_date", "response_date", "link", "cot", "osa",
	"naics", "department", "state", "city", "email", "search_type", "organization_id",
}

// OpportunityStore persists opportunities keyed by notice_id.
type OpportunityStore struct {
	pool  DB
	table string
}

// NewOpportunityStore wraps pool. An empty table uses DefaultOpportunityTable.
func NewOpportunityStore(pool DB, table string) (*OpportunityStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, DefaultOpportunityTable)
	if err != nil {
		return nil, err
	}
	return &OpportunityStore{pool: pool, table: name}, nil
}

// Close releases the underlying pool resources.
func (s *OpportunityStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the table when it is missing.
func (s *OpportunityStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	notice_id TEXT NOT NULL UNIQUE,
	title TEXT,
	publish_date TEXT,
	response_date TEXT,
	link TEXT,
	cot TEXT,
	osa TEXT,
	naics TEXT,
	department TEXT,
	state TEXT,
	city TEXT,
	email TEXT,
	search_type TEXT,
	organization_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *OpportunityStore) upsertSQL() string {
	updates := make([]string, 0, len(opportunityColumns)-1)
	placeholders := make([]string, 0, len(opportunityColumns))
	for i, col := range opportunityColumns {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		if col != "notice_id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	return fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES (%s)
ON CONFLICT (notice_id) DO UPDATE SET %s
RETURNING (xmax = 0) AS inserted`,
		s.table,
		strings.Join(opportunityColumns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
}

func opportunityArgs(opp crawler.Opportunity) []any {
	return []any{
		opp.NoticeID, opp.Title, opp.PublishDate, opp.ResponseDate, opp.Link,
		opp.ContractOpportunityType, opp.OriginalSetAside, opp.NAICSCode,
		opp.Department, opp.State, opp.City, opp.Email, string(opp.SearchType), opp.OrganizationID,
	}
}

// Upsert inserts opp or overwrites every column of the row with the same
// notice_id. A race on the notice_id key is retried once through the
// conflict path; any other unique violation is ErrConstraintViolation.
func (s *OpportunityStore) Upsert(ctx context.Context, opp crawler.Opportunity) (crawler.UpsertResult, error) {
	if !opp.HasNoticeID() {
		return "", fmt.Errorf("upsert opportunity: notice_id is required")
	}
	query := s.upsertSQL()
	args := opportunityArgs(opp)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var inserted bool
		err := s.pool.QueryRow(ctx, query, args...).Scan(&inserted)
		if err == nil {
			if inserted {
				return crawler.UpsertInserted, nil
			}
			return crawler.UpsertUpdated, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName != s.noticeConstraint() {
				return "", fmt.Errorf("upsert opportunity %s: %w: %s", opp.NoticeID, crawler.ErrConstraintViolation, pgErr.ConstraintName)
			}
			lastErr = err
			continue
		}
		return "", fmt.Errorf("upsert opportunity %s: %w", opp.NoticeID, err)
	}
	return "", fmt.Errorf("upsert opportunity %s: %w", opp.NoticeID, lastErr)
}

func (s *OpportunityStore) noticeConstraint() string {
	return s.table + "_notice_id_key"
}

func (s *OpportunityStore) selectColumns() []string {
	cols := append([]string{"id"}, opportunityColumns...)
	return append(cols, "created_at")
}

func scanOpportunity(row pgx.Row) (crawler.StoredOpportunity, error) {
	var (
		out        crawler.StoredOpportunity
		searchType string
	)
	err := row.Scan(
		&out.ID,
		&out.NoticeID, &out.Title, &out.PublishDate, &out.ResponseDate, &out.Link,
		&out.ContractOpportunityType, &out.OriginalSetAside, &out.NAICSCode,
		&out.Department, &out.State, &out.City, &out.Email, &searchType, &out.OrganizationID,
		&out.CreatedAt,
	)
	out.SearchType = crawler.SearchType(searchType)
	return out, err
}

// Get loads one opportunity by notice id.
func (s *OpportunityStore) Get(ctx context.Context, noticeID string) (crawler.StoredOpportunity, error) {
	query, args, err := psql.Select(s.selectColumns()...).
		From(s.table).
		Where(sq.Eq{"notice_id": noticeID}).
		ToSql()
	if err != nil {
		return crawler.StoredOpportunity{}, fmt.Errorf("build get query: %w", err)
	}
	opp, err := scanOpportunity(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.StoredOpportunity{}, crawler.ErrNotFound
	}
	if err != nil {
		return crawler.StoredOpportunity{}, fmt.Errorf("get opportunity %s: %w", noticeID, err)
	}
	return opp, nil
}

// List returns one page of opportunities plus the unpaged total.
func (s *OpportunityStore) List(ctx context.Context, q crawler.OpportunityQuery) (crawler.OpportunityPage, error) {
	q = q.Normalize()

	var where sq.Sqlizer = sq.Expr("1=1")
	if q.Department != "" {
		where = sq.ILike{"department": "%" + q.Department + "%"}
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From(s.table).Where(where).ToSql()
	if err != nil {
		return crawler.OpportunityPage{}, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return crawler.OpportunityPage{}, fmt.Errorf("count opportunities: %w", err)
	}

	listSQL, listArgs, err := psql.Select(s.selectColumns()...).
		From(s.table).
		Where(where).
		OrderBy(q.SortBy + " " + strings.ToUpper(q.SortDir)).
		Limit(uint64(q.PerPage)).
		Offset(uint64(q.Offset())).
		ToSql()
	if err != nil {
		return crawler.OpportunityPage{}, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return crawler.OpportunityPage{}, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	items := make([]crawler.StoredOpportunity, 0, q.PerPage)
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return crawler.OpportunityPage{}, fmt.Errorf("scan opportunity: %w", err)
		}
		items = append(items, opp)
	}
	if err := rows.Err(); err != nil {
		return crawler.OpportunityPage{}, fmt.Errorf("iterate opportunities: %w", err)
	}
	return crawler.NewOpportunityPage(items, total, q), nil
}

// Delete removes one opportunity by notice id.
func (s *OpportunityStore) Delete(ctx context.Context, noticeID string) error {
	query, args, err := psql.Delete(s.table).Where(sq.Eq{"notice_id": noticeID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete opportunity %s: %w", noticeID, err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.ErrNotFound
	}
	return nil
}

// Departments lists distinct resolved department names, skipping the sentinel.
func (s *OpportunityStore) Departments(ctx context.Context) ([]string, error) {
	query, args, err := psql.Select("department").
		Distinct().
		From(s.table).
		Where(sq.NotEq{"department": []string{"", crawler.Sentinel}}).
		OrderBy("department").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build departments query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var dept string
		if err := rows.Scan(&dept); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, dept)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return out, nil
}
