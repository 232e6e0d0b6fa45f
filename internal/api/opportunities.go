package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/report"
)

const exportFilename = "sam_opportunities.csv"

func (s *Server) opportunityQuery(r *http.Request) (crawler.OpportunityQuery, bool) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"), 1)
	if err != nil {
		return crawler.OpportunityQuery{}, false
	}
	perPage, err := queryInt(q.Get("per_page"), crawler.DefaultPerPage)
	if err != nil {
		return crawler.OpportunityQuery{}, false
	}
	return crawler.OpportunityQuery{
		Page:       page,
		PerPage:    perPage,
		SortBy:     q.Get("sort_by"),
		SortDir:    q.Get("sort_dir"),
		Department: q.Get("department"),
	}.Normalize(), true
}

func (s *Server) listOpportunities(w http.ResponseWriter, r *http.Request) {
	query, ok := s.opportunityQuery(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "page and per_page must be integers")
		return
	}
	page, err := s.deps.Opportunities.List(r.Context(), query)
	if err != nil {
		s.logger.Error("list opportunities failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not list opportunities")
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// exportOpportunities walks every page matching the filters and renders one CSV.
func (s *Server) exportOpportunities(w http.ResponseWriter, r *http.Request) {
	query, ok := s.opportunityQuery(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "page and per_page must be integers")
		return
	}
	query.Page = 1
	query.PerPage = crawler.MaxPerPage

	var items []crawler.StoredOpportunity
	for {
		page, err := s.deps.Opportunities.List(r.Context(), query)
		if err != nil {
			s.logger.Error("export opportunities failed", zap.Int("page", query.Page), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "could not export opportunities")
			return
		}
		items = append(items, page.Items...)
		if query.Page >= page.Pages {
			break
		}
		query.Page++
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+exportFilename)
	w.WriteHeader(http.StatusOK)
	if err := report.OpportunitiesCSV(w, items); err != nil {
		s.logger.Error("write export failed", zap.Error(err))
		return
	}
	s.logger.Info("opportunities exported", zap.Int("rows", len(items)))
}

func (s *Server) getOpportunity(w http.ResponseWriter, r *http.Request) {
	noticeID := chi.URLParam(r, "notice_id")
	opp, err := s.deps.Opportunities.Get(r.Context(), noticeID)
	if err != nil {
		s.storeError(w, err, "opportunity", noticeID)
		return
	}
	s.writeJSON(w, http.StatusOK, opp)
}

func (s *Server) deleteOpportunity(w http.ResponseWriter, r *http.Request) {
	noticeID := chi.URLParam(r, "notice_id")
	if err := s.deps.Opportunities.Delete(r.Context(), noticeID); err != nil {
		s.storeError(w, err, "opportunity", noticeID)
		return
	}
	s.logger.Info("opportunity deleted", zap.String("notice_id", noticeID))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := s.deps.Opportunities.Departments(r.Context())
	if err != nil {
		s.logger.Error("list departments failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not list departments")
		return
	}
	if departments == nil {
		departments = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"departments": departments})
}
