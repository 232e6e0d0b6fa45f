package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sam-opportunity-crawler/internal/auth"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/sam-opportunity-crawler/internal/id/uuid"
)

// crawlRequest mirrors the submission body. Every field is optional.
type crawlRequest struct {
	Type       *string `json:"type"`
	PageNumber *int    `json:"pageNumber"`
	PageSize   *int    `json:"pageSize"`
	Params     *string `json:"params"`
}

func (s *Server) parameters(req crawlRequest) crawler.TaskParameters {
	params := s.deps.Defaults
	if params.SearchType == "" {
		params.SearchType = crawler.SearchType8A
	}
	if params.Page == 0 {
		params.Page = 1
	}
	if req.Type != nil {
		params.SearchType = crawler.ParseSearchType(*req.Type)
	}
	if req.PageNumber != nil {
		params.Page = *req.PageNumber
	}
	if req.PageSize != nil {
		params.PageSize = *req.PageSize
	}
	if req.Params != nil {
		params.Query = *req.Params
	}
	return params
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	params := s.parameters(req)
	if err := params.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	taskID, err := s.deps.IDs.NewID()
	if err != nil {
		s.logger.Error("generate task id failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not create task")
		return
	}
	now := s.deps.Clock.Now()
	task := crawler.CrawlTask{
		ID:         taskID,
		Type:       crawler.TaskType,
		Status:     crawler.TaskStatusPending,
		Parameters: params,
		CreatedBy:  auth.Subject(r.Context()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.deps.Tasks.CreateTask(r.Context(), task); err != nil {
		s.logger.Error("create task failed", zap.String("task_id", taskID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not create task")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	item := crawler.QueueItem{TaskID: taskID, Params: params, Submitted: now.Unix()}
	if err := s.deps.Queue.Enqueue(ctx, item); err != nil {
		s.logger.Warn("enqueue failed", zap.String("task_id", taskID), zap.Error(err))
		markErr := s.deps.Tasks.UpdateTaskStatus(context.WithoutCancel(r.Context()), taskID,
			crawler.TaskStatusFailed, "enqueue failed: "+err.Error(), crawler.TaskCounters{})
		if markErr != nil {
			s.logger.Error("mark task failed", zap.String("task_id", taskID), zap.Error(markErr))
		}
		s.writeError(w, http.StatusServiceUnavailable, "crawl queue is unavailable")
		return
	}

	s.logger.Info("crawl submitted",
		zap.String("task_id", taskID),
		zap.String("search_type", string(params.SearchType)),
		zap.Int("page", params.Page),
		zap.Int("page_size", params.PageSize),
		zap.String("created_by", task.CreatedBy),
	)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) listCrawls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), 50)
	if err != nil || limit < 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	filter := crawler.TaskFilter{
		Status:    crawler.TaskStatus(q.Get("status")),
		CreatedBy: q.Get("created_by"),
		Limit:     limit,
		Offset:    offset,
	}
	tasks, err := s.deps.Tasks.ListTasks(r.Context(), filter)
	if err != nil {
		s.logger.Error("list tasks failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not list tasks")
		return
	}
	if tasks == nil {
		tasks = []crawler.CrawlTask{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) getCrawl(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if !uuid.Valid(taskID) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	task, err := s.deps.Tasks.GetTask(r.Context(), taskID)
	if err != nil {
		s.storeError(w, err, "task", taskID)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) cancelCrawl(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if !uuid.Valid(taskID) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	task, err := s.deps.Tasks.GetTask(r.Context(), taskID)
	if err != nil {
		s.storeError(w, err, "task", taskID)
		return
	}
	if task.Status != crawler.TaskStatusPending {
		s.writeError(w, http.StatusConflict, "only pending tasks can be cancelled, task is "+string(task.Status))
		return
	}
	err = s.deps.Tasks.UpdateTaskStatus(r.Context(), taskID, crawler.TaskStatusCancelled,
		"cancelled by "+subjectOr(r.Context(), "anonymous"), task.Counters)
	if err != nil {
		if errors.Is(err, crawler.ErrInvalidTransition) {
			s.writeError(w, http.StatusConflict, "task is no longer pending")
			return
		}
		s.storeError(w, err, "task", taskID)
		return
	}
	s.logger.Info("crawl cancelled", zap.String("task_id", taskID))
	s.writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": string(crawler.TaskStatusCancelled)})
}

func (s *Server) deleteCrawl(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if !uuid.Valid(taskID) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err := s.deps.Tasks.SoftDeleteTask(r.Context(), taskID, subjectOr(r.Context(), "anonymous")); err != nil {
		s.storeError(w, err, "task", taskID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// storeError maps ErrNotFound to 404 and everything else to 500.
func (s *Server) storeError(w http.ResponseWriter, err error, kind, key string) {
	if errors.Is(err, crawler.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, kind+" not found")
		return
	}
	s.logger.Error(kind+" store failed", zap.String("key", key), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func subjectOr(ctx context.Context, fallback string) string {
	if sub := auth.Subject(ctx); sub != "" {
		return sub
	}
	return fallback
}

func queryInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return n, nil
}
