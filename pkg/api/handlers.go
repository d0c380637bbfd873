package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adtrack/adtrack/pkg/diagnose"
	"github.com/adtrack/adtrack/pkg/tracker"
)

// operationView is the snapshot shape the dashboard depends on. Status uses
// the dashboard vocabulary, so a running operation renders as
// "in_progress". This shape is a contract; change it only with versioning.
type operationView struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Status        string                  `json:"status"`
	Progress      float64                 `json:"progress"`
	StartedAt     *time.Time              `json:"started_at,omitempty"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
	Error         *tracker.OperationError `json:"error,omitempty"`
	Metadata      map[string]any          `json:"metadata,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	LogCount      int                     `json:"log_count"`
	RestoreCount  int                     `json:"restore_point_count"`
	Logs          []tracker.LogEntry      `json:"logs,omitempty"`
	RestorePoints []tracker.RestorePoint  `json:"restore_points,omitempty"`
}

func toView(op *tracker.Operation, includeDetail bool) operationView {
	v := operationView{
		ID:           op.ID,
		Type:         op.Type,
		Status:       op.Status.Dashboard(),
		Progress:     op.Progress,
		StartedAt:    op.StartedAt,
		CompletedAt:  op.CompletedAt,
		Error:        op.Error,
		Metadata:     op.Metadata,
		CreatedAt:    op.CreatedAt,
		LogCount:     len(op.Logs),
		RestoreCount: len(op.RestorePoints),
	}
	if includeDetail {
		v.Logs = op.Logs
		v.RestorePoints = op.RestorePoints
	}
	return v
}

// retryRequest selects what to retry. With a fix, the analyzer's descriptor
// drives the derived metadata; without one, the operation is retried as-is
// with any caller-supplied metadata overrides.
type retryRequest struct {
	Fix      *diagnose.AutoFix `json:"fix,omitempty"`
	Type     string            `json:"type,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := tracker.ListFilter{
		Type:   q.Get("type"),
		SortBy: q.Get("sort_by"),
	}
	if v := q.Get("status"); v != "" {
		status, err := tracker.ParseStatus(v)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid status: %s", v)
			return
		}
		filter.Status = status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpError(w, http.StatusBadRequest, "invalid limit: %s", v)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpError(w, http.StatusBadRequest, "invalid offset: %s", v)
			return
		}
		filter.Offset = n
	}
	if v := q.Get("sort_direction"); v != "" {
		filter.SortDirection = tracker.SortDirection(v)
	}

	ops := s.deps.Tracker.List(filter)
	views := make([]operationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, toView(op, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": views})
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	op, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toView(op, true))
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	op, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": op.Logs})
}

func (s *Server) handleGetRestorePoints(w http.ResponseWriter, r *http.Request) {
	op, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restore_points": op.RestorePoints})
}

func (s *Server) handleGetFindings(w http.ResponseWriter, r *http.Request) {
	op, ok := s.lookup(w, r)
	if !ok {
		return
	}
	findings := s.deps.Analyzer.Analyze(op)
	writeJSON(w, http.StatusOK, map[string]any{"findings": findings})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req retryRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
	}

	var newID string
	var err error
	if req.Fix != nil {
		var op *tracker.Operation
		op, err = s.deps.Tracker.Get(id)
		if err == nil {
			newID, err = diagnose.ApplyFix(s.deps.Retry, op, req.Fix)
		}
	} else {
		newType := req.Type
		if newType == "" {
			op, getErr := s.deps.Tracker.Get(id)
			if getErr != nil {
				s.writeTrackerError(w, getErr)
				return
			}
			newType = "retry_" + op.Type
		}
		newID, err = s.deps.Retry.Retry(id, newType, req.Metadata)
	}
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"operation_id": newID})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	op, err := s.deps.Tracker.Get(id)
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	if op.Status.IsTerminal() {
		httpError(w, http.StatusConflict, "operation already finished: %s", op.Status)
		return
	}

	if err := s.deps.Tracker.Cancel(id); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": tracker.StatusCancelled.Dashboard()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Archive != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Archive.HealthCheck(ctx); err != nil {
			httpError(w, http.StatusServiceUnavailable, "archive unavailable: %v", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// lookup resolves the operation from the live registry, falling back to
// the archive for operations that predate this process.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*tracker.Operation, bool) {
	id := chi.URLParam(r, "id")

	op, err := s.deps.Tracker.Get(id)
	if err == nil {
		return op, true
	}
	if tracker.IsNotFound(err) && s.deps.Archive != nil {
		archived, archErr := s.deps.Archive.GetOperation(r.Context(), id)
		if archErr == nil {
			return archived, true
		}
	}

	s.writeTrackerError(w, err)
	return nil, false
}

func (s *Server) writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case tracker.IsNotFound(err):
		httpError(w, http.StatusNotFound, "%v", err)
	case tracker.IsValidation(err):
		httpError(w, http.StatusBadRequest, "%v", err)
	case tracker.IsConflict(err):
		httpError(w, http.StatusConflict, "%v", err)
	default:
		s.logger.Error().Err(err).Msg("Internal error")
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": fmt.Sprintf(format, args...),
	})
}
