package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
)

// Execute runs a single statement.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req models.ExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	rec, err := h.execution.ExecuteSingle(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// ExecuteBatch runs a transactional batch.
func (h *Handler) ExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	outcome, err := h.execution.ExecuteBatch(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

type validateRequest struct {
	ConnectionID int64  `json:"connection_id"`
	Statement    string `json:"statement"`
}

// Validate pre-flights statements without executing them.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	results, err := h.validation.Validate(r.Context(), req.ConnectionID, req.Statement)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type analyzeAlterRequest struct {
	Statement string `json:"statement"`
}

// AnalyzeAlter returns online-DDL strategy suggestions for an ALTER statement.
func (h *Handler) AnalyzeAlter(w http.ResponseWriter, r *http.Request) {
	var req analyzeAlterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Statement == "" {
		h.respondError(w, r, errors.ErrEmptyStatement)
		return
	}
	respondJSON(w, http.StatusOK, h.advisor.Analyze(req.Statement))
}

// History returns filtered execution records.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilterFromQuery(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	records, err := h.execution.History(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"executions": records})
}

// BatchProgress reports live progress of a running batch.
func (h *Handler) BatchProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.progress.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// StopBatch flags a batch for cooperative stop.
func (h *Handler) StopBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.progress.RequestStop(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "stop requested"})
}

func historyFilterFromQuery(r *http.Request) (models.HistoryFilter, error) {
	q := r.URL.Query()
	var filter models.HistoryFilter

	if v := q.Get("connection_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, errors.New(errors.CodeInvalidRequest, "invalid connection_id")
		}
		filter.ConnectionID = &id
	}
	if v := q.Get("kind"); v != "" {
		kind := models.QueryKindFromString(v)
		filter.Kind = &kind
	}
	if v := q.Get("status"); v != "" {
		status := models.ExecutionStatus(v)
		filter.Status = &status
	}
	filter.Actor = q.Get("actor")
	filter.Search = q.Get("search")

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New(errors.CodeInvalidRequest, "invalid from timestamp")
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New(errors.CodeInvalidRequest, "invalid to timestamp")
		}
		filter.To = &t
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}
	return filter, nil
}
