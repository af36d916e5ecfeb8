package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/querypilot/querypilot/pkg/errors"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// httpStatusFromError maps service error codes to HTTP status codes.
func httpStatusFromError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidRequest:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeAlreadyExists:
		return http.StatusConflict
	case errors.CodeConnectionFailed:
		return http.StatusBadGateway
	case errors.CodeStatementFailed, errors.CodeTransactionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}

	resp := errorResponse{
		Code:    errors.GetCode(err),
		Message: errors.GetMessage(err),
	}
	var qe *errors.QueryError
	if stderrors.As(err, &qe) {
		resp.Details = qe.Details
	}
	respondJSON(w, status, resp)
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidRequest, "invalid request body")
	}
	return nil
}

// idParam parses a numeric chi URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errors.New(errors.CodeInvalidRequest, "invalid "+name+" parameter")
	}
	return id, nil
}
