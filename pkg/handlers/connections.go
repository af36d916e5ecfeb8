package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
)

type connectionRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
	Hosts    string `json:"hosts,omitempty"`
}

// CreateConnection registers a new connection target.
func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.respondError(w, r, errors.New(errors.CodeInvalidRequest, "name is required"))
		return
	}
	if strings.TrimSpace(req.Host) == "" && strings.TrimSpace(req.Hosts) == "" {
		h.respondError(w, r, errors.New(errors.CodeInvalidRequest, "host or hosts is required"))
		return
	}

	now := time.Now()
	target := &models.ConnectionTarget{
		Name:      req.Name,
		Host:      req.Host,
		Port:      req.Port,
		Database:  req.Database,
		Username:  req.Username,
		Password:  req.Password,
		Hosts:     req.Hosts,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if target.Port == 0 {
		target.Port = 3306
	}

	id, err := h.connections.Create(r.Context(), target)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	target.ID = id
	respondJSON(w, http.StatusCreated, target)
}

// ListConnections lists registered targets. Passwords never serialize.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	targets, err := h.connections.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"connections": targets})
}

// GetConnection returns one target by id.
func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	target, err := h.connections.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, target)
}

// DeleteConnection removes a target; its executions and versions cascade.
func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.connections.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestConnection verifies reachability and returns server info.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	info, err := h.execution.TestConnection(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// ListDatabases lists databases on the target.
func (h *Handler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	databases, err := h.execution.ListDatabases(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"databases": databases})
}

// ListTables lists tables in the target's current database.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	tables, err := h.execution.ListTables(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

// TableSchema returns the live definition of one table.
func (h *Handler) TableSchema(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	table := chi.URLParam(r, "table")

	definition, err := h.execution.TableSchema(r.Context(), id, table)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"table": table, "definition": definition})
}
