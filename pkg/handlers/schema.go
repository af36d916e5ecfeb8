package handlers

import (
	"net/http"
	"strconv"

	"github.com/querypilot/querypilot/pkg/errors"
	"github.com/querypilot/querypilot/pkg/models"
)

// SchemaDiff resolves two versions of a table. v2 defaults to the latest
// version, v1 to its predecessor.
func (h *Handler) SchemaDiff(w http.ResponseWriter, r *http.Request) {
	connectionID, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	table := q.Get("table")
	if table == "" {
		h.respondError(w, r, errors.New(errors.CodeInvalidRequest, "table parameter is required"))
		return
	}

	v1, err := optionalVersion(q.Get("v1"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	v2, err := optionalVersion(q.Get("v2"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	diff, err := h.schema.Diff(r.Context(), connectionID, table, v1, v2)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, diff)
}

// CompareVersions returns a unified diff and structural deltas between two
// versions given by id.
func (h *Handler) CompareVersions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, errA := strconv.ParseInt(q.Get("a"), 10, 64)
	b, errB := strconv.ParseInt(q.Get("b"), 10, 64)
	if errA != nil || errB != nil {
		h.respondError(w, r, errors.New(errors.CodeInvalidRequest, "a and b version id parameters are required"))
		return
	}

	cmp, err := h.schema.Compare(r.Context(), a, b)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cmp)
}

type rollbackRequest struct {
	FromVersionID int64 `json:"from_version_id"`
	ToVersionID   int64 `json:"to_version_id"`
}

// RollbackDDL synthesizes rollback DDL between two versions. The statement is
// returned to the caller, never executed.
func (h *Handler) RollbackDDL(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	plan, err := h.schema.RollbackDDL(r.Context(), req.FromVersionID, req.ToVersionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// ListVersions lists recorded versions for a connection, optionally filtered
// by table.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	connectionID, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	versions, err := h.schema.ListVersions(r.Context(), connectionID, r.URL.Query().Get("table"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

// ListVersionedTables lists tables with recorded versions.
func (h *Handler) ListVersionedTables(w http.ResponseWriter, r *http.Request) {
	connectionID, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	tables, err := h.schema.ListVersionedTables(r.Context(), connectionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

type tagRequest struct {
	TagName   string `json:"tag_name"`
	Memo      string `json:"memo,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

// TagVersion attaches a label to a schema version.
func (h *Handler) TagVersion(w http.ResponseWriter, r *http.Request) {
	versionID, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req tagRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	tag, err := h.schema.TagVersion(r.Context(), &models.SchemaVersionTag{
		SchemaVersionID: versionID,
		TagName:         req.TagName,
		Memo:            req.Memo,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tag)
}

// Untag removes a tag from a version.
func (h *Handler) Untag(w http.ResponseWriter, r *http.Request) {
	versionID, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	tagID, err := idParam(r, "tagID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.schema.Untag(r.Context(), versionID, tagID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TagsForVersion lists tags attached to a version.
func (h *Handler) TagsForVersion(w http.ResponseWriter, r *http.Request) {
	versionID, err := idParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	tags, err := h.schema.TagsForVersion(r.Context(), versionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

func optionalVersion(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidRequest, "version parameters must be integers")
	}
	return &v, nil
}
