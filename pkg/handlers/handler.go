// Package handlers exposes the JSON HTTP surface.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/querypilot/querypilot/pkg/repositories"
	"github.com/querypilot/querypilot/pkg/services"
)

// Handler wires the service layer to the chi router.
type Handler struct {
	execution   services.ExecutionService
	schema      services.SchemaService
	validation  services.ValidationService
	advisor     services.AdvisorService
	progress    services.ProgressService
	connections repositories.ConnectionRepository
	logger      services.Logger
}

// NewHandler creates a new handler.
func NewHandler(
	execution services.ExecutionService,
	schema services.SchemaService,
	validation services.ValidationService,
	advisor services.AdvisorService,
	progress services.ProgressService,
	connections repositories.ConnectionRepository,
	logger services.Logger,
) *Handler {
	return &Handler{
		execution:   execution,
		schema:      schema,
		validation:  validation,
		advisor:     advisor,
		progress:    progress,
		connections: connections,
		logger:      logger,
	}
}

// Routes mounts every endpoint under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/execute", h.Execute)
		r.Post("/execute-batch", h.ExecuteBatch)
		r.Post("/validate", h.Validate)
		r.Post("/analyze-alter", h.AnalyzeAlter)
		r.Post("/rollback-ddl", h.RollbackDDL)

		r.Get("/history", h.History)

		r.Route("/connections", func(r chi.Router) {
			r.Post("/", h.CreateConnection)
			r.Get("/", h.ListConnections)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetConnection)
				r.Delete("/", h.DeleteConnection)
				r.Post("/test", h.TestConnection)
				r.Get("/databases", h.ListDatabases)
				r.Get("/tables", h.ListTables)
				r.Get("/tables/{table}/schema", h.TableSchema)
				r.Get("/schema-diff", h.SchemaDiff)
				r.Get("/versions", h.ListVersions)
				r.Get("/versioned-tables", h.ListVersionedTables)
			})
		})

		r.Route("/versions/{id}", func(r chi.Router) {
			r.Get("/tags", h.TagsForVersion)
			r.Post("/tags", h.TagVersion)
			r.Delete("/tags/{tagID}", h.Untag)
		})
		r.Get("/versions/compare", h.CompareVersions)

		r.Route("/batches/{id}", func(r chi.Router) {
			r.Get("/progress", h.BatchProgress)
			r.Post("/stop", h.StopBatch)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
