package handler

import (
	"log/slog"
	"net/http"

	"rollsheet/internal/catalog"
	"rollsheet/internal/httputil"
)

// InstanceHandler serves the read-only instance catalog
type InstanceHandler struct {
	catalog *catalog.Registry
	logger  *slog.Logger
}

// NewInstanceHandler creates a new instance handler
func NewInstanceHandler(registry *catalog.Registry, logger *slog.Logger) *InstanceHandler {
	return &InstanceHandler{
		catalog: registry,
		logger:  logger,
	}
}

// ListInstances returns every instance in the catalog
// GET /api/instances
func (h *InstanceHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	user, _ := httputil.GetUser(r)
	httputil.RespondData(w, http.StatusOK, user, h.catalog.List())
}
