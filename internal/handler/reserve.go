package handler

import (
	"log/slog"
	"net/http"

	"rollsheet/internal/domain/services"
	"rollsheet/internal/httputil"
)

// ReserveHandler handles soft-reserve HTTP requests
type ReserveHandler struct {
	service services.SheetService
	logger  *slog.Logger
}

// NewReserveHandler creates a new reserve handler
func NewReserveHandler(service services.SheetService, logger *slog.Logger) *ReserveHandler {
	return &ReserveHandler{
		service: service,
		logger:  logger,
	}
}

// CreateReserve adds or replaces the caller's soft-reserve claim
// POST /api/raids/{id}/reserves
func (h *ReserveHandler) CreateReserve(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req services.CreateReserveRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.RaidID = r.PathValue("id")

	sheet, err := h.service.CreateSoftReserve(r.Context(), user, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, user, sheet)
}

// DeleteReserve removes one soft-reserve claim
// DELETE /api/raids/{id}/reserves
func (h *ReserveHandler) DeleteReserve(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req services.DeleteReserveRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.RaidID = r.PathValue("id")

	sheet, err := h.service.DeleteSoftReserve(r.Context(), user, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, user, sheet)
}
