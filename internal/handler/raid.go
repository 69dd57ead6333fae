package handler

import (
	"log/slog"
	"net/http"

	"rollsheet/internal/domain/services"
	"rollsheet/internal/httputil"
)

// RaidHandler handles raid sheet HTTP requests
type RaidHandler struct {
	service services.SheetService
	logger  *slog.Logger
}

// NewRaidHandler creates a new raid handler
func NewRaidHandler(service services.SheetService, logger *slog.Logger) *RaidHandler {
	return &RaidHandler{
		service: service,
		logger:  logger,
	}
}

// CreateOrEditRaid creates a raid, or edits one when the body carries a raidId
// POST /api/raids
func (h *RaidHandler) CreateOrEditRaid(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req services.CreateEditRaidRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sheet, err := h.service.CreateOrEditRaid(r.Context(), user, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, user, sheet)
}

// MyRaids lists every raid the caller administers or attends
// GET /api/raids
func (h *RaidHandler) MyRaids(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	sheets, err := h.service.MyRaids(r.Context(), user)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, user, sheets)
}

// GetRaid retrieves the public view of a raid sheet
// GET /api/raids/{id}
func (h *RaidHandler) GetRaid(w http.ResponseWriter, r *http.Request) {
	raidID := r.PathValue("id")
	if raidID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Raid ID is required")
		return
	}

	sheet, err := h.service.GetSheet(r.Context(), raidID)
	if err != nil {
		handleError(w, err)
		return
	}

	// Identity is optional on the public read; the envelope still
	// reports it when present so first-time visitors learn their ID.
	user, _ := httputil.GetUser(r)
	httputil.RespondData(w, http.StatusOK, user, sheet)
}

// GetRaidForEdit retrieves the full sheet for the edit form, admins only
// GET /api/raids/{id}/edit
func (h *RaidHandler) GetRaidForEdit(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	raidID := r.PathValue("id")
	if raidID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Raid ID is required")
		return
	}

	sheet, err := h.service.GetSheetForEdit(r.Context(), user, raidID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, user, sheet)
}

// ToggleLock flips the raid's locked flag, admins only
// POST /api/raids/{id}/lock
func (h *RaidHandler) ToggleLock(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	raidID := r.PathValue("id")
	if raidID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Raid ID is required")
		return
	}

	sheet, err := h.service.ToggleLock(r.Context(), user, raidID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, user, sheet)
}

// EditAdmins promotes and/or demotes admins, admins only
// POST /api/raids/{id}/admins
func (h *RaidHandler) EditAdmins(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req services.EditAdminsRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.RaidID = r.PathValue("id")

	result, err := h.service.EditAdmins(r.Context(), user, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondData(w, http.StatusOK, user, result)
}
