package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"rollsheet/internal/domain/services"
	"rollsheet/internal/fanout"
	"rollsheet/internal/handler/sse"
	"rollsheet/internal/httputil"
)

// LiveHandler streams sheet changes to viewers over Server-Sent Events
type LiveHandler struct {
	service services.SheetService
	fanout  *fanout.Registry
	config  *sse.Config
	logger  *slog.Logger
}

// NewLiveHandler creates a new live-stream handler
func NewLiveHandler(service services.SheetService, registry *fanout.Registry, config *sse.Config, logger *slog.Logger) *LiveHandler {
	if config == nil {
		config = sse.DefaultConfig()
	}
	return &LiveHandler{
		service: service,
		fanout:  registry,
		config:  config,
		logger:  logger,
	}
}

// Stream pushes the full redacted sheet on every committed change
// GET /api/raids/{id}/live
func (h *LiveHandler) Stream(w http.ResponseWriter, r *http.Request) {
	raidID := r.PathValue("id")
	if raidID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Raid ID is required")
		return
	}

	// Initial snapshot. Also rejects streams for raids that don't exist.
	sheet, err := h.service.GetSheet(r.Context(), raidID)
	if err != nil {
		handleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	writer := sse.NewSSEKeepAliveWriter(w, flusher)

	snapshot, err := json.Marshal(sheet)
	if err != nil {
		h.logger.Error("failed to encode sheet snapshot", "raid_id", raidID, "error", err)
		return
	}
	if err := writer.WriteEvent("sheet", snapshot); err != nil {
		return
	}

	// Subscribe after the snapshot so the client never sees a gap, only
	// a possible duplicate of the current state.
	sub := h.fanout.Subscribe(raidID)
	defer h.fanout.Unsubscribe(sub)

	keepAlive := sse.NewTickerKeepAlive(h.config.KeepAliveInterval)
	stopChan := keepAlive.Start(writer, h.logger)
	defer keepAlive.Stop()

	h.logger.Debug("live stream established", "raid_id", raidID)

	for {
		select {
		case <-r.Context().Done():
			return

		case <-stopChan:
			// Keep-alive detected a dead connection
			return

		case payload, open := <-sub.Updates():
			if !open {
				// Dropped by the registry for falling behind. The
				// client reconnects and gets a fresh snapshot.
				h.logger.Warn("live stream dropped as slow consumer", "raid_id", raidID)
				return
			}
			if err := writer.WriteEvent("sheet", payload); err != nil {
				return
			}
		}
	}
}
