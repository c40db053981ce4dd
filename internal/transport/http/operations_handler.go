package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "rentroll/internal/errors"
)

// OperationsHandler exposes live pipeline state over HTTP.
type OperationsHandler struct {
	service ProcessingServiceInterface
	logger  *slog.Logger
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(service ProcessingServiceInterface, logger *slog.Logger) *OperationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "operations")),
	}
}

// List handles GET /api/operations
func (h *OperationsHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshots := h.service.OperationSnapshots(r.Context())
	render.JSON(w, r, map[string]interface{}{
		"operations": snapshots,
		"count":      len(snapshots),
	})
}

// Status handles GET /api/operations/{id}/status
func (h *OperationsHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, snapshot := range h.service.OperationSnapshots(r.Context()) {
		if snapshot.OperationID == id {
			render.JSON(w, r, snapshot)
			return
		}
	}
	render.Render(w, r, apierrors.New(http.StatusNotFound,
		"OPERATION_NOT_FOUND", "Operation not found"))
}

// Stop handles POST /api/operations/{id}/stop
func (h *OperationsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.CancelOperation(r.Context(), id); err != nil {
		h.logger.WarnContext(r.Context(), "failed to stop operation",
			slog.String("operation_id", id),
			slog.String("error", err.Error()))
		render.Render(w, r, apierrors.NewWithDetails(http.StatusNotFound,
			"OPERATION_NOT_FOUND", "Operation not found or already finished", err.Error()))
		return
	}
	render.JSON(w, r, map[string]interface{}{"id": id, "status": "cancelled"})
}
