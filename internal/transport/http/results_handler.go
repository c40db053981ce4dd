package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "rentroll/internal/errors"
	"rentroll/internal/services"
)

// ResultsHandler serves the generated CSV files.
type ResultsHandler struct {
	service ProcessingServiceInterface
	logger  *slog.Logger
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(service ProcessingServiceInterface, logger *slog.Logger) *ResultsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "results")),
	}
}

// List handles GET /api/results
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	outputs, err := h.service.ListOutputs(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoOutputsFound) {
			render.JSON(w, r, map[string]interface{}{
				"results": []services.OutputFile{},
				"count":   0,
			})
			return
		}
		render.Render(w, r, apierrors.NewWithDetails(http.StatusInternalServerError,
			"RESULTS_LIST_FAILED", "Failed to list output files", err.Error()))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"results": outputs,
		"count":   len(outputs),
	})
}

// Download handles GET /api/results/{name}/download
func (h *ResultsHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := h.service.ResolveOutput(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidName):
			render.Render(w, r, apierrors.NewWithDetails(http.StatusBadRequest,
				"INVALID_FILE_NAME", "Invalid output file name", err.Error()))
		case errors.Is(err, services.ErrOutputNotFound):
			render.Render(w, r, apierrors.ErrFileNotFound)
		default:
			render.Render(w, r, apierrors.ErrFileSystem)
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}
