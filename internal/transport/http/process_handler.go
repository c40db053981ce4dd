package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"rentroll/internal/config"
	apierrors "rentroll/internal/errors"
	"rentroll/internal/middleware"
	"rentroll/internal/operations"
	"rentroll/internal/rentroll"
	"rentroll/internal/services"
)

// maxMultipartMemory caps the in-memory part of multipart parsing; larger
// uploads spill to temp files.
const maxMultipartMemory = 32 << 20

// ProcessHandler handles workbook upload and processing requests
type ProcessHandler struct {
	service ProcessingServiceInterface
	paths   *config.Paths
	params  *middleware.QueryParamValidator
	forms   *middleware.ValidationMiddleware
	logger  *slog.Logger
}

// uploadForm carries the user-controlled names from a multipart upload.
type uploadForm struct {
	FileName   string `validate:"required,safe_filename,spreadsheet"`
	OutputName string `validate:"omitempty,safe_filename"`
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(service ProcessingServiceInterface, paths *config.Paths, logger *slog.Logger) *ProcessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessHandler{
		service: service,
		paths:   paths,
		params:  middleware.NewQueryParamValidator(logger),
		forms:   middleware.NewValidationMiddleware(logger),
		logger:  logger.With(slog.String("handler", "process")),
	}
}

// Process handles POST /api/process: synchronous upload-and-process.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	req, apiErr := h.saveUpload(r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}
	// The stored copy only exists for the duration of a synchronous run;
	// async uploads stay on disk until their job has consumed them.
	defer func() {
		if err := os.Remove(req.FilePath); err != nil && !os.IsNotExist(err) {
			h.logger.WarnContext(r.Context(), "failed to remove stored upload",
				slog.String("path", req.FilePath),
				slog.String("error", err.Error()))
		}
	}()

	result, err := h.service.ProcessFile(r.Context(), *req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "processing request failed",
			slog.String("file_name", req.FileName),
			slog.String("error", err.Error()))
		render.Render(w, r, processingError(err))
		return
	}

	render.JSON(w, r, result)
}

// ProcessAsync handles POST /api/process/async: enqueue and return a job ID.
func (h *ProcessHandler) ProcessAsync(w http.ResponseWriter, r *http.Request) {
	req, apiErr := h.saveUpload(r)
	if apiErr != nil {
		render.Render(w, r, apiErr)
		return
	}

	job, err := h.service.SubmitJob(r.Context(), *req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "job submission failed",
			slog.String("file_name", req.FileName),
			slog.String("error", err.Error()))
		render.Render(w, r, processingError(err))
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, job)
}

// GetJob handles GET /api/process/jobs/{id}
func (h *ProcessHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		render.Render(w, r, apierrors.ErrJobNotFound)
		return
	}
	render.JSON(w, r, job)
}

// ListJobs handles GET /api/process/jobs
func (h *ProcessHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status, ok := h.params.ValidateEnum(w, r, "status", []string{
		string(operations.JobStatusPending), string(operations.JobStatusRunning),
		string(operations.JobStatusCompleted), string(operations.JobStatusFailed),
		string(operations.JobStatusCancelled),
	}, "")
	if !ok {
		return
	}
	limit, ok := h.params.ValidateInt(w, r, "limit", 1, 500, 0)
	if !ok {
		return
	}

	filter := operations.JobFilter{
		Status: operations.JobStatus(status),
		Limit:  limit,
	}

	jobs, err := h.service.ListJobs(r.Context(), filter)
	if err != nil {
		render.Render(w, r, apierrors.NewWithDetails(http.StatusInternalServerError,
			"JOB_LIST_FAILED", "Failed to list jobs", err.Error()))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// CancelJob handles DELETE /api/process/jobs/{id}
func (h *ProcessHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.CancelJob(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			render.Render(w, r, apierrors.ErrJobNotFound)
			return
		}
		render.Render(w, r, apierrors.NewWithDetails(http.StatusConflict,
			"JOB_NOT_CANCELLABLE", "Job cannot be cancelled", err.Error()))
		return
	}
	render.JSON(w, r, map[string]interface{}{"id": id, "status": "cancelled"})
}

// saveUpload validates the multipart request and writes the workbook into
// the data directory. The stored name is prefixed with a short unique ID so
// concurrent uploads of the same file never collide.
func (h *ProcessHandler) saveUpload(r *http.Request) (*services.ProcessRequest, *apierrors.APIError) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, apierrors.ErrUploadTooLarge
		}
		return nil, apierrors.ErrMissingFile
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apierrors.ErrMissingFile
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	if fileName == "" || fileName == "." {
		return nil, apierrors.ErrEmptyFilename
	}
	if err := h.service.ValidateUpload(fileName); err != nil {
		if errors.Is(err, services.ErrEmptyFilename) {
			return nil, apierrors.ErrEmptyFilename
		}
		return nil, apierrors.ErrUnsupportedFile
	}

	outputName := r.FormValue("output_name")
	form := uploadForm{FileName: fileName, OutputName: outputName}
	if err := h.forms.ValidateStruct(form); err != nil {
		return nil, apierrors.NewWithDetails(http.StatusBadRequest,
			"VALIDATION_FAILED", "Upload validation failed", err.Error())
	}

	dstPath := filepath.Join(h.paths.DataDir, fmt.Sprintf("%s_%s", uuid.NewString()[:8], fileName))
	dst, err := os.Create(dstPath)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create upload file",
			slog.String("path", dstPath),
			slog.String("error", err.Error()))
		return nil, apierrors.ErrFileSystem
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(dstPath)
		return nil, apierrors.ErrFileSystem
	}

	return &services.ProcessRequest{
		FilePath:   dstPath,
		FileName:   fileName,
		OutputName: outputName,
	}, nil
}

// processingError maps service and engine errors onto API error codes.
func processingError(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, services.ErrMissingFile):
		return apierrors.ErrMissingFile
	case errors.Is(err, services.ErrEmptyFilename):
		return apierrors.ErrEmptyFilename
	case errors.Is(err, services.ErrUnsupportedFile):
		return apierrors.ErrUnsupportedFile
	case errors.Is(err, rentroll.ErrNoValidTabs):
		return apierrors.ErrNoValidTabs
	case errors.Is(err, rentroll.ErrNoData):
		return apierrors.NewWithDetails(http.StatusUnprocessableEntity,
			"NO_DATA_ROWS", "No data rows found after processing", err.Error())
	case errors.Is(err, rentroll.ErrNoMapping):
		return apierrors.NewWithDetails(http.StatusUnprocessableEntity,
			"NO_COLUMN_MAPPING", "Could not map workbook columns", err.Error())
	case errors.Is(err, services.ErrServiceUnavailable):
		return apierrors.ErrQueueFull
	default:
		return apierrors.NewWithDetails(http.StatusInternalServerError,
			"PROCESSING_FAILED", "Rent roll processing failed", err.Error())
	}
}
