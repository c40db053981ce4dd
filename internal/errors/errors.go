package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest  = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrMissingFile     = New(http.StatusBadRequest, "MISSING_FILE", "No file part in request")
	ErrEmptyFilename   = New(http.StatusBadRequest, "EMPTY_FILENAME", "No selected file")
	ErrUnsupportedFile = New(http.StatusBadRequest, "UNSUPPORTED_FILE", "Unsupported file type, expected .xlsx or .xls")

	// 404 Not Found
	ErrNotFound     = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrJobNotFound  = New(http.StatusNotFound, "JOB_NOT_FOUND", "Processing job not found")
	ErrFileNotFound = New(http.StatusNotFound, "FILE_NOT_FOUND", "File not found")

	// 413 Request Entity Too Large
	ErrUploadTooLarge = New(http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "Uploaded file exceeds size limit")

	// 422 Unprocessable Entity
	ErrNoValidTabs = New(http.StatusUnprocessableEntity, "NO_VALID_TABS", "No valid tabs were found in the workbook")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer   = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrProcessingFailed = New(http.StatusInternalServerError, "PROCESSING_FAILED", "Rent roll processing failed")
	ErrFileSystem       = New(http.StatusInternalServerError, "FILESYSTEM_ERROR", "File system error")

	// 503 Service Unavailable
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
	ErrQueueFull          = New(http.StatusServiceUnavailable, "QUEUE_FULL", "Processing queue is full")
)

// Domain sentinel errors for the processing engine
var (
	// ErrPreprocessing reports a failure while analyzing or mapping a workbook
	ErrPreprocessing = errors.New("preprocessing error")
	// ErrGrouping reports a failure while grouping rent roll rows
	ErrGrouping = errors.New("grouping error")
	// ErrConfiguration reports an invalid processing configuration
	ErrConfiguration = errors.New("configuration error")
)

// PreprocessingError wraps an error as a preprocessing failure
func PreprocessingError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPreprocessing, fmt.Sprintf(format, args...))
}

// GroupingError wraps an error as a grouping failure
func GroupingError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrGrouping, fmt.Sprintf(format, args...))
}

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// NotFoundError creates a not found error with details
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// ProcessingError creates a processing failure error with details
func ProcessingError(err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "PROCESSING_FAILED", "Rent roll processing failed", err.Error())
}

// StorageError creates an object storage failure error with details
func StorageError(operation string, err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "STORAGE_ERROR", fmt.Sprintf("Storage error during %s", operation), err.Error())
}

// FileSystemError creates a filesystem error
func FileSystemError(operation string, err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "FILESYSTEM_ERROR", fmt.Sprintf("File system error during %s", operation), err.Error())
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(NewErrorResponse(err))
}
