package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	err := New(http.StatusBadRequest, "TEST_ERROR", "test message")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "TEST_ERROR", err.ErrorCode)
	assert.Equal(t, "test message", err.Error())
}

func TestNewWithDetails(t *testing.T) {
	err := NewWithDetails(http.StatusNotFound, "NOT_FOUND", "missing", "job-123")
	assert.Equal(t, "job-123", err.Details)
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{"missing file", ErrMissingFile, http.StatusBadRequest, "MISSING_FILE"},
		{"empty filename", ErrEmptyFilename, http.StatusBadRequest, "EMPTY_FILENAME"},
		{"job not found", ErrJobNotFound, http.StatusNotFound, "JOB_NOT_FOUND"},
		{"no valid tabs", ErrNoValidTabs, http.StatusUnprocessableEntity, "NO_VALID_TABS"},
		{"processing failed", ErrProcessingFailed, http.StatusInternalServerError, "PROCESSING_FAILED"},
		{"queue full", ErrQueueFull, http.StatusServiceUnavailable, "QUEUE_FULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
		})
	}
}

func TestDomainSentinels(t *testing.T) {
	err := PreprocessingError("header row not found in sheet %q", "Summary")
	assert.True(t, errors.Is(err, ErrPreprocessing))
	assert.Contains(t, err.Error(), "Summary")

	err = GroupingError("no primary rows")
	assert.True(t, errors.Is(err, ErrGrouping))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrJobNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "JOB_NOT_FOUND", resp.Error.ErrorCode)
}

func TestProblemDetailsMarshalJSON(t *testing.T) {
	p := NewProblemDetails(http.StatusUnprocessableEntity, "/problems/no-valid-tabs",
		"No Valid Tabs", "no tabs scored above threshold", "/api/process").
		WithTraceID("trace-1").
		WithExtension("filename", "roll.xlsx").
		WithExtension("best_score", 12)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "No Valid Tabs", m["title"])
	assert.Equal(t, float64(422), m["status"])
	assert.Equal(t, "trace-1", m["trace_id"])
	assert.Equal(t, "roll.xlsx", m["filename"])
	assert.Equal(t, float64(12), m["best_score"])
}

func TestProblemDetailsNoExtensions(t *testing.T) {
	p := NewProblemDetails(http.StatusNotFound, "/problems/not-found", "Not Found", "", "")
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "detail")
}
