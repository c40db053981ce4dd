package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rentroll/internal/operations"
)

func newOperationsRouter(svc ProcessingServiceInterface) *chi.Mux {
	h := NewOperationsHandler(svc, nil)
	r := chi.NewRouter()
	r.Get("/api/operations", h.List)
	r.Get("/api/operations/{id}/status", h.Status)
	r.Post("/api/operations/{id}/stop", h.Stop)
	return r
}

func TestOperationsList(t *testing.T) {
	svc := new(MockProcessingService)
	svc.On("OperationSnapshots", mock.Anything).Return([]*operations.OperationSnapshot{
		{OperationID: "op-1", Status: "running", Progress: 40},
		{OperationID: "op-2", Status: "completed", Progress: 100},
	})
	router := newOperationsRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/operations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeJSON(t, rec)["count"])
}

func TestOperationsStatus(t *testing.T) {
	svc := new(MockProcessingService)
	svc.On("OperationSnapshots", mock.Anything).Return([]*operations.OperationSnapshot{
		{OperationID: "op-1", Status: "running", Progress: 40, CurrentStep: "mapping"},
	})
	router := newOperationsRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/operations/op-1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeJSON(t, rec)
	assert.Equal(t, "running", payload["status"])
	assert.Equal(t, "mapping", payload["current_step"])
}

func TestOperationsStatusNotFound(t *testing.T) {
	svc := new(MockProcessingService)
	svc.On("OperationSnapshots", mock.Anything).Return([]*operations.OperationSnapshot{})
	router := newOperationsRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/operations/missing/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "OPERATION_NOT_FOUND", decodeJSON(t, rec)["error_code"])
}

func TestOperationsStop(t *testing.T) {
	svc := new(MockProcessingService)
	svc.On("CancelOperation", mock.Anything, "op-1").Return(nil)
	router := newOperationsRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/operations/op-1/stop", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeJSON(t, rec)["status"])
}

func TestOperationsStopNotFound(t *testing.T) {
	svc := new(MockProcessingService)
	svc.On("CancelOperation", mock.Anything, "missing").
		Return(fmt.Errorf("operation not found"))
	router := newOperationsRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/operations/missing/stop", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
