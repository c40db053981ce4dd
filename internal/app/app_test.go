package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentroll/internal/infrastructure"
)

// newTestApplication builds the full application against a temp directory.
// A single constructor call covers wiring, routing and directory creation;
// the OTel Prometheus exporter registers global collectors, so the
// application is built once per process.
func newTestApplication(t *testing.T) *Application {
	t.Helper()

	base := t.TempDir()
	t.Setenv("RENTROLL_PATHS_BASE_DIR", base)
	t.Setenv("RENTROLL_LOGGING_OUTPUT", "console")
	infrastructure.ResetLoggerForTesting()

	a, err := NewApplication()
	require.NoError(t, err)
	t.Cleanup(a.Manager.Broadcaster().Stop)

	return a
}

func TestApplicationWiring(t *testing.T) {
	a := newTestApplication(t)

	t.Run("creates required directories", func(t *testing.T) {
		for _, dir := range []string{a.Paths.DataDir, a.Paths.TestDataDir, a.Paths.OutputDir} {
			info, err := os.Stat(dir)
			require.NoError(t, err, dir)
			assert.True(t, info.IsDir(), dir)
		}
	})

	t.Run("directory creation is idempotent", func(t *testing.T) {
		require.NoError(t, a.Paths.EnsureDirectories())
	})

	t.Run("registers the pipeline steps", func(t *testing.T) {
		ids := a.Manager.Registry().ListIDs()
		assert.ElementsMatch(t, []string{"analyze", "mapping", "grouping", "export"}, ids)
	})

	t.Run("binds all interfaces on the configured port", func(t *testing.T) {
		assert.Equal(t, "0.0.0.0:8000", a.Server.Addr)
	})

	t.Run("root reports online", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, "online", payload["status"])
	})

	t.Run("health endpoint responds", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "healthy")
	})

	t.Run("readiness endpoint responds", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ready")
	})

	t.Run("process without file part returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/process", bytes.NewReader(nil))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=empty")
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "MISSING_FILE")
	})

	t.Run("process rejects non-multipart content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/process", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNSUPPORTED_MEDIA_TYPE")
	})

	t.Run("results listing starts empty", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, float64(0), payload["count"])
	})

	t.Run("metrics endpoint is mounted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("output paths resolve under the base directory", func(t *testing.T) {
		assert.Equal(t, filepath.Join(a.Paths.BaseDir, "output"), a.Paths.OutputDir)
	})
}
