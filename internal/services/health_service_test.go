package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentroll/internal/operations"
	ws "rentroll/internal/websocket"
)

type fakeStore struct {
	pingErr error
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeStore) UploadProcessed(ctx context.Context, objectName string, data []byte) (string, error) {
	return objectName, nil
}
func (f *fakeStore) UploadFile(ctx context.Context, bucket, objectName, filePath string) (string, error) {
	return objectName, nil
}
func (f *fakeStore) DownloadURL(ctx context.Context, objectName string) (string, error) {
	return "https://example.com/" + objectName, nil
}

func newTestHealthService(t *testing.T) *HealthService {
	t.Helper()

	manager := operations.NewManager(nil, nil, nil, nil)
	t.Cleanup(manager.Broadcaster().Stop)

	queue := operations.NewJobQueue(1, operations.NewMemoryJobStore(), manager, nil)
	hub := ws.NewHub(nil)

	return NewHealthService("1.2.3", testPaths(t), manager, queue, hub, nil, nil)
}

func TestHealthCheck(t *testing.T) {
	hs := newTestHealthService(t)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.WithinDuration(t, time.Now(), status.Timestamp, time.Second)
}

func TestLivenessCheck(t *testing.T) {
	hs := newTestHealthService(t)

	status := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	assert.Contains(t, status.Runtime, "uptime")
	assert.Contains(t, status.Runtime, "go_version")
}

func TestReadinessCheckReady(t *testing.T) {
	hs := newTestHealthService(t)

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", status.Status)

	storage, ok := status.Services["storage"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "ready", storage.Status)
	assert.Contains(t, storage.Message, "disabled")
}

func TestReadinessCheckUnwritableDirectory(t *testing.T) {
	hs := newTestHealthService(t)
	require.NoError(t, os.Chmod(hs.paths.OutputDir, 0o555))
	t.Cleanup(func() { os.Chmod(hs.paths.OutputDir, 0o755) })

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)

	dirs, ok := status.Services["directories"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "not_ready", dirs.Status)
}

func TestReadinessCheckStorageUnreachable(t *testing.T) {
	hs := newTestHealthService(t)
	hs.store = &fakeStore{pingErr: errors.New("connection refused")}

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)

	storage, ok := status.Services["storage"].(ServiceHealth)
	require.True(t, ok)
	assert.Contains(t, storage.Message, "unreachable")
}

func TestVersionIncludesBuildInfo(t *testing.T) {
	hs := newTestHealthService(t).WithBuildInfo("2026-08-01T00:00:00Z", "abc123")

	info := hs.Version()
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "2026-08-01T00:00:00Z", info["build_time"])
	assert.Equal(t, "abc123", info["build_id"])
	assert.Contains(t, info, "go_version")
}

func TestSystemStats(t *testing.T) {
	hs := newTestHealthService(t)
	require.NoError(t, os.WriteFile(hs.paths.OutputFile("a.csv"), []byte("unit\n101\n"), 0o644))
	require.NoError(t, os.WriteFile(hs.paths.OutputFile("b.csv"), []byte("unit\n102\n"), 0o644))

	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.OutputFiles)
	assert.Greater(t, stats.OutputSizeBytes, int64(0))
	assert.Equal(t, 0, stats.WebSocketClients)
	assert.Equal(t, 0, stats.ActiveOperations)
}
