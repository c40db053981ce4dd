package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"rentroll/internal/config"
	"rentroll/internal/operations"
	"rentroll/internal/storage"
	ws "rentroll/internal/websocket"
)

// HealthStatus represents overall health check results
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	OutputFiles      int     `json:"output_files"`
	OutputSizeBytes  int64   `json:"output_size_bytes"`
	WebSocketClients int     `json:"websocket_clients"`
	ActiveOperations int     `json:"active_operations"`
	QueuedJobs       int     `json:"queued_jobs"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// HealthService provides health check and version information for the API.
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	paths     *config.Paths
	operation *operations.Manager
	queue     *operations.JobQueue
	hub       *ws.Hub
	store     storage.ObjectStore
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service with full dependencies.
// The store may be nil when object storage is not configured.
func NewHealthService(version string, paths *config.Paths, operation *operations.Manager, queue *operations.JobQueue, hub *ws.Hub, store storage.ObjectStore, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized", slog.String("version", version))

	return &HealthService{
		version:   version,
		paths:     paths,
		operation: operation,
		queue:     queue,
		hub:       hub,
		store:     store,
		startTime: time.Now(),
		logger:    logger,
	}
}

// WithBuildInfo attaches build metadata injected at link time.
func (hs *HealthService) WithBuildInfo(buildTime, buildID string) *HealthService {
	hs.buildTime = buildTime
	hs.buildID = buildID
	return hs
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// ReadinessCheck verifies the service can accept processing requests.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["directories"] = hs.checkDirectories()
	status.Services["websocket"] = hs.checkWebSocket()
	status.Services["operations"] = hs.checkOperations()
	status.Services["storage"] = hs.checkStorage(ctx)

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	var outputFiles int
	var outputSize int64

	filepath.Walk(hs.paths.OutputDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			outputFiles++
			outputSize += info.Size()
		}
		return nil
	})

	stats := SystemStats{
		UptimeSeconds:   time.Since(hs.startTime).Seconds(),
		OutputFiles:     outputFiles,
		OutputSizeBytes: outputSize,
		GoVersion:       runtime.Version(),
		OS:              runtime.GOOS,
		Arch:            runtime.GOARCH,
	}

	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
	}
	if hs.operation != nil {
		stats.ActiveOperations = len(hs.operation.ListOperations())
	}
	if hs.queue != nil {
		if pending, ok := hs.queue.Stats()["queue_size"].(int); ok {
			stats.QueuedJobs = pending
		}
	}

	return stats, nil
}

// checkDirectories verifies the data and output directories are writable.
// Uploads and exports both fail without them, so readiness depends on this.
func (hs *HealthService) checkDirectories() ServiceHealth {
	for _, dir := range []string{hs.paths.DataDir, hs.paths.OutputDir} {
		probe := filepath.Join(dir, ".writecheck")
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			return ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("directory not writable: %s: %v", dir, err),
			}
		}
		os.Remove(probe)
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "data and output directories are writable",
	}
}

// checkWebSocket checks websocket hub health
func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "websocket hub not initialized",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("websocket hub running with %d clients", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkOperations checks the pipeline manager health
func (hs *HealthService) checkOperations() ServiceHealth {
	if hs.operation == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "operation manager not initialized",
		}
	}

	running := 0
	for _, op := range hs.operation.ListOperations() {
		if op.Status == operations.OperationStatusRunning {
			running++
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("operation manager healthy, %d running", running),
	}
}

// checkStorage pings the object store. A disabled store never blocks
// readiness because outputs stay local.
func (hs *HealthService) checkStorage(ctx context.Context) ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{
			Status:  "ready",
			Message: "object storage disabled, outputs are local-only",
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := hs.store.Ping(pingCtx); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("object storage unreachable: %v", err),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "object storage reachable",
	}
}
