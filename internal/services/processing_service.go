package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentroll/internal/config"
	"rentroll/internal/middleware"
	"rentroll/internal/operations"
)

// supportedExtensions are the workbook formats the pipeline can open.
var supportedExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
}

// ProcessRequest describes one workbook to run through the pipeline.
type ProcessRequest struct {
	FilePath   string
	FileName   string
	OutputName string
}

// ProcessResult is the outcome of a synchronous processing run.
type ProcessResult struct {
	OperationID   string        `json:"operation_id"`
	Status        string        `json:"status"`
	SelectedSheet string        `json:"selected_sheet,omitempty"`
	Records       int           `json:"records"`
	OutputPath    string        `json:"output_path,omitempty"`
	OutputFile    string        `json:"output_file,omitempty"`
	PropertyName  string        `json:"property_name,omitempty"`
	DownloadURL   string        `json:"download_url,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// OutputFile describes one generated CSV in the output directory.
type OutputFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ProcessingService runs rent roll workbooks through the operation pipeline,
// synchronously or as background jobs, and exposes the generated outputs.
type ProcessingService struct {
	manager *operations.Manager
	queue   *operations.JobQueue
	paths   *config.Paths
	logger  *slog.Logger
}

// NewProcessingService creates a processing service.
func NewProcessingService(manager *operations.Manager, queue *operations.JobQueue, paths *config.Paths, logger *slog.Logger) *ProcessingService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("ProcessingService initialized",
		slog.String("data_dir", paths.DataDir),
		slog.String("output_dir", paths.OutputDir))

	return &ProcessingService{
		manager: manager,
		queue:   queue,
		paths:   paths,
		logger:  logger,
	}
}

// ValidateUpload checks the uploaded file name before any processing starts.
func (s *ProcessingService) ValidateUpload(fileName string) error {
	if fileName == "" {
		return ErrEmptyFilename
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !supportedExtensions[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}
	return nil
}

// ProcessFile runs the full pipeline on a workbook and waits for the result.
func (s *ProcessingService) ProcessFile(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if err := s.ValidateUpload(fileNameOrBase(req)); err != nil {
		return nil, err
	}

	opReq := operations.OperationRequest{
		ID:         uuid.NewString(),
		FilePath:   req.FilePath,
		FileName:   req.FileName,
		OutputName: req.OutputName,
	}

	s.logger.InfoContext(ctx, "processing workbook",
		slog.String("operation_id", opReq.ID),
		slog.String("file_name", req.FileName))

	start := time.Now()
	resp, err := s.manager.Execute(ctx, opReq)
	if resp == nil {
		middleware.RecordProcessingMetrics(ctx, 0, 0, time.Since(start), false)
		return nil, fmt.Errorf("failed to execute operation: %w", err)
	}

	result := buildProcessResult(resp)
	success := err == nil && resp.Status == operations.OperationStatusCompleted
	middleware.RecordProcessingMetrics(ctx, resultInt(resp, operations.ContextKeySheetsTotal), result.Records, resp.Duration, success)

	if !success {
		s.logger.WarnContext(ctx, "processing failed",
			slog.String("operation_id", resp.ID),
			slog.String("error", resp.Error))
		if err != nil {
			return result, fmt.Errorf("processing failed: %w", err)
		}
		return result, fmt.Errorf("processing failed: %s", resp.Error)
	}

	s.logger.InfoContext(ctx, "processing completed",
		slog.String("operation_id", resp.ID),
		slog.String("output", result.OutputPath),
		slog.Int("records", result.Records))

	return result, nil
}

// SubmitJob enqueues a workbook for background processing and returns the
// job. The job ID doubles as the operation ID for websocket updates.
func (s *ProcessingService) SubmitJob(ctx context.Context, req ProcessRequest) (*operations.Job, error) {
	if err := s.ValidateUpload(fileNameOrBase(req)); err != nil {
		return nil, err
	}

	job := &operations.Job{
		ID: uuid.NewString(),
		Request: &operations.OperationRequest{
			FilePath:   req.FilePath,
			FileName:   req.FileName,
			OutputName: req.OutputName,
		},
		Metadata: map[string]interface{}{
			"file_name": req.FileName,
		},
	}

	if err := s.queue.Enqueue(job); err != nil {
		if err == operations.ErrQueueFull {
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.InfoContext(ctx, "job submitted",
		slog.String("job_id", job.ID),
		slog.String("file_name", req.FileName))

	return job, nil
}

// GetJob returns a job by ID.
func (s *ProcessingService) GetJob(ctx context.Context, id string) (*operations.Job, error) {
	if id == "" {
		return nil, ErrJobNotFound
	}
	job, err := s.queue.GetJob(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// ListJobs returns jobs, newest first.
func (s *ProcessingService) ListJobs(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error) {
	return s.queue.ListJobs(filter)
}

// CancelJob cancels a pending or running job.
func (s *ProcessingService) CancelJob(ctx context.Context, id string) error {
	if err := s.queue.CancelJob(id); err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "job cancelled", slog.String("job_id", id))
	return nil
}

// GetOperation returns the live state of a running operation.
func (s *ProcessingService) GetOperation(ctx context.Context, id string) (*operations.OperationState, error) {
	return s.manager.GetOperation(id)
}

// ListOperations returns all tracked operations.
func (s *ProcessingService) ListOperations(ctx context.Context) []*operations.OperationState {
	return s.manager.ListOperations()
}

// OperationSnapshots returns broadcast snapshots for all known operations.
func (s *ProcessingService) OperationSnapshots(ctx context.Context) []*operations.OperationSnapshot {
	return s.manager.Broadcaster().GetAllSnapshots()
}

// CancelOperation stops a running operation.
func (s *ProcessingService) CancelOperation(ctx context.Context, id string) error {
	if err := s.manager.CancelOperation(id); err != nil {
		return fmt.Errorf("failed to cancel operation %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "operation cancelled", slog.String("operation_id", id))
	return nil
}

// CancelAll stops every running operation. Called on shutdown.
func (s *ProcessingService) CancelAll(ctx context.Context) {
	for _, op := range s.manager.ListOperations() {
		if op.Status != operations.OperationStatusRunning {
			continue
		}
		if err := s.manager.CancelOperation(op.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to cancel operation",
				slog.String("operation_id", op.ID),
				slog.String("error", err.Error()))
		}
	}
}

// ListOutputs returns the CSV files in the output directory, newest first.
func (s *ProcessingService) ListOutputs(ctx context.Context) ([]OutputFile, error) {
	entries, err := os.ReadDir(s.paths.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoOutputsFound
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var outputs []OutputFile
	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".csv" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		outputs = append(outputs, OutputFile{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	if len(outputs) == 0 {
		return nil, ErrNoOutputsFound
	}

	sort.Slice(outputs, func(i, j int) bool {
		return outputs[i].Modified.After(outputs[j].Modified)
	})

	return outputs, nil
}

// ResolveOutput maps an output file name to its path on disk. Names with
// path separators or non-CSV extensions are rejected.
func (s *ProcessingService) ResolveOutput(ctx context.Context, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	if strings.ToLower(filepath.Ext(name)) != ".csv" {
		return "", fmt.Errorf("%w: only CSV outputs can be downloaded", ErrInvalidName)
	}

	path := s.paths.OutputFile(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrOutputNotFound, name)
		}
		return "", fmt.Errorf("failed to stat output file: %w", err)
	}

	return path, nil
}

// fileNameOrBase prefers the client-supplied name over the temp file path.
func fileNameOrBase(req ProcessRequest) string {
	if req.FileName != "" {
		return req.FileName
	}
	return filepath.Base(req.FilePath)
}

// buildProcessResult projects an operation response into the API shape.
func buildProcessResult(resp *operations.OperationResponse) *ProcessResult {
	result := &ProcessResult{
		OperationID:   resp.ID,
		Status:        string(resp.Status),
		SelectedSheet: resultString(resp, operations.ContextKeySelectedSheet),
		Records:       resultInt(resp, operations.ContextKeyRecordCount),
		OutputPath:    resultString(resp, operations.ContextKeyOutputPath),
		PropertyName:  resultString(resp, operations.ContextKeyPropertyName),
		DownloadURL:   resultString(resp, operations.ContextKeyDownloadURL),
		Duration:      resp.Duration,
	}
	if result.OutputPath != "" {
		result.OutputFile = filepath.Base(result.OutputPath)
	}
	return result
}

func resultString(resp *operations.OperationResponse, key string) string {
	if v, ok := resp.Results[key].(string); ok {
		return v
	}
	return ""
}

func resultInt(resp *operations.OperationResponse, key string) int {
	switch v := resp.Results[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
