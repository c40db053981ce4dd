package http

import (
	"context"

	"rentroll/internal/operations"
	"rentroll/internal/services"
)

// ProcessingServiceInterface defines the processing operations the
// handlers depend on. The concrete implementation lives in services.
type ProcessingServiceInterface interface {
	ValidateUpload(fileName string) error
	ProcessFile(ctx context.Context, req services.ProcessRequest) (*services.ProcessResult, error)
	SubmitJob(ctx context.Context, req services.ProcessRequest) (*operations.Job, error)
	GetJob(ctx context.Context, id string) (*operations.Job, error)
	ListJobs(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error)
	CancelJob(ctx context.Context, id string) error
	OperationSnapshots(ctx context.Context) []*operations.OperationSnapshot
	CancelOperation(ctx context.Context, id string) error
	ListOutputs(ctx context.Context) ([]services.OutputFile, error)
	ResolveOutput(ctx context.Context, name string) (string, error)
}
