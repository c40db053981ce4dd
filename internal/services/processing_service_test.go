package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentroll/internal/config"
	"rentroll/internal/operations"
)

// stubStep stands in for the real pipeline and writes the result keys the
// export step would produce.
type stubStep struct {
	operations.BaseStep
	execErr error
	results map[string]interface{}
}

func newStubStep(id string, results map[string]interface{}, execErr error) *stubStep {
	return &stubStep{
		BaseStep: operations.NewBaseStep(id, id, nil),
		execErr:  execErr,
		results:  results,
	}
}

func (s *stubStep) Execute(ctx context.Context, state *operations.OperationState) error {
	if s.execErr != nil {
		return operations.NewFatalError("step failed", s.execErr)
	}
	for k, v := range s.results {
		state.SetContext(k, v)
	}
	return nil
}

func (s *stubStep) Validate(state *operations.OperationState) error { return nil }

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	paths, err := config.ResolvePaths(config.PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

func newTestProcessingService(t *testing.T, steps ...operations.Step) *ProcessingService {
	t.Helper()

	cfg := operations.NewConfigBuilder().
		WithRetryConfig(operations.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}).
		Build()
	manager := operations.NewManager(nil, nil, cfg, nil)
	for _, step := range steps {
		require.NoError(t, manager.RegisterStep(step))
	}
	t.Cleanup(manager.Broadcaster().Stop)

	queue := operations.NewJobQueue(1, operations.NewMemoryJobStore(), manager, nil)
	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)
	t.Cleanup(func() {
		cancel()
		queue.Stop(time.Second)
	})

	return NewProcessingService(manager, queue, testPaths(t), nil)
}

func TestProcessFileSuccess(t *testing.T) {
	results := map[string]interface{}{
		operations.ContextKeySelectedSheet: "Rent Roll",
		operations.ContextKeySheetsTotal:   2,
		operations.ContextKeyRecordCount:   14,
		operations.ContextKeyOutputPath:    filepath.Join("output", "harbor_court.csv"),
		operations.ContextKeyPropertyName:  "Harbor Court",
	}
	svc := newTestProcessingService(t, newStubStep("export", results, nil))

	result, err := svc.ProcessFile(context.Background(), ProcessRequest{
		FilePath: "/tmp/upload-123.xlsx",
		FileName: "harbor_court.xlsx",
	})
	require.NoError(t, err)

	assert.Equal(t, string(operations.OperationStatusCompleted), result.Status)
	assert.Equal(t, "Rent Roll", result.SelectedSheet)
	assert.Equal(t, 14, result.Records)
	assert.Equal(t, "harbor_court.csv", result.OutputFile)
	assert.Equal(t, "Harbor Court", result.PropertyName)
	assert.NotEmpty(t, result.OperationID)
}

func TestProcessFileFailureReturnsResult(t *testing.T) {
	svc := newTestProcessingService(t, newStubStep("export", nil, errors.New("corrupt workbook")))

	result, err := svc.ProcessFile(context.Background(), ProcessRequest{
		FilePath: "/tmp/upload-123.xlsx",
		FileName: "broken.xlsx",
	})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, string(operations.OperationStatusFailed), result.Status)
	assert.Contains(t, err.Error(), "processing failed")
}

func TestProcessFileRejectsBadUploads(t *testing.T) {
	svc := newTestProcessingService(t, newStubStep("export", nil, nil))

	_, err := svc.ProcessFile(context.Background(), ProcessRequest{FilePath: "/tmp/upload", FileName: "notes.txt"})
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = svc.ProcessFile(context.Background(), ProcessRequest{})
	assert.ErrorIs(t, err, ErrEmptyFilename)
}

func TestSubmitJobAndGetJob(t *testing.T) {
	results := map[string]interface{}{operations.ContextKeyRecordCount: 3}
	svc := newTestProcessingService(t, newStubStep("export", results, nil))

	job, err := svc.SubmitJob(context.Background(), ProcessRequest{
		FilePath: "/tmp/upload-456.xlsx",
		FileName: "spring_gardens.xlsx",
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	require.Eventually(t, func() bool {
		got, err := svc.GetJob(context.Background(), job.ID)
		return err == nil && got.Status == operations.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, 3, got.Result.Results[operations.ContextKeyRecordCount])

	jobs, err := svc.ListJobs(context.Background(), operations.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestSubmitJobRejectsBadUploads(t *testing.T) {
	svc := newTestProcessingService(t, newStubStep("export", nil, nil))

	_, err := svc.SubmitJob(context.Background(), ProcessRequest{FilePath: "/tmp/u", FileName: "report.pdf"})
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestGetJobNotFound(t *testing.T) {
	svc := newTestProcessingService(t, newStubStep("export", nil, nil))

	_, err := svc.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = svc.GetJob(context.Background(), "")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestListOutputs(t *testing.T) {
	svc := newTestProcessingService(t, newStubStep("export", nil, nil))

	_, err := svc.ListOutputs(context.Background())
	assert.ErrorIs(t, err, ErrNoOutputsFound)

	older := svc.paths.OutputFile("older.csv")
	newer := svc.paths.OutputFile("newer.csv")
	require.NoError(t, os.WriteFile(older, []byte("a,b\n"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("c,d\n"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))
	// Non-CSV files in the output dir (logs) must not be listed.
	require.NoError(t, os.WriteFile(svc.paths.OutputFile("app.log"), []byte("{}"), 0o644))

	outputs, err := svc.ListOutputs(context.Background())
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "newer.csv", outputs[0].Name)
	assert.Equal(t, "older.csv", outputs[1].Name)
}

func TestResolveOutput(t *testing.T) {
	svc := newTestProcessingService(t, newStubStep("export", nil, nil))

	path := svc.paths.OutputFile("harbor_court.csv")
	require.NoError(t, os.WriteFile(path, []byte("unit\n101A\n"), 0o644))

	resolved, err := svc.ResolveOutput(context.Background(), "harbor_court.csv")
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	_, err = svc.ResolveOutput(context.Background(), "missing.csv")
	assert.ErrorIs(t, err, ErrOutputNotFound)

	_, err = svc.ResolveOutput(context.Background(), "../secrets.csv")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.ResolveOutput(context.Background(), "app.log")
	assert.ErrorIs(t, err, ErrInvalidName)
}
