package operations

import (
	"time"
)

// Step identifiers for the rent roll pipeline.
const (
	StepIDAnalyze  = "analyze"
	StepIDMapping  = "mapping"
	StepIDGrouping = "grouping"
	StepIDExport   = "export"
)

// Human-readable step names.
const (
	StepNameAnalyze  = "Tab Analysis"
	StepNameMapping  = "Column Mapping"
	StepNameGrouping = "Row Grouping"
	StepNameExport   = "CSV Export"
)

// Context keys for values passed between steps through the operation state.
const (
	ContextKeyFilePath      = "file_path"
	ContextKeyFileName      = "file_name"
	ContextKeyOutputName    = "output_name"
	ContextKeySession       = "session"
	ContextKeySelectedSheet = "selected_sheet"
	ContextKeySheetsTotal   = "sheets_analyzed"
	ContextKeyRecordCount   = "records_exported"
	ContextKeyOutputPath    = "output_path"
	ContextKeyStorageObject = "storage_object"
	ContextKeyDownloadURL   = "download_url"
	ContextKeyPropertyName  = "property_name"
)

// WebSocket event types in the format the frontend expects.
const (
	EventTypeOperationSnapshot = "operation:snapshot"
	EventTypeOperationStatus   = "operation:status"
	EventTypeOperationProgress = "operation:progress"
	EventTypeOperationComplete = "operation:complete"
	EventTypeOperationError    = "operation:error"
)

// Default timeouts per step. Analysis and mapping dominate runtime because
// they read the full workbook and call the AI service.
const (
	DefaultStepTimeout     = 10 * time.Minute
	DefaultAnalyzeTimeout  = 5 * time.Minute
	DefaultMappingTimeout  = 2 * time.Minute
	DefaultGroupingTimeout = 1 * time.Minute
	DefaultExportTimeout   = 2 * time.Minute
)

// ExecutionMode defines how steps are executed.
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
)

// RetryConfig defines retry behavior for steps.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationRequest describes a rent roll processing run.
type OperationRequest struct {
	ID         string                 `json:"id"`
	FilePath   string                 `json:"file_path"`
	FileName   string                 `json:"file_name,omitempty"`
	OutputName string                 `json:"output_name,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// OperationResponse is returned after an operation execution finishes.
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Results  map[string]interface{} `json:"results,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// ProgressUpdate represents a progress report emitted by a step.
type ProgressUpdate struct {
	StepID   string                 `json:"step_id"`
	Progress float64                `json:"progress"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
