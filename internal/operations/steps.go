package operations

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"rentroll/internal/exporter"
	"rentroll/internal/rentroll"
	"rentroll/internal/storage"
)

// sessionFromState pulls the shared processing session out of the state.
func sessionFromState(state *OperationState) (*rentroll.Session, error) {
	val, ok := state.GetContext(ContextKeySession)
	if !ok {
		return nil, NewFatalError("no processing session in operation state", nil)
	}
	session, ok := val.(*rentroll.Session)
	if !ok {
		return nil, NewFatalError("invalid processing session in operation state", nil)
	}
	return session, nil
}

// AnalyzeStep opens the workbook, scores every tab, and selects the best
// one. The opened session is parked in the state for the later steps.
type AnalyzeStep struct {
	BaseStep
	processor   *rentroll.Processor
	broadcaster *StatusBroadcaster
	logger      *slog.Logger
}

// NewAnalyzeStep creates the tab analysis step.
func NewAnalyzeStep(processor *rentroll.Processor, broadcaster *StatusBroadcaster, logger *slog.Logger) *AnalyzeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeStep{
		BaseStep:    NewBaseStep(StepIDAnalyze, StepNameAnalyze, nil),
		processor:   processor,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Validate requires a file path in the request configuration.
func (s *AnalyzeStep) Validate(state *OperationState) error {
	if state.GetConfigString(ContextKeyFilePath) == "" {
		return fmt.Errorf("no input file configured")
	}
	return nil
}

// Execute runs tab analysis and records the selected sheet.
func (s *AnalyzeStep) Execute(ctx context.Context, state *OperationState) error {
	filePath := state.GetConfigString(ContextKeyFilePath)

	s.reportProgress(state.ID, 10, "Opening workbook")
	session, err := s.processor.NewSession(filePath)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	// CloseResources releases the session when the operation finishes.
	state.SetContext(ContextKeySession, session)

	s.reportProgress(state.ID, 40, fmt.Sprintf("Analyzing %d tabs", len(session.SheetOrder)))
	if err := s.processor.Analyze(ctx, session); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	state.SetContext(ContextKeySelectedSheet, session.Best.SheetName)
	state.SetContext(ContextKeySheetsTotal, len(session.Analyses))

	if stepState := state.GetStep(s.ID()); stepState != nil {
		stepState.SetMetadata("selected_sheet", session.Best.SheetName)
		stepState.SetMetadata("score", session.Best.Score)
	}

	s.reportProgress(state.ID, 90, fmt.Sprintf("Selected tab %q", session.Best.SheetName))
	return nil
}

func (s *AnalyzeStep) reportProgress(operationID string, progress int, message string) {
	if s.broadcaster != nil {
		s.broadcaster.UpdateStepProgress(operationID, s.ID(), progress, message)
	}
}

// MappingStep maps the detected header columns onto the rent roll fields.
type MappingStep struct {
	BaseStep
	processor   *rentroll.Processor
	broadcaster *StatusBroadcaster
	logger      *slog.Logger
}

// NewMappingStep creates the column mapping step.
func NewMappingStep(processor *rentroll.Processor, broadcaster *StatusBroadcaster, logger *slog.Logger) *MappingStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &MappingStep{
		BaseStep:    NewBaseStep(StepIDMapping, StepNameMapping, []string{StepIDAnalyze}),
		processor:   processor,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Execute generates the column mapping for the selected sheet.
func (s *MappingStep) Execute(ctx context.Context, state *OperationState) error {
	session, err := sessionFromState(state)
	if err != nil {
		return err
	}

	if s.broadcaster != nil {
		s.broadcaster.UpdateStepProgress(state.ID, s.ID(), 30, "Mapping columns")
	}

	if err := s.processor.Map(ctx, session); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	if stepState := state.GetStep(s.ID()); stepState != nil {
		stepState.SetMetadata("mapping", session.Mapping)
	}
	return nil
}

// GroupingStep groups the data rows under their primary unit rows.
type GroupingStep struct {
	BaseStep
	processor   *rentroll.Processor
	broadcaster *StatusBroadcaster
	logger      *slog.Logger
}

// NewGroupingStep creates the row grouping step.
func NewGroupingStep(processor *rentroll.Processor, broadcaster *StatusBroadcaster, logger *slog.Logger) *GroupingStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupingStep{
		BaseStep:    NewBaseStep(StepIDGrouping, StepNameGrouping, []string{StepIDMapping}),
		processor:   processor,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Execute groups the rows of the selected sheet.
func (s *GroupingStep) Execute(ctx context.Context, state *OperationState) error {
	session, err := sessionFromState(state)
	if err != nil {
		return err
	}

	if s.broadcaster != nil {
		s.broadcaster.UpdateStepProgress(state.ID, s.ID(), 30, fmt.Sprintf("Grouping %d rows", len(session.DataRows)))
	}

	if err := s.processor.Group(ctx, session); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	if stepState := state.GetStep(s.ID()); stepState != nil {
		stepState.SetMetadata("groups", len(session.Groups))
	}
	return nil
}

// ExportStep flattens the groups into records, writes the CSV, and when a
// store is configured uploads the result and produces a download URL.
type ExportStep struct {
	BaseStep
	processor   *rentroll.Processor
	writer      *exporter.CSVWriter
	store       storage.ObjectStore
	broadcaster *StatusBroadcaster
	logger      *slog.Logger
}

// NewExportStep creates the export step. The store may be nil; the CSV is
// then only written locally.
func NewExportStep(processor *rentroll.Processor, writer *exporter.CSVWriter, store storage.ObjectStore, broadcaster *StatusBroadcaster, logger *slog.Logger) *ExportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportStep{
		BaseStep:    NewBaseStep(StepIDExport, StepNameExport, []string{StepIDGrouping}),
		processor:   processor,
		writer:      writer,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Execute builds and exports the final table.
func (s *ExportStep) Execute(ctx context.Context, state *OperationState) error {
	session, err := sessionFromState(state)
	if err != nil {
		return err
	}

	s.reportProgress(state.ID, 20, "Building export table")
	if err := s.processor.Flatten(ctx, session); err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	state.SetContext(ContextKeyRecordCount, len(session.Records))

	outputName := state.GetConfigString(ContextKeyOutputName)
	if outputName == "" {
		s.reportProgress(state.ID, 40, "Extracting property information")
		session.Property = s.processor.ExtractPropertyInfo(ctx, session)
		state.SetContext(ContextKeyPropertyName, session.Property.Name)
		outputName = exportFileName(session.Property)
	}

	s.reportProgress(state.ID, 60, fmt.Sprintf("Writing %s", outputName))
	outputPath, err := s.writer.WriteTable(outputName, session.Table)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}
	state.SetContext(ContextKeyOutputPath, outputPath)

	if s.store == nil {
		s.reportProgress(state.ID, 95, "Export written")
		return nil
	}

	s.reportProgress(state.ID, 80, "Uploading to object storage")
	data, err := exporter.RenderTable(session.Table)
	if err != nil {
		return NewExecutionError(s.ID(), err, false)
	}

	location, err := s.store.UploadProcessed(ctx, outputName, data)
	if err != nil {
		// Storage hiccups are worth a retry; the local CSV already exists.
		return NewExecutionError(s.ID(), err, true)
	}
	state.SetContext(ContextKeyStorageObject, location)

	url, err := s.store.DownloadURL(ctx, outputName)
	if err != nil {
		return NewExecutionError(s.ID(), err, true)
	}
	state.SetContext(ContextKeyDownloadURL, url)

	s.reportProgress(state.ID, 95, "Upload complete")
	return nil
}

func (s *ExportStep) reportProgress(operationID string, progress int, message string) {
	if s.broadcaster != nil {
		s.broadcaster.UpdateStepProgress(operationID, s.ID(), progress, message)
	}
}

var fileNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// exportFileName derives the CSV file name from the extracted property
// information, fitting it for use as both a file and an object name.
func exportFileName(property rentroll.PropertyInfo) string {
	name := strings.TrimSpace(property.Name)
	if name == "" {
		name = "rent_roll"
	}
	name = fileNameSanitizer.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "rent_roll"
	}

	if date := strings.TrimSpace(property.AsOfDate); date != "" {
		date = fileNameSanitizer.ReplaceAllString(date, "-")
		name = name + "_" + date
	}

	return strings.ToLower(name) + ".csv"
}

// RegisterRentRollSteps registers the four pipeline steps on the manager in
// their natural order.
func RegisterRentRollSteps(m *Manager, processor *rentroll.Processor, writer *exporter.CSVWriter, store storage.ObjectStore, logger *slog.Logger) error {
	broadcaster := m.Broadcaster()
	steps := []Step{
		NewAnalyzeStep(processor, broadcaster, logger),
		NewMappingStep(processor, broadcaster, logger),
		NewGroupingStep(processor, broadcaster, logger),
		NewExportStep(processor, writer, store, broadcaster, logger),
	}
	for _, step := range steps {
		if err := m.RegisterStep(step); err != nil {
			return err
		}
	}
	return nil
}
