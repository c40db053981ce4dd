package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// resultContextKeys are the context values surfaced in the final response.
var resultContextKeys = []string{
	ContextKeySelectedSheet,
	ContextKeySheetsTotal,
	ContextKeyRecordCount,
	ContextKeyOutputPath,
	ContextKeyStorageObject,
	ContextKeyDownloadURL,
	ContextKeyPropertyName,
}

// Manager orchestrates pipeline execution.
type Manager struct {
	registry    *Registry
	config      *Config
	broadcaster *StatusBroadcaster
	logger      *slog.Logger

	mu         sync.RWMutex
	operations map[string]*OperationState
}

// NewManager creates a pipeline manager. A nil registry or config falls back
// to empty and default values respectively.
func NewManager(hub WebSocketHub, registry *Registry, config *Config, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		registry:    registry,
		config:      config,
		broadcaster: NewStatusBroadcaster(hub, logger),
		logger:      logger.With(slog.String("component", "operations")),
		operations:  make(map[string]*OperationState),
	}
}

// RegisterStep registers a step with the pipeline.
func (m *Manager) RegisterStep(step Step) error {
	return m.registry.Register(step)
}

// Registry returns the step registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Broadcaster returns the status broadcaster.
func (m *Manager) Broadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// Config returns the current configuration.
func (m *Manager) Config() *Config {
	return m.config
}

// Execute runs the pipeline for the given request. The returned response
// reflects the final state; the error mirrors the first failing step.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	state := NewOperationState(req.ID)
	if req.FilePath != "" {
		state.SetConfig(ContextKeyFilePath, req.FilePath)
	}
	if req.FileName != "" {
		state.SetConfig(ContextKeyFileName, req.FileName)
	}
	if req.OutputName != "" {
		state.SetConfig(ContextKeyOutputName, req.OutputName)
	}
	for k, v := range req.Parameters {
		state.SetConfig(k, v)
	}

	m.storeOperation(state)
	defer m.removeOperation(req.ID)
	defer state.CloseResources()

	steps, err := m.selectSteps(ctx, req)
	if err != nil {
		state.Fail(err)
		return m.createResponse(state), err
	}

	stepIDs := make([]string, len(steps))
	for i, step := range steps {
		state.SetStep(step.ID(), NewStepState(step.ID(), step.Name()))
		stepIDs[i] = step.ID()
	}

	m.broadcaster.CreateOperation(req.ID, stepIDs)

	state.Start()
	m.broadcaster.StartOperation(req.ID)

	err = m.executeSequential(ctx, state, steps)

	if err != nil {
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
	} else {
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, "Operation completed successfully")
	}

	return m.createResponse(state), err
}

// selectSteps resolves the steps to run: a single requested step, or the
// whole pipeline in dependency order.
func (m *Manager) selectSteps(ctx context.Context, req OperationRequest) ([]Step, error) {
	stepParam, _ := req.Parameters["step"].(string)
	if stepParam != "" && stepParam != "full_pipeline" {
		requested, err := m.registry.Get(stepParam)
		if err != nil {
			return nil, fmt.Errorf("requested step not found: %s", stepParam)
		}
		m.logger.InfoContext(ctx, "executing single step",
			slog.String("step_id", stepParam),
			slog.String("operation_id", req.ID))
		return []Step{requested}, nil
	}

	steps, err := m.registry.DependencyOrder()
	if err != nil {
		return nil, fmt.Errorf("failed to order steps: %w", err)
	}
	m.logger.InfoContext(ctx, "executing full pipeline",
		slog.Int("step_count", len(steps)),
		slog.String("operation_id", req.ID))
	return steps, nil
}

// executeSequential runs the steps one by one, skipping steps whose
// dependencies failed.
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		select {
		case <-ctx.Done():
			m.logger.WarnContext(ctx, "operation cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			return NewCancellationError(step.ID())
		default:
		}

		stepState := state.GetStep(step.ID())
		if stepState != nil && stepState.GetStatus() == StepStatusSkipped {
			continue
		}

		m.logger.InfoContext(ctx, "executing step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, step); err != nil {
			m.logger.ErrorContext(ctx, "step failed",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
			if !m.config.ContinueOnError {
				m.skipDependentSteps(state, steps, step.ID())
				return err
			}
			m.logger.WarnContext(ctx, "continuing after step failure",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
		}
	}

	m.logger.InfoContext(ctx, "all steps finished",
		slog.String("operation_id", state.ID))
	return nil
}

// executeStep runs one step with dependency checks, validation, a per-step
// timeout and retry with exponential backoff.
func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStep(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", nil)
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(fmt.Sprintf("Dependencies not met: %v", err))
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 0, fmt.Sprintf("Skipped: %v", err))
		return err
	}

	if err := step.Validate(state); err != nil {
		stepState.Skip(fmt.Sprintf("Validation failed: %v", err))
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 0, fmt.Sprintf("Skipped: validation failed: %v", err))
		return NewValidationError(step.ID(), err.Error())
	}

	timeout := m.config.StepTimeout(step.ID())
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retryConfig := m.config.RetryConfig
	var lastErr error

	for attempt := 1; attempt <= retryConfig.MaxAttempts; attempt++ {
		stepState.Start()
		m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 1, "Step started")

		startTime := time.Now()
		err := step.Execute(stepCtx, state)
		duration := time.Since(startTime)

		if err == nil {
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed successfully")
			m.logger.InfoContext(ctx, "step completed",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.Duration("duration", duration))
			return nil
		}

		lastErr = err
		m.logger.ErrorContext(ctx, "step execution failed",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))

		if !IsRetryable(err) || attempt >= retryConfig.MaxAttempts {
			stepState.Fail(err)
			m.broadcaster.FailStep(state.ID, step.ID(), err)
			return WrapError(err, step.ID(), "step execution failed")
		}

		delay := m.retryDelay(attempt, retryConfig)
		m.logger.WarnContext(ctx, "retrying step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-stepCtx.Done():
			timeoutErr := NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(timeoutErr)
			m.broadcaster.FailStep(state.ID, step.ID(), timeoutErr)
			return timeoutErr
		}
	}

	stepState.Fail(lastErr)
	m.broadcaster.FailStep(state.ID, step.ID(), lastErr)
	return WrapError(lastErr, step.ID(), "step execution failed after retries")
}

// skipDependentSteps marks every step that depends on the failed step as
// skipped, transitively.
func (m *Manager) skipDependentSteps(state *OperationState, steps []Step, failedStepID string) {
	for _, step := range steps {
		for _, dep := range step.Dependencies() {
			if dep != failedStepID {
				continue
			}
			stepState := state.GetStep(step.ID())
			if stepState != nil && stepState.GetStatus() == StepStatusPending {
				stepState.Skip(fmt.Sprintf("Dependency %s failed", failedStepID))
				m.broadcaster.UpdateStepProgress(state.ID, step.ID(), 0, fmt.Sprintf("Skipped: dependency %s failed", failedStepID))
				m.skipDependentSteps(state, steps, step.ID())
			}
			break
		}
	}
}

// checkDependencies verifies that every dependency completed.
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.Dependencies() {
		depState := state.GetStep(dep)
		if depState == nil {
			return NewDependencyError(step.ID(), dep, fmt.Sprintf("dependency %s not found", dep))
		}
		if status := depState.GetStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep, fmt.Sprintf("dependency %s not completed (status: %s)", dep, status))
		}
	}
	return nil
}

func (m *Manager) retryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
	}
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// createResponse builds a response from the final state, surfacing the
// result context keys that steps populated.
func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	resp := &OperationResponse{
		ID:       state.ID,
		Status:   state.Status,
		Duration: state.Duration(),
		Steps:    state.Steps,
	}

	results := make(map[string]interface{})
	for _, key := range resultContextKeys {
		if val, ok := state.GetContext(key); ok {
			results[key] = val
		}
	}
	if len(results) > 0 {
		resp.Results = results
	}

	if state.Error != nil {
		resp.Error = state.Error.Error()
	}

	return resp
}

// GetOperation retrieves a clone of a running operation's state.
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.operations[id]
	if !exists {
		return nil, ErrOperationNotFound
	}
	return state.Clone(), nil
}

// ListOperations returns clones of all active operations.
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]*OperationState, 0, len(m.operations))
	for _, state := range m.operations {
		operations = append(operations, state.Clone())
	}
	return operations
}

// CancelOperation cancels a running operation.
func (m *Manager) CancelOperation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.operations[id]
	if !exists {
		return ErrOperationNotFound
	}

	state.Cancel()
	m.broadcaster.CancelOperation(id)
	return nil
}

func (m *Manager) storeOperation(state *OperationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = state
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}
