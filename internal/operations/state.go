package operations

import (
	"io"
	"sync"
	"time"
)

// OperationStatusValue represents the overall operation status.
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// OperationState is the complete state of one pipeline execution. Steps
// communicate through the Context map; request parameters live in Config.
type OperationState struct {
	mu sync.RWMutex

	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	// Context carries data between steps (session, counts, paths).
	Context map[string]interface{} `json:"context"`

	// Config carries request parameters into the steps.
	Config map[string]interface{} `json:"config"`

	Error error `json:"error,omitempty"`
}

// NewOperationState creates a pending operation state.
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
	}
}

// Start marks the operation as running.
func (s *OperationState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = OperationStatusRunning
	s.StartTime = time.Now()
}

// Complete marks the operation as completed.
func (s *OperationState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = OperationStatusCompleted
}

// Fail marks the operation as failed.
func (s *OperationState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = OperationStatusFailed
	s.Error = err
}

// Cancel marks the operation as cancelled.
func (s *OperationState) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = OperationStatusCancelled
}

// GetStep returns the state of a specific step.
func (s *OperationState) GetStep(stepID string) *StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Steps[stepID]
}

// SetStep stores the state of a specific step.
func (s *OperationState) SetStep(stepID string, step *StepState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Steps[stepID] = step
}

// GetContext retrieves a value from the operation context.
func (s *OperationState) GetContext(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.Context[key]
	return val, ok
}

// SetContext sets a value in the operation context.
func (s *OperationState) SetContext(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Context[key] = value
}

// GetConfig retrieves a configuration value.
func (s *OperationState) GetConfig(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.Config[key]
	return val, ok
}

// GetConfigString retrieves a configuration value as a string.
func (s *OperationState) GetConfigString(key string) string {
	val, ok := s.GetConfig(key)
	if !ok {
		return ""
	}
	str, _ := val.(string)
	return str
}

// SetConfig sets a configuration value.
func (s *OperationState) SetConfig(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Config[key] = value
}

// Duration returns the duration of the operation execution.
func (s *OperationState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// HasFailures returns true if any step has failed.
func (s *OperationState) HasFailures() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, step := range s.Steps {
		if step.GetStatus() == StepStatusFailed {
			return true
		}
	}
	return false
}

// CloseResources closes every io.Closer stored in the operation context.
// Steps that open workbooks or temp files park them here so the manager can
// release them once the pipeline finishes, whatever the outcome.
func (s *OperationState) CloseResources() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, val := range s.Context {
		if closer, ok := val.(io.Closer); ok {
			closer.Close()
			delete(s.Context, key)
		}
	}
}

// Clone creates a deep copy of the operation state.
func (s *OperationState) Clone() *OperationState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &OperationState{
		ID:        s.ID,
		Status:    s.Status,
		StartTime: s.StartTime,
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
		Config:    make(map[string]interface{}),
		Error:     s.Error,
	}

	if s.EndTime != nil {
		endTime := *s.EndTime
		clone.EndTime = &endTime
	}

	for k, v := range s.Steps {
		v.mu.RLock()
		stepCopy := &StepState{
			ID:        v.ID,
			Name:      v.Name,
			Status:    v.Status,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Progress:  v.Progress,
			Message:   v.Message,
			Error:     v.Error,
			Metadata:  make(map[string]interface{}),
		}
		for mk, mv := range v.Metadata {
			stepCopy.Metadata[mk] = mv
		}
		v.mu.RUnlock()
		clone.Steps[k] = stepCopy
	}

	for k, v := range s.Context {
		clone.Context[k] = v
	}
	for k, v := range s.Config {
		clone.Config[k] = v
	}

	return clone
}
