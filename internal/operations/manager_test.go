package operations

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T, steps ...Step) *Manager {
	t.Helper()

	registry := NewRegistry()
	for _, step := range steps {
		require.NoError(t, registry.Register(step))
	}

	config := NewConfig()
	config.RetryConfig = RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}

	m := NewManager(nil, registry, config, slog.Default())
	t.Cleanup(m.Broadcaster().Stop)
	return m
}

func TestManagerExecuteRunsStepsInOrder(t *testing.T) {
	var order []string
	mkStep := func(id string, deps ...string) *fakeStep {
		step := newFakeStep(id, deps...)
		step.execFn = func(ctx context.Context, state *OperationState) error {
			order = append(order, id)
			return nil
		}
		return step
	}

	// Registered out of dependency order on purpose.
	m := testManager(t,
		mkStep("c", "b"),
		mkStep("a"),
		mkStep("b", "a"),
	)

	resp, err := m.Execute(context.Background(), OperationRequest{ID: "op-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, OperationStatusCompleted, resp.Status)
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, StepStatusCompleted, resp.Steps[id].Status)
	}
}

func TestManagerExecuteGeneratesID(t *testing.T) {
	m := testManager(t, newFakeStep("a"))

	resp, err := m.Execute(context.Background(), OperationRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
}

func TestManagerExecuteFailureSkipsDependents(t *testing.T) {
	failing := newFakeStep("a")
	failing.execErr = errors.New("analysis exploded")
	dependent := newFakeStep("b", "a")
	transitive := newFakeStep("c", "b")

	m := testManager(t, failing, dependent, transitive)

	resp, err := m.Execute(context.Background(), OperationRequest{ID: "op-1"})
	require.Error(t, err)

	assert.Equal(t, OperationStatusFailed, resp.Status)
	assert.Equal(t, StepStatusFailed, resp.Steps["a"].Status)
	assert.Equal(t, StepStatusSkipped, resp.Steps["b"].Status)
	assert.Equal(t, StepStatusSkipped, resp.Steps["c"].Status)
	assert.False(t, dependent.executed)
	assert.False(t, transitive.executed)
}

func TestManagerExecuteRetriesRetryableErrors(t *testing.T) {
	attempts := 0
	step := newFakeStep("a")
	step.execFn = func(ctx context.Context, state *OperationState) error {
		attempts++
		if attempts == 1 {
			return NewExecutionError("a", errors.New("transient"), true)
		}
		return nil
	}

	m := testManager(t, step)

	resp, err := m.Execute(context.Background(), OperationRequest{ID: "op-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, StepStatusCompleted, resp.Steps["a"].Status)
}

func TestManagerExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	attempts := 0
	step := newFakeStep("a")
	step.execFn = func(ctx context.Context, state *OperationState) error {
		attempts++
		return NewExecutionError("a", errors.New("permanent"), false)
	}

	m := testManager(t, step)

	_, err := m.Execute(context.Background(), OperationRequest{ID: "op-1"})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

type validatingStep struct {
	fakeStep
	validateErr error
}

func (v *validatingStep) Validate(state *OperationState) error {
	return v.validateErr
}

func TestManagerExecuteValidationFailureSkipsStep(t *testing.T) {
	step := &validatingStep{
		fakeStep:    *newFakeStep("a"),
		validateErr: errors.New("no input file"),
	}

	m := testManager(t, step)

	resp, err := m.Execute(context.Background(), OperationRequest{ID: "op-1"})
	require.Error(t, err)

	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Equal(t, StepStatusSkipped, resp.Steps["a"].Status)
	assert.False(t, step.executed)
}

func TestManagerExecuteSingleStepParameter(t *testing.T) {
	first := newFakeStep("a")
	second := newFakeStep("b", "a")

	m := testManager(t, first, second)

	// Requesting step "a" alone runs it without the rest of the pipeline.
	resp, err := m.Execute(context.Background(), OperationRequest{
		ID:         "op-1",
		Parameters: map[string]interface{}{"step": "a"},
	})
	require.NoError(t, err)

	assert.True(t, first.executed)
	assert.False(t, second.executed)
	assert.Len(t, resp.Steps, 1)
}

func TestManagerExecuteUnknownStepParameter(t *testing.T) {
	m := testManager(t, newFakeStep("a"))

	_, err := m.Execute(context.Background(), OperationRequest{
		ID:         "op-1",
		Parameters: map[string]interface{}{"step": "nope"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestManagerExecuteCancelledContext(t *testing.T) {
	m := testManager(t, newFakeStep("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Execute(ctx, OperationRequest{ID: "op-1"})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeCancellation, GetErrorType(err))
}

func TestManagerExecuteClosesSessionResources(t *testing.T) {
	closer := &trackingCloser{}
	step := newFakeStep("a")
	step.execFn = func(ctx context.Context, state *OperationState) error {
		state.SetContext(ContextKeySession, closer)
		return nil
	}

	m := testManager(t, step)

	_, err := m.Execute(context.Background(), OperationRequest{ID: "op-1"})
	require.NoError(t, err)
	assert.True(t, closer.closed)
}

func TestManagerExecuteSurfacesResults(t *testing.T) {
	step := newFakeStep("a")
	step.execFn = func(ctx context.Context, state *OperationState) error {
		state.SetContext(ContextKeyRecordCount, 12)
		state.SetContext(ContextKeyOutputPath, "/tmp/out.csv")
		return nil
	}

	m := testManager(t, step)

	resp, err := m.Execute(context.Background(), OperationRequest{ID: "op-1"})
	require.NoError(t, err)

	require.NotNil(t, resp.Results)
	assert.Equal(t, 12, resp.Results[ContextKeyRecordCount])
	assert.Equal(t, "/tmp/out.csv", resp.Results[ContextKeyOutputPath])
}

func TestManagerGetOperationWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	step := newFakeStep("a")
	step.execFn = func(ctx context.Context, state *OperationState) error {
		close(started)
		<-release
		return nil
	}

	m := testManager(t, step)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Execute(context.Background(), OperationRequest{ID: "op-live"})
	}()

	<-started
	state, err := m.GetOperation("op-live")
	require.NoError(t, err)
	assert.Equal(t, OperationStatusRunning, state.Status)

	close(release)
	<-done

	// Finished operations are removed from the active set.
	_, err = m.GetOperation("op-live")
	assert.ErrorIs(t, err, ErrOperationNotFound)
}
