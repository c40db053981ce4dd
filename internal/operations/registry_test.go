package operations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStep struct {
	BaseStep
	executed bool
	execErr  error
	execFn   func(ctx context.Context, state *OperationState) error
}

func newFakeStep(id string, deps ...string) *fakeStep {
	return &fakeStep{
		BaseStep: NewBaseStep(id, "Step "+id, deps),
	}
}

func (f *fakeStep) Execute(ctx context.Context, state *OperationState) error {
	f.executed = true
	if f.execFn != nil {
		return f.execFn(ctx, state)
	}
	return f.execErr
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newFakeStep("a")))
	require.NoError(t, r.Register(newFakeStep("b")))

	assert.Equal(t, 2, r.Count())
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("c"))
	assert.Equal(t, []string{"a", "b"}, r.ListIDs())
}

func TestRegistryRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newFakeStep("a")))
	err := r.Register(newFakeStep("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRegisterRejectsNilAndEmptyID(t *testing.T) {
	r := NewRegistry()

	require.Error(t, r.Register(nil))
	require.Error(t, r.Register(newFakeStep("")))
}

func TestRegistryDependencyOrder(t *testing.T) {
	r := NewRegistry()

	// Register out of order; dependency order must still hold.
	require.NoError(t, r.Register(newFakeStep(StepIDExport, StepIDGrouping)))
	require.NoError(t, r.Register(newFakeStep(StepIDAnalyze)))
	require.NoError(t, r.Register(newFakeStep(StepIDGrouping, StepIDMapping)))
	require.NoError(t, r.Register(newFakeStep(StepIDMapping, StepIDAnalyze)))

	ordered, err := r.DependencyOrder()
	require.NoError(t, err)

	ids := make([]string, len(ordered))
	for i, step := range ordered {
		ids[i] = step.ID()
	}
	assert.Equal(t, []string{StepIDAnalyze, StepIDMapping, StepIDGrouping, StepIDExport}, ids)
}

func TestRegistryDependencyOrderDetectsCycle(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newFakeStep("a", "b")))
	require.NoError(t, r.Register(newFakeStep("b", "a")))

	_, err := r.DependencyOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRegistryValidateDependenciesUnknownDep(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newFakeStep("a", "missing")))

	err := r.ValidateDependencies()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}
