package operations

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureHub struct {
	mu       sync.Mutex
	messages []capturedMessage
}

type capturedMessage struct {
	messageType string
	data        interface{}
}

func (h *captureHub) Broadcast(messageType string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, capturedMessage{messageType, data})
}

func (h *captureHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func (h *captureHub) last() capturedMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.messages[len(h.messages)-1]
}

func newTestBroadcaster(t *testing.T) (*StatusBroadcaster, *captureHub) {
	t.Helper()
	hub := &captureHub{}
	sb := NewStatusBroadcaster(hub, slog.Default())
	t.Cleanup(sb.Stop)
	return sb, hub
}

func TestBroadcasterCreateOperation(t *testing.T) {
	sb, hub := newTestBroadcaster(t)

	sb.CreateOperation("op-1", []string{StepIDAnalyze, StepIDMapping})

	snapshot, ok := sb.GetSnapshot("op-1")
	require.True(t, ok)
	assert.Equal(t, "pending", snapshot.Status)
	require.Len(t, snapshot.Steps, 2)
	assert.Equal(t, StepIDAnalyze, snapshot.Steps[0].ID)
	assert.Equal(t, "pending", snapshot.Steps[0].Status)

	require.Equal(t, 1, hub.count())
	assert.Equal(t, EventTypeOperationSnapshot, hub.last().messageType)
}

func TestBroadcasterStepProgressFlow(t *testing.T) {
	sb, hub := newTestBroadcaster(t)

	sb.CreateOperation("op-1", []string{StepIDAnalyze, StepIDMapping})
	sb.StartOperation("op-1")
	sb.UpdateStepProgress("op-1", StepIDAnalyze, 50, "Analyzing tabs")

	snapshot, ok := sb.GetSnapshot("op-1")
	require.True(t, ok)
	assert.Equal(t, "running", snapshot.Status)
	assert.Equal(t, "running", snapshot.Steps[0].Status)
	assert.Equal(t, 50, snapshot.Steps[0].Progress)
	assert.Equal(t, StepIDAnalyze, snapshot.CurrentStep)
	// Overall progress averages across the two steps.
	assert.Equal(t, 25, snapshot.Progress)

	// Every update broadcasts a full snapshot.
	last, ok := hub.last().data.(*OperationSnapshot)
	require.True(t, ok)
	assert.Equal(t, "op-1", last.OperationID)
}

func TestBroadcasterProgressIsMonotonicWhileRunning(t *testing.T) {
	sb, _ := newTestBroadcaster(t)

	sb.CreateOperation("op-1", []string{StepIDAnalyze})
	sb.UpdateStepProgress("op-1", StepIDAnalyze, 60, "most of the way")
	sb.UpdateStepProgress("op-1", StepIDAnalyze, 40, "late event")

	snapshot, _ := sb.GetSnapshot("op-1")
	assert.Equal(t, 60, snapshot.Steps[0].Progress)
	assert.Equal(t, "late event", snapshot.Steps[0].Message)
}

func TestBroadcasterUnknownStepIsAppended(t *testing.T) {
	sb, _ := newTestBroadcaster(t)

	sb.CreateOperation("op-1", []string{StepIDAnalyze})
	sb.UpdateStepProgress("op-1", "surprise", 30, "unexpected step")

	snapshot, _ := sb.GetSnapshot("op-1")
	require.Len(t, snapshot.Steps, 2)
	assert.Equal(t, "surprise", snapshot.Steps[1].ID)
	assert.Equal(t, "running", snapshot.Steps[1].Status)
}

func TestBroadcasterCompleteOperation(t *testing.T) {
	sb, _ := newTestBroadcaster(t)

	sb.CreateOperation("op-1", []string{StepIDAnalyze, StepIDExport})
	sb.UpdateStepProgress("op-1", StepIDAnalyze, 50, "working")
	sb.CompleteOperation("op-1", "done")

	snapshot, _ := sb.GetSnapshot("op-1")
	assert.Equal(t, "completed", snapshot.Status)
	assert.Equal(t, 100, snapshot.Progress)
	require.NotNil(t, snapshot.CompletedAt)
	for _, step := range snapshot.Steps {
		assert.Equal(t, "completed", step.Status)
		assert.Equal(t, 100, step.Progress)
	}
}

func TestBroadcasterFailStepAndOperation(t *testing.T) {
	sb, _ := newTestBroadcaster(t)

	sb.CreateOperation("op-1", []string{StepIDAnalyze})
	sb.FailStep("op-1", StepIDAnalyze, assert.AnError)
	sb.FailOperation("op-1", assert.AnError)

	snapshot, _ := sb.GetSnapshot("op-1")
	assert.Equal(t, "failed", snapshot.Status)
	assert.Equal(t, "failed", snapshot.Steps[0].Status)
	assert.NotEmpty(t, snapshot.Steps[0].Error)
	require.NotNil(t, snapshot.CompletedAt)
}

func TestBroadcasterCleanupOldOperations(t *testing.T) {
	sb, _ := newTestBroadcaster(t)

	sb.CreateOperation("op-old", []string{StepIDAnalyze})
	sb.CompleteOperation("op-old", "done")
	sb.CreateOperation("op-live", []string{StepIDAnalyze})

	// Backdate the completed operation past the retention window.
	sb.mu.Lock()
	old := time.Now().Add(-2 * time.Hour)
	sb.operations["op-old"].CompletedAt = &old
	sb.mu.Unlock()

	sb.CleanupOldOperations(time.Hour)

	_, ok := sb.GetSnapshot("op-old")
	assert.False(t, ok)
	_, ok = sb.GetSnapshot("op-live")
	assert.True(t, ok)
}

func TestBroadcasterSnapshotCopiesAreIndependent(t *testing.T) {
	sb, _ := newTestBroadcaster(t)

	sb.CreateOperation("op-1", []string{StepIDAnalyze})

	snapshot, _ := sb.GetSnapshot("op-1")
	snapshot.Steps[0].Status = "mangled"

	fresh, _ := sb.GetSnapshot("op-1")
	assert.Equal(t, "pending", fresh.Steps[0].Status)
}
