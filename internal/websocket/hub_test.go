package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConnection records written messages for assertions
type mockConnection struct {
	mu       sync.Mutex
	written  [][]byte
	readCh   chan []byte
	closed   bool
	closeCh  chan struct{}
	closeOnce sync.Once
}

func newMockConnection() *mockConnection {
	return &mockConnection{
		readCh:  make(chan []byte),
		closeCh: make(chan struct{}),
	}
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-m.readCh:
		return 1, msg, nil
	case <-m.closeCh:
		return 0, nil, io.EOF
	}
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.written = append(m.written, cp)
	return nil
}

func (m *mockConnection) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.closeCh)
	})
	return nil
}

func (m *mockConnection) SetReadLimit(int64)                  {}
func (m *mockConnection) SetReadDeadline(time.Time) error     { return nil }
func (m *mockConnection) SetWriteDeadline(time.Time) error    { return nil }
func (m *mockConnection) SetPongHandler(func(string) error)   {}
func (m *mockConnection) RemoteAddr() string                  { return "127.0.0.1:12345" }

func (m *mockConnection) messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]byte, len(m.written))
	copy(cp, m.written)
	return cp
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func registerClient(t *testing.T, hub *Hub) (*Client, *mockConnection) {
	t.Helper()
	conn := newMockConnection()
	client := NewClientWithConnection(hub, conn, testLogger())
	hub.Register(client)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	return client, conn
}

func waitForMessage(t *testing.T, client *Client, msgType string) map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-client.send:
			var msg map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &msg))
			if msg["type"] == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for message type %q", msgType)
		}
	}
}

func TestHubRegisterSendsConnectionMessage(t *testing.T) {
	hub := startHub(t)
	client, _ := registerClient(t, hub)

	msg := waitForMessage(t, client, TypeConnection)
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, client.id, data["client_id"])
}

func TestHubBroadcastProgress(t *testing.T) {
	hub := startHub(t)
	client, _ := registerClient(t, hub)

	hub.BroadcastProgress("analyze", 50, "analyzing tabs")

	msg := waitForMessage(t, client, TypeProgress)
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "analyze", data["step"])
	assert.Equal(t, float64(50), data["progress"])
}

func TestHubBroadcastError(t *testing.T) {
	hub := startHub(t)
	client, _ := registerClient(t, hub)

	hub.BroadcastError("NO_VALID_TABS", "no valid tabs were found", "analyze", false)

	msg := waitForMessage(t, client, TypeError)
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "NO_VALID_TABS", data["code"])
	assert.Equal(t, false, data["recoverable"])
}

func TestHubStats(t *testing.T) {
	hub := startHub(t)
	registerClient(t, hub)

	stats := hub.Stats()
	assert.Equal(t, 1, stats["active_clients"])
	assert.Equal(t, int64(1), stats["total_connections"])
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	client, _ := registerClient(t, hub)

	hub.Stop()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-client.send:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}
