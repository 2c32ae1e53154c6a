package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playforge/gamehost/internal/v1/types"
)

// mockConn scripts a sequence of inbound frames.
type mockConn struct {
	mu       sync.Mutex
	inbound  [][]byte
	written  [][]byte
	closed   bool
	readIdx  int
	readErr  error
	writeErr error
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readIdx < len(m.inbound) {
		data := m.inbound[m.readIdx]
		m.readIdx++
		return websocket.TextMessage, data, nil
	}
	if m.readErr != nil {
		return 0, nil, m.readErr
	}
	return 0, nil, errors.New("connection closed")
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func (m *mockConn) writtenFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}

// mockRoom records routed envelopes and disconnects.
type mockRoom struct {
	mu           sync.Mutex
	routed       []types.Envelope
	disconnected []types.SessionIDType
}

func (r *mockRoom) GetID() types.RoomIDType { return "mock-room" }

func (r *mockRoom) Router(ctx context.Context, client types.ClientInterface, env *types.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, *env)
}

func (r *mockRoom) HandleClientConnect(client types.ClientInterface, name string) {}

func (r *mockRoom) HandleClientDisconnect(client types.ClientInterface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, client.GetID())
}

func (r *mockRoom) routedEnvelopes() []types.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Envelope(nil), r.routed...)
}

func newTestClient(conn *mockConn, roomer types.Roomer) *Client {
	return &Client{
		conn:        conn,
		send:        make(chan []byte, 4),
		room:        roomer,
		ID:          "sid-1",
		DisplayName: "Ada",
	}
}

func TestReadPump_RoutesValidEnvelopes(t *testing.T) {
	conn := &mockConn{inbound: [][]byte{
		[]byte(`{"type": "start"}`),
		[]byte(`{"type": "answer", "payload": {"value": "2"}}`),
		[]byte(`not json`),
	}}
	roomer := &mockRoom{}
	client := newTestClient(conn, roomer)

	client.readPump()

	envs := roomer.routedEnvelopes()
	require.Len(t, envs, 2, "malformed frame must be skipped")
	assert.Equal(t, "start", envs[0].Type)
	assert.Equal(t, "answer", envs[1].Type)

	assert.Equal(t, []types.SessionIDType{"sid-1"}, roomer.disconnected)
	assert.True(t, conn.closed)
}

func TestWritePump_DrainsSendChannelOnClose(t *testing.T) {
	conn := &mockConn{}
	client := newTestClient(conn, &mockRoom{})

	client.send <- []byte(`{"type":"state"}`)
	client.Close()

	client.writePump()

	frames := conn.writtenFrames()
	require.GreaterOrEqual(t, len(frames), 2, "queued frame plus close frame")
	assert.Equal(t, `{"type":"state"}`, string(frames[0]))
	assert.True(t, conn.closed)
}

func TestSendRaw_DropsWhenBufferFull(t *testing.T) {
	conn := &mockConn{}
	client := newTestClient(conn, &mockRoom{})

	for i := 0; i < cap(client.send)+3; i++ {
		client.SendRaw([]byte("frame"))
	}

	assert.Len(t, client.send, cap(client.send))
}

func TestClose_IdempotentAndStopsSends(t *testing.T) {
	conn := &mockConn{}
	client := newTestClient(conn, &mockRoom{})

	client.Close()
	client.Close()

	// A send after close must be a silent drop, not a panic on a closed
	// channel.
	client.SendRaw([]byte("late frame"))

	_, open := <-client.send
	assert.False(t, open, "send channel must be closed")
}

func TestDisconnect_TerminatesWritePump(t *testing.T) {
	conn := &mockConn{}
	client := newTestClient(conn, &mockRoom{})

	done := make(chan struct{})
	go func() {
		client.writePump()
		close(done)
	}()

	client.Disconnect()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writePump leaked after Disconnect")
	}
	assert.True(t, conn.closed)
}

func TestReadPump_ClosesSendOnExit(t *testing.T) {
	conn := &mockConn{}
	roomer := &mockRoom{}
	client := newTestClient(conn, roomer)

	client.readPump()

	_, open := <-client.send
	assert.False(t, open, "readPump exit must close the send channel")
	assert.Equal(t, []types.SessionIDType{"sid-1"}, roomer.disconnected)
}
