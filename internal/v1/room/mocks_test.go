package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/playforge/gamehost/internal/v1/types"
)

// MockClient records every frame the room sends it.
type MockClient struct {
	id   types.SessionIDType
	name types.DisplayNameType

	mu           sync.Mutex
	frames       [][]byte
	disconnected bool
}

func NewMockClient(id, name string) *MockClient {
	return &MockClient{id: types.SessionIDType(id), name: types.DisplayNameType(name)}
}

func (c *MockClient) GetID() types.SessionIDType { return c.id }
func (c *MockClient) GetDisplayName() types.DisplayNameType { return c.name }

func (c *MockClient) SendRaw(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
}

func (c *MockClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *MockClient) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// Envelopes decodes everything the client received so far.
func (c *MockClient) Envelopes(t *testing.T) []types.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env types.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

// LastState decodes the most recent state replication frame.
func (c *MockClient) LastState(t *testing.T) map[string]any {
	t.Helper()
	envs := c.Envelopes(t)
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == "state" {
			var snap map[string]any
			require.NoError(t, json.Unmarshal(envs[i].Payload, &snap))
			return snap
		}
	}
	t.Fatal("client never received a state frame")
	return nil
}

// MockBusService records publishes and captures the subscribe handler.
type MockBusService struct {
	mu           sync.Mutex
	published    []string
	handler      func(roomID, event string, payload json.RawMessage, senderID string)
	failPublish  bool
	subscribed   bool
	subscribedTo string
}

func (b *MockBusService) Publish(ctx context.Context, roomID string, event string, payload any, senderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPublish {
		return context.DeadlineExceeded
	}
	b.published = append(b.published, event)
	return nil
}

func (b *MockBusService) Subscribe(ctx context.Context, roomID string, wg *sync.WaitGroup, handler func(roomID, event string, payload json.RawMessage, senderID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed = true
	b.subscribedTo = roomID
	b.handler = handler
}

func (b *MockBusService) Close() error { return nil }

func (b *MockBusService) Published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.published...)
}

func (b *MockBusService) Deliver(roomID, event string, payload json.RawMessage, senderID string) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h != nil {
		h(roomID, event, payload, senderID)
	}
}
