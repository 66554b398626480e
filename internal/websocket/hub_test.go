package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memPresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func (m *memPresence) SetPresence(_ context.Context, userID string, online bool, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[userID] = online
	return nil
}

func newTestHub(t *testing.T) (*Hub, *memPresence) {
	t.Helper()
	store := &memPresence{online: map[string]bool{}}
	h := NewHub(store, zap.NewNop().Sugar())
	t.Cleanup(h.Stop)
	return h, store
}

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return out
			}
			var msg Message
			if err := json.Unmarshal(frame, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func types(msgs []Message) []MessageType {
	out := make([]MessageType, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestHubPrivateChannel(t *testing.T) {
	h, store := newTestHub(t)

	tab1 := NewClient(h, nil, "10000001", "user", nil)
	tab2 := NewClient(h, nil, "10000001", "user", nil)
	other := NewClient(h, nil, "10000002", "user", nil)

	h.Register(tab1)
	h.Register(tab2)
	h.Register(other)
	assert.True(t, store.online["10000001"])

	// tab1 видит оба online-перехода, tab2 только второго пользователя
	assert.Equal(t, []MessageType{TypeStatusChange, TypeStatusChange}, types(drain(tab1)))
	assert.Equal(t, []MessageType{TypeStatusChange}, types(drain(tab2)))
	drain(other)

	n := h.Deliver("10000001", TypeMessageNew, map[string]string{"content": "hi"})
	assert.Equal(t, 2, n)
	assert.Len(t, drain(tab1), 1)
	assert.Len(t, drain(tab2), 1)
	assert.Empty(t, drain(other))

	assert.Zero(t, h.Deliver("99999999", TypeMessageNew, nil))
}

func TestHubUnregisterEdges(t *testing.T) {
	h, store := newTestHub(t)

	tab1 := NewClient(h, nil, "10000001", "user", nil)
	tab2 := NewClient(h, nil, "10000001", "user", nil)
	watcher := NewClient(h, nil, "10000002", "user", nil)
	h.Register(watcher)
	h.Register(tab1)
	h.Register(tab2)
	drain(watcher)

	h.Unregister(tab1)
	assert.True(t, h.IsOnline("10000001"))
	assert.Empty(t, drain(watcher))

	h.Unregister(tab1)
	assert.True(t, h.IsOnline("10000001"))

	h.Unregister(tab2)
	assert.False(t, h.IsOnline("10000001"))
	assert.False(t, store.online["10000001"])

	msgs := drain(watcher)
	require.Len(t, msgs, 1)
	var status struct {
		UserID   string `json:"userId"`
		IsOnline bool   `json:"isOnline"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Data, &status))
	assert.Equal(t, "10000001", status.UserID)
	assert.False(t, status.IsOnline)

	assert.ErrorIs(t, tab1.Enqueue([]byte("x")), ErrClientClosed)
}

func TestHubQueueFullDropsOnlyThatConnection(t *testing.T) {
	h, _ := newTestHub(t)

	slow := NewClient(h, nil, "10000001", "user", nil)
	fast := NewClient(h, nil, "10000001", "user", nil)
	h.Register(slow)
	h.Register(fast)
	drain(fast)

	for i := 0; i < sendQueueSize; i++ {
		_ = slow.Enqueue([]byte("{}"))
	}
	assert.ErrorIs(t, slow.Enqueue([]byte("{}")), ErrClientQueueFull)

	assert.Equal(t, 1, h.SendToUser("10000001", []byte(`{"type":"message:new"}`)))
	assert.Len(t, drain(fast), 1)
}

func TestEncodeEnvelope(t *testing.T) {
	frame, err := Encode(TypeAck, "42", AckPayload{Success: true})
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(frame, &msg))
	assert.Equal(t, TypeAck, msg.Type)
	assert.Equal(t, "42", msg.AckID)
	assert.JSONEq(t, `{"success":true}`, string(msg.Data))
	assert.False(t, msg.Timestamp.IsZero())

	assert.True(t, TypeMessageSend.ExpectsAck())
	assert.False(t, TypeTypingStart.ExpectsAck())
}

func TestHubStopPersistsOffline(t *testing.T) {
	h, store := newTestHub(t)

	a1 := NewClient(h, nil, "10000001", "user", nil)
	a2 := NewClient(h, nil, "10000001", "user", nil)
	b := NewClient(h, nil, "10000002", "user", nil)
	h.Register(a1)
	h.Register(a2)
	h.Register(b)
	require.True(t, store.online["10000001"])

	h.Stop()

	store.mu.Lock()
	assert.False(t, store.online["10000001"])
	assert.False(t, store.online["10000002"])
	store.mu.Unlock()
	assert.False(t, h.IsOnline("10000001"))
	assert.Zero(t, h.OnlineCount())
	assert.ErrorIs(t, a1.Enqueue([]byte("x")), ErrClientClosed)

	// повторный Stop и Unregister из ReadPump ничего не ломают
	h.Stop()
	h.Unregister(b)
}
