package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CutzuDev/itec2025/internal/config"
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/projection"
)

func newTestClient(h *Hub, id string) *Client {
	return NewClient(context.Background(), id, "user-"+id, "room-1", h, nil, config.WebSocketConfig{})
}

func frame(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return nil
	}
}

func TestHubMembership(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	a, b := newTestClient(h, "a"), newTestClient(h, "b")
	h.Register(a)
	h.Register(b)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	h.JoinRoom(a, "room-1")
	h.JoinRoom(b, "room-1")
	h.JoinRoom(b, "room-2")
	assert.Equal(t, 2, h.RoomClientCount("room-1"))

	h.LeaveRoom(a, "room-1")
	assert.Equal(t, 1, h.RoomClientCount("room-1"))

	h.Unregister(b)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.RoomClientCount("room-1"))
	assert.Equal(t, 0, h.RoomClientCount("room-2"))
	assert.True(t, b.isClosed())

	h.JoinRoom(b, "room-1")
	assert.Equal(t, 0, h.RoomClientCount("room-1"), "closed clients cannot join")

	cancel()
	<-stopped
	assert.True(t, a.isClosed())
	assert.Equal(t, 0, h.ClientCount())

	late := newTestClient(h, "late")
	h.Register(late)
	assert.True(t, late.isClosed(), "registrations after shutdown are refused")
}

func TestHubEvict(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, "a")
	other := NewClient(context.Background(), "a-phone", "user-a", "room-1", h, nil, config.WebSocketConfig{})
	b := newTestClient(h, "b")

	h.JoinRoom(a, "room-1")
	h.JoinRoom(other, "room-1")
	h.JoinRoom(b, "room-1")
	h.JoinRoom(a, "room-2")

	assert.Equal(t, 2, h.Evict("room-1", "user-a"))
	assert.Equal(t, 1, h.RoomClientCount("room-1"))
	assert.Equal(t, 1, h.RoomClientCount("room-2"), "other rooms keep their views")

	for _, c := range []*Client{a, other} {
		f := frame(t, c)
		assert.Equal(t, domain.FrameError, f["type"])
		assert.Equal(t, "room-1", f["room_id"])
		assert.Equal(t, domain.ErrCodeForbidden, f["code"])
	}
	assert.Empty(t, b.Send)

	assert.Equal(t, 0, h.Evict("room-1", "user-a"))
	assert.Equal(t, 1, h.Evict("room-1", "user-b"))
	assert.Equal(t, 0, h.RoomClientCount("room-1"))
}

func TestClientRendersFrames(t *testing.T) {
	c := newTestClient(NewHub(), "a")
	msg := &domain.ChatMessage{
		ID:          "m1",
		RoomID:      "room-1",
		SenderID:    "alice",
		Body:        "hello",
		Attachments: []string{"http://files/a.png"},
		CreatedAt:   time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	c.Snapshot("room-1", []projection.Entry{{Message: msg}})
	f := frame(t, c)
	assert.Equal(t, domain.FrameSnapshot, f["type"])
	require.Len(t, f["messages"], 1)

	c.Inserted("room-1", projection.Entry{Message: msg, Pending: true})
	f = frame(t, c)
	assert.Equal(t, domain.FrameMessageInserted, f["type"])
	m := f["message"].(map[string]interface{})
	assert.Equal(t, true, m["pending"])
	atts := m["attachments"].([]interface{})
	assert.Equal(t, true, atts[0].(map[string]interface{})["is_image"])

	c.Deleted("room-1", "m1")
	f = frame(t, c)
	assert.Equal(t, domain.FrameMessageDeleted, f["type"])
	assert.Equal(t, "m1", f["message_id"])

	c.TypingChanged("room-1", nil)
	f = frame(t, c)
	assert.Equal(t, domain.FrameTypingUsers, f["type"])
	assert.Equal(t, []interface{}{}, f["users"])
	assert.Equal(t, "", f["text"])

	c.TypingChanged("room-1", []string{"Ana", "Bob"})
	f = frame(t, c)
	assert.Equal(t, "Ana and Bob are typing", f["text"])

	c.closeSend()
	assert.NoError(t, c.SendMessage(map[string]string{"type": domain.FramePong}), "closed clients drop frames")
}
