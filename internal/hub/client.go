package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CutzuDev/itec2025/internal/config"
	"github.com/CutzuDev/itec2025/internal/roomview"
	"github.com/CutzuDev/itec2025/pkg/log"
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	ID     string
	UserID string
	// RoomID is the room the connection was opened for; frames without a
	// room id address it.
	RoomID string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	Views  *roomview.Registry

	ctx    context.Context
	config config.WebSocketConfig

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client. ctx outlives the upgrade request and carries
// the connection's logger.
func NewClient(ctx context.Context, id, userID, roomID string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	l := log.Ctx(ctx)
	ctx = log.WithLogger(ctx, l.With().Str(log.FieldConnID, id).Str(log.FieldUserID, userID).Logger())
	return &Client{
		ID:     id,
		UserID: userID,
		RoomID: roomID,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		ctx:    ctx,
		config: cfg,
	}
}

// Context returns the connection context.
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		if c.Views != nil {
			c.Views.CloseAll()
		}
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.Ctx(c.ctx)
				l.Warn().Err(err).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a frame. A full buffer or a closed client drops it.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.Send <- data:
	default:
		l := log.Ctx(c.ctx)
		l.Warn().Msg("send buffer full, dropping frame")
	}
	return nil
}

// closeSend closes the outgoing queue; WritePump then sends a close frame.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
