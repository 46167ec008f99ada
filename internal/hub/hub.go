package hub

import (
	"context"
	"sync"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/pkg/log"
)

// Hub tracks the live connections and the rooms each one has open.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.remove(client)
			l := log.L()
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			clients := h.clients
			h.clients = make(map[string]*Client)
			h.rooms = make(map[string]map[string]*Client)
			h.mu.Unlock()
			for _, client := range clients {
				client.closeSend()
			}
			l := log.L()
			l.Info().Int("clients", len(clients)).Msg("hub stopped")
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for roomID, roomClients := range h.rooms {
		delete(roomClients, client.ID)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(h.clients, client.ID)
	client.closeSend()
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// JoinRoom records that client has a view of roomID open.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.isClosed() {
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
	l := log.L()
	l.Info().Str(log.FieldConnID, client.ID).Str(log.FieldRoomID, roomID).
		Int("room_clients", len(h.rooms[roomID])).Msg("client joined room")
}

// LeaveRoom records that client closed its view of roomID.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client.ID)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	l := log.L()
	l.Info().Str(log.FieldConnID, client.ID).Str(log.FieldRoomID, roomID).
		Int("room_clients", len(h.rooms[roomID])).Msg("client left room")
}

// Evict closes the views userID has open on roomID and tells each affected
// connection why. It returns the number of views closed.
func (h *Hub) Evict(roomID, userID string) int {
	h.mu.Lock()
	var evicted []*Client
	for id, client := range h.rooms[roomID] {
		if client.UserID == userID {
			evicted = append(evicted, client)
			delete(h.rooms[roomID], id)
		}
	}
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	for _, client := range evicted {
		if client.Views != nil {
			client.Views.Close(roomID)
		}
		client.SendMessage(domain.NewErrorFrame(roomID, domain.ErrCodeForbidden, "you are no longer a member of this room"))
	}
	if len(evicted) > 0 {
		l := log.L()
		l.Info().Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).
			Int("views", len(evicted)).Msg("evicted user from room")
	}
	return len(evicted)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of connections viewing roomID.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
