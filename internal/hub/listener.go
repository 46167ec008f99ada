package hub

import (
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/projection"
	"github.com/CutzuDev/itec2025/internal/roomview"
)

// A Client renders its room views as websocket frames.
var _ roomview.Listener = (*Client)(nil)

func entryResponse(e projection.Entry) domain.MessageResponse {
	resp := e.Message.ToResponse()
	resp.Pending = e.Pending
	return resp
}

func (c *Client) Snapshot(roomID string, entries []projection.Entry) {
	messages := make([]domain.MessageResponse, len(entries))
	for i, e := range entries {
		messages[i] = entryResponse(e)
	}
	c.SendMessage(&domain.SnapshotFrame{Type: domain.FrameSnapshot, RoomID: roomID, Messages: messages})
}

func (c *Client) Inserted(roomID string, e projection.Entry) {
	c.SendMessage(&domain.MessageFrame{Type: domain.FrameMessageInserted, RoomID: roomID, Message: entryResponse(e)})
}

func (c *Client) Updated(roomID string, e projection.Entry) {
	c.SendMessage(&domain.MessageFrame{Type: domain.FrameMessageUpdated, RoomID: roomID, Message: entryResponse(e)})
}

func (c *Client) Deleted(roomID, messageID string) {
	c.SendMessage(&domain.MessageDeletedFrame{Type: domain.FrameMessageDeleted, RoomID: roomID, MessageID: messageID})
}

func (c *Client) TypingChanged(roomID string, names []string) {
	if names == nil {
		names = []string{}
	}
	c.SendMessage(&domain.TypingFrame{
		Type:   domain.FrameTypingUsers,
		RoomID: roomID,
		Users:  names,
		Text:   projection.TypingText(names),
	})
}
