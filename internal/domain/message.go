package domain

import (
	"io"
	"path"
	"strings"
	"time"
)

// EditTolerance is how much later than CreatedAt an UpdatedAt has to be
// before a message counts as edited.
const EditTolerance = time.Second

// SenderProfile is the display metadata of a message author. It is joined at
// read time and never stored on the message row.
type SenderProfile struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ChatMessage is one message in a room.
type ChatMessage struct {
	ID          string         `json:"id"`
	RoomID      string         `json:"room_id"`
	SenderID    string         `json:"sender_id"`
	Body        string         `json:"body"`
	Attachments []string       `json:"attachments,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
	Sender      *SenderProfile `json:"sender,omitempty"`
}

// Edited reports whether the body changed after creation.
func (m *ChatMessage) Edited() bool {
	return m.UpdatedAt != nil && m.UpdatedAt.After(m.CreatedAt.Add(EditTolerance))
}

// Less orders messages by creation time, then by id.
func (m *ChatMessage) Less(other *ChatMessage) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Clone returns a deep copy.
func (m *ChatMessage) Clone() *ChatMessage {
	c := *m
	if m.Attachments != nil {
		c.Attachments = append([]string(nil), m.Attachments...)
	}
	if m.UpdatedAt != nil {
		t := *m.UpdatedAt
		c.UpdatedAt = &t
	}
	if m.Sender != nil {
		s := *m.Sender
		c.Sender = &s
	}
	return &c
}

// NewMessage is the input of an append.
type NewMessage struct {
	ID          string   `json:"id,omitempty"`
	RoomID      string   `json:"-"`
	SenderID    string   `json:"-"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

// Normalize trims the body and drops blank attachment entries.
func (n *NewMessage) Normalize() {
	n.Body = strings.TrimSpace(n.Body)
	kept := n.Attachments[:0]
	for _, a := range n.Attachments {
		if a = strings.TrimSpace(a); a != "" {
			kept = append(kept, a)
		}
	}
	n.Attachments = kept
}

// Empty reports whether there is nothing to send.
func (n *NewMessage) Empty() bool {
	return n.Body == "" && len(n.Attachments) == 0
}

// EditMessageRequest is the body of an edit request.
type EditMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// AttachmentResponse describes an attachment for rendering.
type AttachmentResponse struct {
	URL     string `json:"url"`
	IsImage bool   `json:"is_image"`
}

// MessageResponse is a message in API responses and websocket frames.
type MessageResponse struct {
	ID          string               `json:"id"`
	RoomID      string               `json:"room_id"`
	SenderID    string               `json:"sender_id"`
	Body        string               `json:"body"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   *time.Time           `json:"updated_at,omitempty"`
	Edited      bool                 `json:"edited"`
	Sender      *SenderProfile       `json:"sender,omitempty"`
	Pending     bool                 `json:"pending,omitempty"`
}

// ToResponse converts ChatMessage to MessageResponse.
func (m *ChatMessage) ToResponse() MessageResponse {
	atts := make([]AttachmentResponse, len(m.Attachments))
	for i, a := range m.Attachments {
		atts[i] = AttachmentResponse{URL: a, IsImage: IsImage(a)}
	}
	return MessageResponse{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		Body:        m.Body,
		Attachments: atts,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Edited:      m.Edited(),
		Sender:      m.Sender,
	}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// IsImage reports whether an attachment URL points at an image, judged by
// its extension. Query strings and fragments are ignored.
func IsImage(url string) bool {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return imageExtensions[strings.ToLower(path.Ext(url))]
}

// Upload is one file received for attachment.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
