package domain

// WebSocket frame types from client.
const (
	FrameTyping    = "typing"
	FrameSend      = "send"
	FrameEdit      = "edit"
	FrameDelete    = "delete"
	FrameOpenRoom  = "open_room"
	FrameCloseRoom = "close_room"
	FramePing      = "ping"
)

// WebSocket frame types to client.
const (
	FrameSnapshot        = "snapshot"
	FrameMessageInserted = "message_inserted"
	FrameMessageUpdated  = "message_updated"
	FrameMessageDeleted  = "message_deleted"
	FrameTypingUsers     = "typing"
	FrameSendFailed      = "send_failed"
	FrameError           = "error"
	FramePong            = "pong"
)

// Error codes shared by HTTP responses and websocket frames.
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodePersistence  = "PERSISTENCE_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ClientFrame is any frame sent by a client. RoomID defaults to the room
// the connection was opened for.
type ClientFrame struct {
	Type        string   `json:"type"`
	RoomID      string   `json:"room_id,omitempty"`
	ID          string   `json:"id,omitempty"`
	MessageID   string   `json:"message_id,omitempty"`
	Body        string   `json:"body,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// SnapshotFrame carries the full message list after a room is opened.
type SnapshotFrame struct {
	Type     string            `json:"type"`
	RoomID   string            `json:"room_id"`
	Messages []MessageResponse `json:"messages"`
}

// MessageFrame carries one inserted or updated message.
type MessageFrame struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id"`
	Message MessageResponse `json:"message"`
}

// MessageDeletedFrame announces a removed message.
type MessageDeletedFrame struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
}

// TypingFrame carries who is typing and the rendered indicator text.
type TypingFrame struct {
	Type   string   `json:"type"`
	RoomID string   `json:"room_id"`
	Users  []string `json:"users"`
	Text   string   `json:"text"`
}

// Draft is an unsent message handed back after a failed send.
type Draft struct {
	ID          string   `json:"id,omitempty"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

// SendFailedFrame tells the sender a message was not stored.
type SendFailedFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Draft   Draft  `json:"draft"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorFrame reports a failed client request.
type ErrorFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorFrame creates an error frame.
func NewErrorFrame(roomID, code, message string) *ErrorFrame {
	return &ErrorFrame{
		Type:    FrameError,
		RoomID:  roomID,
		Code:    code,
		Message: message,
	}
}
