package domain

// TypingKind is the kind of a typing signal.
type TypingKind string

const (
	TypingStart TypingKind = "start"
	TypingStop  TypingKind = "stop"
)

// TypingSignal is an ephemeral typing notification. It is never persisted.
type TypingSignal struct {
	RoomID          string     `json:"room_id"`
	UserID          string     `json:"user_id"`
	UserDisplayName string     `json:"user_display_name"`
	Kind            TypingKind `json:"kind"`
}
