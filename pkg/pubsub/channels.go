package pubsub

import "fmt"

// Channel naming conventions for room-scoped chat traffic.
// Every channel follows {prefix}:room:{roomID}:{suffix}, which the Kafka
// driver maps to topic "{prefix}-{suffix}" keyed by room.
const (
	// Row-level change notifications for chat messages.
	ChannelRoomMessages = "chat:room:%s:messages"

	// Ephemeral typing signals.
	ChannelRoomTyping = "chat:room:%s:typing"
)

// Event types carried on the messages channel.
const (
	EventMessageInsert = "message_insert"
	EventMessageUpdate = "message_update"
	EventMessageDelete = "message_delete"
)

// Event types carried on the typing channel.
const (
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
)

// RoomMessagesChannel returns the change-feed channel for a room.
func RoomMessagesChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomMessages, roomID)
}

// RoomTypingChannel returns the typing channel for a room.
func RoomTypingChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomTyping, roomID)
}

// Topics lists the Kafka topics backing the room channels.
func Topics() []string {
	return []string{"chat-messages", "chat-typing"}
}
