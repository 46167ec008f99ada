package domain

import "errors"

// Error kinds shared by the message store, the change feed and the room
// views. Callers match them with errors.Is.
var (
	// ErrPersistence means the store was unreachable or rejected the write
	// (for example a reference to a room that does not exist).
	ErrPersistence = errors.New("persistence error")
	// ErrAuthorization means the caller is not the original sender.
	ErrAuthorization = errors.New("not the sender of this message")
	// ErrNotFound means the referenced message does not exist (any more).
	ErrNotFound = errors.New("message not found")
	// ErrTransport means a realtime publish failed. It is logged, never returned.
	ErrTransport = errors.New("transport error")
	// ErrEmptyMessage means the message has neither text nor attachments.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrTooManyAttachments means a message carries more attachments than allowed.
	ErrTooManyAttachments = errors.New("too many attachments")
)
