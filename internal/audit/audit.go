package audit

import (
	"context"

	"github.com/CutzuDev/itec2025/pkg/log"
)

// Audit actions for chat-sync-service.
const (
	ActionSendMessage   = "chat.send_message"
	ActionEditMessage   = "chat.edit_message"
	ActionDeleteMessage = "chat.delete_message"
	ActionUpload        = "chat.upload_attachment"
	ActionOpenRoom      = "chat.open_room"
	ActionCloseRoom     = "chat.close_room"
	ActionCreateRoom    = "room.create"
	ActionJoinRoom      = "room.join"
	ActionLeaveRoom     = "room.leave"
	ActionRemoveMember  = "room.remove_member"
	ActionAccessDenied  = "room.access_denied"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// LogTarget emits an audit log entry about a specific room or message.
func LogTarget(ctx context.Context, action string, userID string, targetID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
