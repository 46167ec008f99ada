package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/service"
	"github.com/CutzuDev/itec2025/pkg/log"
	"github.com/CutzuDev/itec2025/pkg/response"
)

// errorCode maps a service error to its wire code and HTTP status.
func errorCode(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable, domain.ErrCodePersistence, "the message store is unavailable, please retry"
	case errors.Is(err, domain.ErrAuthorization):
		return http.StatusForbidden, domain.ErrCodeForbidden, "only the sender may change this message"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrCodeNotFound, "message not found"
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrNotRoomMember):
		return http.StatusNotFound, domain.ErrCodeNotFound, "room not found"
	case errors.Is(err, service.ErrAttachmentAbsent):
		return http.StatusNotFound, domain.ErrCodeNotFound, "attachment not found"
	case errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest, domain.ErrCodeBadRequest, "message must have text or attachments"
	case errors.Is(err, domain.ErrTooManyAttachments):
		return http.StatusBadRequest, domain.ErrCodeBadRequest, "too many attachments"
	case errors.Is(err, service.ErrEmptyUpload):
		return http.StatusBadRequest, domain.ErrCodeBadRequest, "uploaded file is empty"
	case errors.Is(err, service.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, "TOO_LARGE", "uploaded file is too large"
	case errors.Is(err, service.ErrRoomFull):
		return http.StatusConflict, "ROOM_FULL", "room is full"
	case errors.Is(err, service.ErrNotRoomCreator):
		return http.StatusForbidden, domain.ErrCodeForbidden, "only the room creator may manage participants"
	case errors.Is(err, service.ErrMemberNotFound):
		return http.StatusNotFound, domain.ErrCodeNotFound, "member not found"
	case errors.Is(err, service.ErrCreatorMembership):
		return http.StatusConflict, "ROOM_CREATOR", "the room creator cannot leave the room"
	case errors.Is(err, service.ErrRoomExists):
		return http.StatusConflict, "ROOM_EXISTS", "room already exists"
	default:
		return http.StatusInternalServerError, domain.ErrCodeInternal, "internal error"
	}
}

// writeError renders err as a JSON error response.
func writeError(c *gin.Context, err error, op string) {
	status, code, msg := errorCode(err)
	if status >= http.StatusInternalServerError {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str("op", op).Msg("request failed")
	}
	response.Error(c, status, code, msg)
}
