package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/service"
	"github.com/CutzuDev/itec2025/pkg/log"
	"github.com/CutzuDev/itec2025/pkg/middleware"
	"github.com/CutzuDev/itec2025/pkg/response"
)

// RoomEvictor closes the live views of a user who lost access to a room.
type RoomEvictor interface {
	Evict(roomID, userID string) int
}

// Handler handles HTTP requests for rooms, messages and attachments.
type Handler struct {
	roomService       service.RoomService
	messageService    service.MessageService
	attachmentService service.AttachmentService
	authMiddleware    *middleware.AuthMiddleware
	evictor           RoomEvictor
	maxUploadBytes    int64
}

// NewHandler creates a new HTTP handler. evictor may be nil.
func NewHandler(
	roomService service.RoomService,
	messageService service.MessageService,
	attachmentService service.AttachmentService,
	authMiddleware *middleware.AuthMiddleware,
	evictor RoomEvictor,
	maxUploadBytes int64,
) *Handler {
	return &Handler{
		roomService:       roomService,
		messageService:    messageService,
		attachmentService: attachmentService,
		authMiddleware:    authMiddleware,
		evictor:           evictor,
		maxUploadBytes:    maxUploadBytes,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/files/*key", h.GetFile)

	api := r.Group("/api/v1", h.authMiddleware.RequireAuth())
	{
		rooms := api.Group("/rooms")
		{
			rooms.POST("", h.CreateRoom)
			rooms.GET("/my", h.GetMyRooms)
			rooms.GET("/:id", h.GetRoom)
			rooms.POST("/:id/join", h.JoinRoom)
			rooms.POST("/:id/leave", h.LeaveRoom)
			rooms.GET("/:id/members", h.ListMembers)
			rooms.DELETE("/:id/members/:userId", h.RemoveMember)

			rooms.GET("/:id/messages", h.ListMessages)
			rooms.POST("/:id/messages", h.SendMessage)
			rooms.DELETE("/:id/messages/:messageId", h.DeleteMessage)
			rooms.POST("/:id/attachments", h.UploadAttachment)
		}
		api.PATCH("/messages/:id", h.EditMessage)
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateRoom creates a new room.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(ctx, middleware.GetUserID(c), &req)
	if err != nil {
		writeError(c, err, "create room")
		return
	}
	response.Created(c, room)
}

// GetRoom retrieves a room the caller belongs to.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()

	room, err := h.roomService.GetRoom(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "get room")
		return
	}
	response.Success(c, room)
}

// GetMyRooms lists the rooms the caller created or joined.
func (h *Handler) GetMyRooms(c *gin.Context) {
	ctx := c.Request.Context()

	rooms, err := h.roomService.GetMyRooms(ctx, middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "list my rooms")
		return
	}
	response.Success(c, rooms)
}

// JoinRoom adds the caller to a room.
func (h *Handler) JoinRoom(c *gin.Context) {
	ctx := c.Request.Context()

	room, err := h.roomService.JoinRoom(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "join room")
		return
	}
	response.Success(c, room)
}

// LeaveRoom removes the caller from a room and closes their live views of it.
func (h *Handler) LeaveRoom(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	if err := h.roomService.LeaveRoom(ctx, userID, roomID); err != nil {
		writeError(c, err, "leave room")
		return
	}
	h.evict(roomID, userID)
	response.NoContent(c)
}

// ListMembers lists the participants of a room the caller belongs to.
func (h *Handler) ListMembers(c *gin.Context) {
	ctx := c.Request.Context()

	members, err := h.roomService.ListMembers(ctx, middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "list members")
		return
	}
	response.Success(c, members)
}

// RemoveMember lets the room creator remove a participant.
func (h *Handler) RemoveMember(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")
	memberID := c.Param("userId")

	if err := h.roomService.RemoveMember(ctx, middleware.GetUserID(c), roomID, memberID); err != nil {
		writeError(c, err, "remove member")
		return
	}
	h.evict(roomID, memberID)
	response.NoContent(c)
}

func (h *Handler) evict(roomID, userID string) {
	if h.evictor != nil {
		h.evictor.Evict(roomID, userID)
	}
}

// ListMessages returns the room history in display order.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	if err := h.roomService.CheckAccess(ctx, middleware.GetUserID(c), roomID); err != nil {
		writeError(c, err, "list messages")
		return
	}

	messages, err := h.messageService.List(ctx, roomID)
	if err != nil {
		writeError(c, err, "list messages")
		return
	}

	out := make([]domain.MessageResponse, len(messages))
	for i := range messages {
		out[i] = messages[i].ToResponse()
	}
	response.Success(c, out)
}

type sendMessageRequest struct {
	ID          string   `json:"id"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

// SendMessage appends a message to the room.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.roomService.CheckAccess(ctx, userID, roomID); err != nil {
		writeError(c, err, "send message")
		return
	}

	msg, err := h.messageService.Append(ctx, &domain.NewMessage{
		ID:          req.ID,
		RoomID:      roomID,
		SenderID:    userID,
		Body:        req.Body,
		Attachments: req.Attachments,
	})
	if err != nil {
		writeError(c, err, "send message")
		return
	}
	response.Created(c, msg.ToResponse())
}

// EditMessage replaces the body of the caller's message.
func (h *Handler) EditMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.messageService.Edit(ctx, c.Param("id"), middleware.GetUserID(c), req.Body)
	if err != nil {
		writeError(c, err, "edit message")
		return
	}
	response.Success(c, msg.ToResponse())
}

// DeleteMessage removes the caller's message.
func (h *Handler) DeleteMessage(c *gin.Context) {
	ctx := c.Request.Context()

	err := h.messageService.Remove(ctx, c.Param("messageId"), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "delete message")
		return
	}
	response.NoContent(c)
}

// UploadAttachment stores a file for a later message and returns its URL.
func (h *Handler) UploadAttachment(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	if err := h.roomService.CheckAccess(ctx, userID, roomID); err != nil {
		writeError(c, err, "upload attachment")
		return
	}

	if h.maxUploadBytes > 0 {
		// Multipart framing needs a little room beyond the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(c, "uploaded file is too large")
			return
		}
		l.Warn().Err(err).Msg("missing upload file")
		response.BadRequest(c, "file is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, err, "upload attachment")
		return
	}
	defer f.Close()

	att, err := h.attachmentService.Upload(ctx, userID, roomID, &domain.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		writeError(c, err, "upload attachment")
		return
	}
	response.Created(c, att)
}

// GetFile serves a stored attachment. Local storage relies on it for its
// public URLs.
func (h *Handler) GetFile(c *gin.Context) {
	ctx := c.Request.Context()

	rc, contentType, err := h.attachmentService.Open(ctx, c.Param("key"))
	if err != nil {
		writeError(c, err, "get file")
		return
	}
	defer rc.Close()

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to stream file")
	}
}
