package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/CutzuDev/itec2025/internal/config"
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/hub"
	"github.com/CutzuDev/itec2025/internal/roomview"
	"github.com/CutzuDev/itec2025/internal/service"
	"github.com/CutzuDev/itec2025/pkg/log"
	"github.com/CutzuDev/itec2025/pkg/middleware"
)

const opTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub            *hub.Hub
	views          *roomview.Manager
	rooms          service.RoomService
	authMiddleware *middleware.AuthMiddleware
	wsCfg          config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, views *roomview.Manager, rooms service.RoomService, authMiddleware *middleware.AuthMiddleware, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:            h,
		views:          views,
		rooms:          rooms,
		authMiddleware: authMiddleware,
		wsCfg:          wsCfg,
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/v1/rooms/:id/ws", h.authMiddleware.RequireAuthOrQuery(), h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and opens a live view of the room.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	if err := h.rooms.CheckAccess(ctx, userID, roomID); err != nil {
		writeError(c, err, "open websocket")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The request context ends when this handler returns.
	connCtx := log.WithLogger(context.Background(), log.Ctx(ctx))
	client := hub.NewClient(connCtx, uuid.New().String(), userID, roomID, h.hub, conn, h.wsCfg)
	client.Views = h.views.NewRegistry(roomview.Viewer{
		UserID:      userID,
		DisplayName: middleware.GetUsername(c),
	}, client)

	h.hub.Register(client)
	go client.WritePump()

	h.openRoom(client, roomID)
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) openRoom(client *hub.Client, roomID string) {
	ctx, cancel := context.WithTimeout(client.Context(), opTimeout)
	defer cancel()

	// Indexed before the snapshot goes out so an eviction cannot miss it.
	h.hub.JoinRoom(client, roomID)
	if _, err := client.Views.Open(ctx, roomID); err != nil {
		h.hub.LeaveRoom(client, roomID)
		_, code, msg := errorCode(err)
		client.SendMessage(domain.NewErrorFrame(roomID, code, msg))
	}
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var frame domain.ClientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		client.SendMessage(domain.NewErrorFrame("", domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	roomID := frame.RoomID
	if roomID == "" {
		roomID = client.RoomID
	}

	switch frame.Type {
	case domain.FramePing:
		client.SendMessage(map[string]string{"type": domain.FramePong})
		return
	case domain.FrameOpenRoom:
		h.openRoom(client, roomID)
		return
	case domain.FrameCloseRoom:
		client.Views.Close(roomID)
		h.hub.LeaveRoom(client, roomID)
		return
	}

	view, ok := client.Views.Get(roomID)
	if !ok {
		client.SendMessage(domain.NewErrorFrame(roomID, domain.ErrCodeNotFound, "room is not open"))
		return
	}

	ctx, cancel := context.WithTimeout(client.Context(), opTimeout)
	defer cancel()
	ctx = log.WithRoom(ctx, roomID)

	switch frame.Type {
	case domain.FrameTyping:
		view.Keystroke()

	case domain.FrameSend:
		_, err := view.Send(ctx, domain.NewMessage{
			ID:          frame.ID,
			Body:        frame.Body,
			Attachments: frame.Attachments,
		})
		var sendErr *roomview.SendError
		if err != nil && !errors.As(err, &sendErr) {
			h.reportError(client, roomID, err)
		} else if sendErr != nil {
			_, code, msg := errorCode(sendErr.Err)
			client.SendMessage(&domain.SendFailedFrame{
				Type:   domain.FrameSendFailed,
				RoomID: roomID,
				Draft: domain.Draft{
					ID:          sendErr.Draft.ID,
					Body:        sendErr.Draft.Body,
					Attachments: sendErr.Draft.Attachments,
				},
				Code:    code,
				Message: msg,
			})
		}

	case domain.FrameEdit:
		if _, err := view.Edit(ctx, frame.MessageID, frame.Body); err != nil {
			h.reportError(client, roomID, err)
		}

	case domain.FrameDelete:
		if err := view.Delete(ctx, frame.MessageID); err != nil {
			h.reportError(client, roomID, err)
		}

	default:
		client.SendMessage(domain.NewErrorFrame(roomID, domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

func (h *WSHandler) reportError(client *hub.Client, roomID string, err error) {
	status, code, msg := errorCode(err)
	if status >= http.StatusInternalServerError {
		l := log.Ctx(client.Context())
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("websocket request failed")
	}
	client.SendMessage(domain.NewErrorFrame(roomID, code, msg))
}
