package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"devpulse/internal/apperror"
	"devpulse/internal/middleware"
	myws "devpulse/internal/websocket"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ownershipTimeout = 5 * time.Second

type socketRequest struct {
	Action    string `json:"action"`
	ProjectID string `json:"projectId"`
}

type socketReply struct {
	Event string `json:"event"`
	Topic string `json:"topic,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// UpgradeWebSocket authenticates ?token= before the connection is upgraded.
func (h *Handler) UpgradeWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := c.Query("token")
	if token == "" {
		return apperror.Unauthorized("No token provided")
	}
	claims, err := middleware.ParseToken(h.Cfg.JWTSecret, token)
	if err != nil {
		logger.SecurityLogger.Warn("Rejected websocket token", zap.String("ip", c.IP()), zap.Error(err))
		return err
	}
	user, err := h.Store.GetUserByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Unauthorized("User not found")
		}
		return err
	}
	c.Locals("userID", user.ID)
	return c.Next()
}

// WebSocket serves one realtime connection. Clients join and leave project
// topics with {"action":"join"|"leave","projectId":"..."}.
func (h *Handler) WebSocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, _ := conn.Locals("userID").(string)
		client := myws.NewClient(uid, conn)
		h.Hub.Add(client)
		defer h.Hub.Remove(client)
		logger.SystemLogger.Info("Websocket connected", zap.String("user_id", uid))

		for {
			messageType, raw, err := conn.ReadMessage()
			if err != nil {
				logger.SystemLogger.Info("Websocket closed", zap.String("user_id", uid), zap.Error(err))
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			h.handleSocketMessage(client, raw)
		}
	})
}

func (h *Handler) handleSocketMessage(client *myws.Client, raw []byte) {
	var req socketRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.reply(client, socketReply{Event: "error", Data: fiber.Map{"message": "Invalid message"}})
		return
	}
	if _, err := uuid.Parse(req.ProjectID); err != nil {
		h.reply(client, socketReply{Event: "error", Data: fiber.Map{"message": "Invalid projectId"}})
		return
	}
	topic := myws.ProjectTopic(req.ProjectID)

	switch req.Action {
	case "join":
		ctx, cancel := context.WithTimeout(context.Background(), ownershipTimeout)
		owned, err := h.Store.ProjectOwned(ctx, client.UserID, req.ProjectID)
		cancel()
		if err != nil {
			logger.ErrorLogger.Error("Error checking project ownership", zap.Error(err))
			h.reply(client, socketReply{Event: "error", Data: fiber.Map{"message": "Internal server error"}})
			return
		}
		if !owned {
			logger.SecurityLogger.Warn("Websocket join to foreign project",
				zap.String("user_id", client.UserID), zap.String("project_id", req.ProjectID))
			h.reply(client, socketReply{Event: "error", Data: fiber.Map{"message": "Project not found"}})
			return
		}
		h.Hub.Join(client, topic)
		h.reply(client, socketReply{Event: "joined", Topic: topic})
	case "leave":
		h.Hub.Leave(client, topic)
		h.reply(client, socketReply{Event: "left", Topic: topic})
	default:
		h.reply(client, socketReply{Event: "error", Data: fiber.Map{"message": "Unknown action"}})
	}
}

func (h *Handler) reply(client *myws.Client, r socketReply) {
	payload, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := client.Send(payload); err != nil {
		logger.SystemLogger.Info("Websocket reply failed", zap.String("user_id", client.UserID), zap.Error(err))
	}
}
