package handlers

import (
	"devpulse/internal/repository"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type clientRequest struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

type clientPatchRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

func (h *Handler) ListClients(c *fiber.Ctx) error {
	clients, pagination, err := h.Store.ListClients(c.UserContext(), userID(c), repository.ClientFilter{
		Search: c.Query("search"),
		Page:   pageParams(c),
	})
	if err != nil {
		return err
	}
	return ok(c, "Clients retrieved successfully", fiber.Map{"clients": clients, "pagination": pagination})
}

func (h *Handler) GetClient(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	client, err := h.Store.GetClient(c.UserContext(), userID(c), id)
	if err != nil {
		return err
	}
	return ok(c, "Client retrieved successfully", client)
}

func (h *Handler) CreateClient(c *fiber.Ctx) error {
	var req clientRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	uid := userID(c)
	client, err := h.Store.CreateClient(c.UserContext(), uid, repository.ClientInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   emptyToNil(req.Phone),
		Company: emptyToNil(req.Company),
		Address: emptyToNil(req.Address),
		Notes:   emptyToNil(req.Notes),
	})
	if err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	logger.AuditLogger.Info("Client created", zap.String("user_id", uid), zap.String("client_id", client.ID))
	return created(c, "Client created successfully", client)
}

func (h *Handler) UpdateClient(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req clientPatchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	uid := userID(c)
	client, err := h.Store.UpdateClient(c.UserContext(), uid, id, repository.ClientPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Address: req.Address,
		Notes:   req.Notes,
	})
	if err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	logger.AuditLogger.Info("Client updated", zap.String("user_id", uid), zap.String("client_id", id))
	return ok(c, "Client updated successfully", client)
}

func (h *Handler) DeleteClient(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	uid := userID(c)
	if err := h.Store.DeleteClient(c.UserContext(), uid, id); err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	logger.AuditLogger.Info("Client deleted", zap.String("user_id", uid), zap.String("client_id", id))
	return ok(c, "Client deleted successfully", nil)
}
