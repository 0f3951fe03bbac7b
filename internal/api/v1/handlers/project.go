package handlers

import (
	"devpulse/internal/apperror"
	"devpulse/internal/models"
	"devpulse/internal/repository"
	"devpulse/internal/websocket"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type projectRequest struct {
	ClientID    *string          `json:"clientId" validate:"omitempty,uuid"`
	Name        string           `json:"name" validate:"required"`
	Description *string          `json:"description"`
	Status      string           `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED ON_HOLD"`
	Budget      *decimal.Decimal `json:"budget"`
	StartDate   *Date            `json:"startDate"`
	EndDate     *Date            `json:"endDate"`
}

type projectPatchRequest struct {
	ClientID    *string          `json:"clientId" validate:"omitempty,uuid"`
	Name        *string          `json:"name" validate:"omitempty,min=1"`
	Description *string          `json:"description"`
	Status      *string          `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED ON_HOLD"`
	Budget      *decimal.Decimal `json:"budget"`
	StartDate   *Date            `json:"startDate"`
	EndDate     *Date            `json:"endDate"`
}

func budget(d *decimal.Decimal) (decimal.NullDecimal, error) {
	if d == nil {
		return decimal.NullDecimal{}, nil
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, apperror.Validation("Validation error",
			apperror.FieldError{Field: "budget", Rule: "gte", Param: "0"})
	}
	return decimal.NewNullDecimal(*d), nil
}

func (h *Handler) ListProjects(c *fiber.Ctx) error {
	clientID, err := queryID(c, "clientId")
	if err != nil {
		return err
	}
	projects, pagination, err := h.Store.ListProjects(c.UserContext(), userID(c), repository.ProjectFilter{
		Status:   models.ProjectStatus(c.Query("status")),
		ClientID: clientID,
		Search:   c.Query("search"),
		Page:     pageParams(c),
	})
	if err != nil {
		return err
	}
	return ok(c, "Projects retrieved successfully", fiber.Map{"projects": projects, "pagination": pagination})
}

func (h *Handler) GetProject(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	project, err := h.Store.GetProject(c.UserContext(), userID(c), id)
	if err != nil {
		return err
	}
	return ok(c, "Project retrieved successfully", project)
}

func (h *Handler) CreateProject(c *fiber.Ctx) error {
	var req projectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	b, err := budget(req.Budget)
	if err != nil {
		return err
	}

	uid := userID(c)
	project, err := h.Store.CreateProject(c.UserContext(), uid, repository.ProjectInput{
		ClientID:    emptyToNil(req.ClientID),
		Name:        req.Name,
		Description: emptyToNil(req.Description),
		Status:      models.ProjectStatus(req.Status),
		Budget:      b,
		StartDate:   req.StartDate.Ptr(),
		EndDate:     req.EndDate.Ptr(),
	})
	if err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	logger.AuditLogger.Info("Project created", zap.String("user_id", uid), zap.String("project_id", project.ID))
	return created(c, "Project created successfully", project)
}

func (h *Handler) UpdateProject(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req projectPatchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	b, err := budget(req.Budget)
	if err != nil {
		return err
	}

	patch := repository.ProjectPatch{
		ClientID:    emptyToNil(req.ClientID),
		Name:        req.Name,
		Description: req.Description,
		Budget:      b,
		StartDate:   req.StartDate.Ptr(),
		EndDate:     req.EndDate.Ptr(),
	}
	if req.Status != nil {
		status := models.ProjectStatus(*req.Status)
		patch.Status = &status
	}

	uid := userID(c)
	project, err := h.Store.UpdateProject(c.UserContext(), uid, id, patch)
	if err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	h.Notifier.Publish(websocket.ProjectTopic(project.ID), websocket.EventProjectUpdated, project)
	logger.AuditLogger.Info("Project updated", zap.String("user_id", uid), zap.String("project_id", id))
	return ok(c, "Project updated successfully", project)
}

func (h *Handler) DeleteProject(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	uid := userID(c)
	if err := h.Store.DeleteProject(c.UserContext(), uid, id); err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	logger.AuditLogger.Info("Project deleted", zap.String("user_id", uid), zap.String("project_id", id))
	return ok(c, "Project deleted successfully", nil)
}
