package handlers

import (
	"devpulse/internal/models"
	"devpulse/internal/repository"
	"devpulse/internal/websocket"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type taskRequest struct {
	ProjectID   string  `json:"projectId" validate:"required,uuid"`
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
	Status      string  `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW COMPLETED CANCELLED"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Hours       float64 `json:"hours" validate:"gte=0"`
	DueDate     *Date   `json:"dueDate"`
}

type taskPatchRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=1"`
	Description *string  `json:"description"`
	Status      *string  `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS IN_REVIEW COMPLETED CANCELLED"`
	Priority    *string  `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Hours       *float64 `json:"hours" validate:"omitempty,gte=0"`
	DueDate     *Date    `json:"dueDate"`
}

func (h *Handler) ListTasks(c *fiber.Ctx) error {
	projectID, err := queryID(c, "projectId")
	if err != nil {
		return err
	}
	tasks, err := h.Store.ListTasks(c.UserContext(), userID(c), repository.TaskFilter{
		ProjectID: projectID,
		Status:    models.TaskStatus(c.Query("status")),
		Priority:  models.TaskPriority(c.Query("priority")),
	})
	if err != nil {
		return err
	}
	return ok(c, "Tasks retrieved successfully", tasks)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	task, err := h.Store.GetTask(c.UserContext(), userID(c), id)
	if err != nil {
		return err
	}
	return ok(c, "Task retrieved successfully", task)
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	var req taskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	uid := userID(c)
	task, err := h.Store.CreateTask(c.UserContext(), uid, repository.TaskInput{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: emptyToNil(req.Description),
		Status:      models.TaskStatus(req.Status),
		Priority:    models.TaskPriority(req.Priority),
		Hours:       req.Hours,
		DueDate:     req.DueDate.Ptr(),
	})
	if err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	h.Notifier.Publish(websocket.ProjectTopic(task.ProjectID), websocket.EventTaskCreated, task)
	logger.AuditLogger.Info("Task created", zap.String("user_id", uid), zap.String("task_id", task.ID))
	return created(c, "Task created successfully", task)
}

func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req taskPatchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	patch := repository.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Hours:       req.Hours,
		DueDate:     req.DueDate.Ptr(),
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}

	uid := userID(c)
	task, err := h.Store.UpdateTask(c.UserContext(), uid, id, patch)
	if err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	h.Notifier.Publish(websocket.ProjectTopic(task.ProjectID), websocket.EventTaskUpdated, task)
	logger.AuditLogger.Info("Task updated", zap.String("user_id", uid), zap.String("task_id", id))
	return ok(c, "Task updated successfully", task)
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	uid := userID(c)
	projectID, err := h.Store.DeleteTask(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	h.Notifier.Publish(websocket.ProjectTopic(projectID), websocket.EventTaskDeleted, fiber.Map{"id": id})
	logger.AuditLogger.Info("Task deleted", zap.String("user_id", uid), zap.String("task_id", id))
	return ok(c, "Task deleted successfully", nil)
}
