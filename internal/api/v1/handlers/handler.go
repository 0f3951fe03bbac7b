package handlers

import (
	"time"

	"devpulse/configs"
	"devpulse/internal/apperror"
	"devpulse/internal/config"
	"devpulse/internal/dashboard"
	"devpulse/internal/github"
	"devpulse/internal/middleware"
	"devpulse/internal/repository"
	"devpulse/internal/websocket"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier publishes realtime events. Delivery is best effort.
type Notifier interface {
	Publish(topic, event string, data any)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, string, any) {}

type Handler struct {
	Store     *repository.Store
	Dashboard *dashboard.Service
	GitHub    *github.Service
	Notifier  Notifier
	Hub       *websocket.Hub
	Cfg       configs.Config
	now       func() time.Time
}

func New(cfg configs.Config, store *repository.Store, dash *dashboard.Service, gh *github.Service, hub *websocket.Hub) *Handler {
	h := &Handler{
		Store:     store,
		Dashboard: dash,
		GitHub:    gh,
		Hub:       hub,
		Cfg:       cfg,
		Notifier:  nopNotifier{},
		now:       time.Now,
	}
	if hub != nil {
		h.Notifier = hub
	}
	return h
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	body := fiber.Map{
		"message": message,
		"success": true,
		"status":  status,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

func ok(c *fiber.Ctx, message string, data any) error {
	return respond(c, fiber.StatusOK, message, data)
}

func created(c *fiber.Ctx, message string, data any) error {
	return respond(c, fiber.StatusCreated, message, data)
}

// parseBody decodes the JSON body into dst and runs the struct validation tags.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		logger.ContextLogger.Debug("Bad request body", zap.String("path", c.Path()), zap.Error(err))
		return apperror.Validation("Bad request")
	}
	if err := config.Validate.Struct(dst); err != nil {
		return apperror.FromValidator(err)
	}
	return nil
}

// pathID returns the :id route param, rejecting anything that is not a UUID.
func pathID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", apperror.Validation("Invalid id", apperror.FieldError{Field: "id", Rule: "uuid"})
	}
	return id, nil
}

// queryID reads an optional UUID query parameter.
func queryID(c *fiber.Ctx, name string) (string, error) {
	v := c.Query(name)
	if v == "" {
		return "", nil
	}
	if _, err := uuid.Parse(v); err != nil {
		return "", apperror.Validation("Invalid "+name, apperror.FieldError{Field: name, Rule: "uuid"})
	}
	return v, nil
}

func pageParams(c *fiber.Ctx) repository.Page {
	return repository.Page{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", 10)}
}

func userID(c *fiber.Ctx) string {
	return middleware.UserID(c)
}
