package handlers

import (
	"errors"
	"strings"
	"time"

	"devpulse/internal/apperror"
	"devpulse/internal/middleware"
	"devpulse/internal/models"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *Handler) issueToken(u *models.User) (string, error) {
	ttl := time.Duration(h.Cfg.JWTTTLHours) * time.Hour
	token, err := middleware.IssueToken(h.Cfg.JWTSecret, ttl, u, h.now())
	if err != nil {
		return "", apperror.Internal("Error generating token", err)
	}
	return token, nil
}

func (h *Handler) Register(c *fiber.Ctx) error {
	type RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
		Name     string `json:"name" validate:"required"`
	}

	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apperror.Validation("Validation error", apperror.FieldError{Field: "name", Rule: "required"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Internal("Error hashing password", err)
	}

	user, err := h.Store.CreateUser(c.UserContext(), req.Email, req.Name, string(hashed))
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			logger.AuditLogger.Warn("Registration with existing email", zap.String("email", req.Email))
		}
		return err
	}

	token, err := h.issueToken(user)
	if err != nil {
		return err
	}
	logger.AuditLogger.Info("User registered", zap.String("user_id", user.ID))
	return created(c, "User registered successfully", authResponse{User: user, Token: token})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, hash, err := h.Store.GetCredentials(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			logger.SecurityLogger.Warn("Login for unknown email", zap.String("email", req.Email), zap.String("ip", c.IP()))
			return apperror.Unauthorized("Invalid credentials")
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		logger.SecurityLogger.Warn("Failed login attempt", zap.String("user_id", user.ID), zap.String("ip", c.IP()))
		return apperror.Unauthorized("Invalid credentials")
	}

	token, err := h.issueToken(user)
	if err != nil {
		return err
	}
	logger.AuditLogger.Info("User logged in", zap.String("user_id", user.ID))
	return ok(c, "Login successful", authResponse{User: user, Token: token})
}

func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := h.Store.GetUserByID(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return ok(c, "User retrieved successfully", user)
}
