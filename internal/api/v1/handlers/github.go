package handlers

import (
	"errors"
	"net/url"
	"strings"

	"devpulse/internal/github"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func (h *Handler) GitHubStats(c *fiber.Ctx) error {
	stats, err := h.GitHub.Stats(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	if stats == nil {
		return c.JSON(fiber.Map{
			"message": "No GitHub stats yet. Connect your account and sync to see metrics.",
			"success": true,
			"status":  fiber.StatusOK,
			"data":    nil,
		})
	}
	return ok(c, "GitHub stats retrieved successfully", stats)
}

func (h *Handler) GitHubProfile(c *fiber.Ctx) error {
	profile, err := h.GitHub.Profile(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return ok(c, "GitHub profile retrieved successfully", profile)
}

func (h *Handler) SyncGitHub(c *fiber.Ctx) error {
	stats, err := h.GitHub.Sync(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return ok(c, "GitHub stats synced successfully", stats)
}

func (h *Handler) ConnectGitHub(c *fiber.Ctx) error {
	type ConnectRequest struct {
		AccessToken string `json:"accessToken" validate:"required"`
	}
	var req ConnectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	account, err := h.GitHub.Connect(c.UserContext(), userID(c), strings.TrimSpace(req.AccessToken))
	if err != nil {
		return err
	}
	return ok(c, "GitHub account connected successfully", account)
}

func (h *Handler) DisconnectGitHub(c *fiber.Ctx) error {
	if err := h.GitHub.Disconnect(c.UserContext(), userID(c)); err != nil {
		return err
	}
	return ok(c, "GitHub account disconnected", nil)
}

func (h *Handler) GitHubAuthorize(c *fiber.Ctx) error {
	authURL, err := h.GitHub.AuthorizeURL(userID(c))
	if err != nil {
		return err
	}
	return ok(c, "GitHub authorization URL", fiber.Map{"url": authURL})
}

func (h *Handler) GitHubConfigCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"configured":      h.Cfg.GitHubConfigured(),
		"hasClientId":     h.Cfg.GitHubClientID != "",
		"hasClientSecret": h.Cfg.GitHubClientSecret != "",
	})
}

// GitHubCallback finishes the OAuth flow and sends the browser back to the frontend
// with either connected=true or the failure reason.
func (h *Handler) GitHubCallback(c *fiber.Ctx) error {
	target := strings.TrimRight(h.Cfg.FrontendURL, "/") + "/dashboard/github"

	uid, err := h.GitHub.CompleteOAuth(c.UserContext(), c.Query("code"), c.Query("state"))
	if err != nil {
		reason := github.ReasonServer
		var cbErr *github.CallbackError
		if errors.As(err, &cbErr) {
			reason = cbErr.Reason
		}
		logger.SecurityLogger.Warn("GitHub OAuth callback failed",
			zap.String("reason", reason), zap.String("ip", c.IP()), zap.Error(err))
		return c.Redirect(target+"?error="+url.QueryEscape(reason), fiber.StatusFound)
	}

	logger.AuditLogger.Info("GitHub OAuth completed", zap.String("user_id", uid))
	return c.Redirect(target+"?connected=true", fiber.StatusFound)
}
