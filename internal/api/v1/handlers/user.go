package handlers

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"devpulse/internal/apperror"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const maxAvatarSize = 5 << 20

var avatarExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

func (h *Handler) GetProfile(c *fiber.Ctx) error {
	profile, err := h.Store.GetProfile(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return ok(c, "Profile retrieved successfully", profile)
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	type ProfileRequest struct {
		Name   *string `json:"name" validate:"omitempty,min=1"`
		Avatar *string `json:"avatar"`
	}

	var req ProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.Store.UpdateProfile(c.UserContext(), userID(c), req.Name, req.Avatar)
	if err != nil {
		return err
	}
	logger.AuditLogger.Info("Profile updated", zap.String("user_id", user.ID))
	return ok(c, "Profile updated successfully", user)
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	type PasswordRequest struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=6"`
	}

	var req PasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	uid := userID(c)
	if err := h.checkPassword(c, uid, req.CurrentPassword, "Current password is incorrect"); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Internal("Error hashing password", err)
	}
	if err := h.Store.UpdatePassword(c.UserContext(), uid, string(hashed)); err != nil {
		return err
	}
	logger.SecurityLogger.Warn("Password changed", zap.String("user_id", uid), zap.String("ip", c.IP()))
	return ok(c, "Password updated successfully", nil)
}

func (h *Handler) DeleteAccount(c *fiber.Ctx) error {
	type DeleteAccountRequest struct {
		Password string `json:"password" validate:"required"`
	}

	var req DeleteAccountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	uid := userID(c)
	if err := h.checkPassword(c, uid, req.Password, "Incorrect password"); err != nil {
		return err
	}
	if err := h.Store.DeleteUser(c.UserContext(), uid); err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	logger.AuditLogger.Info("Account deleted", zap.String("user_id", uid))
	return ok(c, "Account deleted successfully", nil)
}

func (h *Handler) checkPassword(c *fiber.Ctx, uid, password, message string) error {
	hash, err := h.Store.GetPasswordHash(c.UserContext(), uid)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		logger.SecurityLogger.Warn("Password check failed", zap.String("user_id", uid), zap.String("ip", c.IP()))
		return apperror.Validation(message)
	}
	return nil
}

func validateAvatar(file *multipart.FileHeader) error {
	if file.Size > maxAvatarSize {
		return apperror.Validation("File size exceeds the limit of 5MB")
	}
	if !avatarExts[strings.ToLower(filepath.Ext(file.Filename))] {
		return apperror.Validation("File type not allowed")
	}
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		return apperror.Validation("File must be an image")
	}
	return nil
}

// UploadAvatar stores the picture under the upload dir and points the user's avatar at it.
func (h *Handler) UploadAvatar(c *fiber.Ctx) error {
	uid := userID(c)

	file, err := c.FormFile("avatar")
	if err != nil {
		return apperror.Validation("Error uploading file", apperror.FieldError{Field: "avatar", Rule: "required"})
	}
	if err := validateAvatar(file); err != nil {
		return err
	}

	if err := os.MkdirAll(h.Cfg.UploadDir, os.ModePerm); err != nil {
		return apperror.Internal("Error creating upload directory", err)
	}
	filename := fmt.Sprintf("%s-%d%s", uid, h.now().UnixNano(), strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveFile(file, filepath.Join(h.Cfg.UploadDir, filename)); err != nil {
		return apperror.Internal("Error saving file", err)
	}

	url := "/api/v1/uploads/" + filename
	user, err := h.Store.UpdateProfile(c.UserContext(), uid, nil, &url)
	if err != nil {
		return err
	}
	logger.AuditLogger.Info("Avatar uploaded", zap.String("user_id", uid), zap.String("filename", filename))
	return ok(c, "Avatar uploaded successfully", user)
}

func (h *Handler) GetUpload(c *fiber.Ctx) error {
	name := filepath.Base(c.Params("filename"))
	if name == "." || name == "/" || strings.HasPrefix(name, "..") {
		return apperror.NotFound("File not found")
	}
	path := filepath.Join(h.Cfg.UploadDir, name)
	if _, err := os.Stat(path); err != nil {
		return apperror.NotFound("File not found")
	}
	return c.SendFile(path)
}
