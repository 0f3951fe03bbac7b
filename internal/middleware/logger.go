package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"devpulse/internal/apperror"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler recovers panics and writes one request log line per request.
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorLogger.Error(fmt.Sprintf("Recovered from panic: %v", r),
					zap.String("path", c.Path()),
					zap.String("stack", string(debug.Stack())))
				err = apperror.Internal("Internal server error", fmt.Errorf("panic: %v", r))
			}
		}()

		err = c.Next()

		logger.RequestLogger.Info("Incoming request",
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
			zap.String("ip", c.IP()),
			zap.Duration("latency", time.Since(start)),
			zap.Bool("error", err != nil),
		)
		return err
	}
}

// FiberErrorHandler renders any error returned by a handler in the uniform
// {success, status, message, errors} shape.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"message": fe.Message,
			"success": false,
			"status":  fe.Code,
		})
	}

	status := apperror.Status(err)
	var appErr *apperror.Error
	message := "Internal server error"
	if errors.As(err, &appErr) && status != fiber.StatusInternalServerError {
		message = appErr.Message
	}
	if status == fiber.StatusInternalServerError {
		logger.ErrorLogger.Error("Internal error",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	} else if status == fiber.StatusBadGateway {
		logger.ErrorLogger.Error("Upstream error", zap.String("path", c.Path()), zap.Error(err))
	}

	body := fiber.Map{
		"message": message,
		"success": false,
		"status":  status,
	}
	if appErr != nil && len(appErr.Fields) > 0 {
		body["errors"] = appErr.Fields
	}
	return c.Status(status).JSON(body)
}
