package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devpulse/internal/apperror"
	"devpulse/internal/models"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// UserLookup confirms that the subject of a token still exists.
type UserLookup func(ctx context.Context, id string) (*models.User, error)

func IssueToken(secret string, ttl time.Duration, u *models.User, now time.Time) (string, error) {
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies the signature and expiry of raw.
func ParseToken(secret, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.Unauthorized("Token expired")
		}
		return nil, apperror.Unauthorized("Invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, apperror.Unauthorized("Invalid token claims")
	}
	return claims, nil
}

// UseToken authenticates the bearer token and stores the caller in
// c.Locals("userID") and c.Locals("email").
func UseToken(secret string, lookup UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return apperror.Unauthorized("No token provided")
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return apperror.Unauthorized("Invalid token format")
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			logger.SecurityLogger.Warn("Rejected token",
				zap.String("ip", c.IP()), zap.String("path", c.Path()), zap.Error(err))
			return err
		}

		user, err := lookup(c.UserContext(), claims.UserID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				logger.SecurityLogger.Warn("Token for unknown user", zap.String("user_id", claims.UserID))
				return apperror.Unauthorized("User not found")
			}
			return err
		}

		c.Locals("userID", user.ID)
		c.Locals("email", user.Email)
		return c.Next()
	}
}

// UserID returns the authenticated caller set by UseToken.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}
