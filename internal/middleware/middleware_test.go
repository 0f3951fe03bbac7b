package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devpulse/internal/apperror"
	"devpulse/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

var alice = &models.User{ID: "6f1c1d2a-3b4c-4d5e-8f90-0123456789ab", Email: "alice@example.com"}

func lookupAlice(_ context.Context, id string) (*models.User, error) {
	if id == alice.ID {
		return alice, nil
	}
	return nil, apperror.NotFound("User not found")
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: FiberErrorHandler})
	app.Use(ErrorHandler())
	app.Get("/me", UseToken(secret, lookupAlice), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": UserID(c), "email": c.Locals("email")})
	})
	app.Get("/panic", func(c *fiber.Ctx) error {
		panic("kaboom")
	})
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return apperror.Validation("Validation error", apperror.FieldError{Field: "email", Rule: "email"})
	})
	return app
}

func do(t *testing.T, app *fiber.App, path, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestUseTokenAcceptsValidToken(t *testing.T) {
	token, err := IssueToken(secret, time.Hour, alice, time.Now())
	require.NoError(t, err)

	status, body := do(t, newApp(), "/me", token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, alice.ID, body["userID"])
	assert.Equal(t, alice.Email, body["email"])
}

func TestUseTokenRejections(t *testing.T) {
	expired, err := IssueToken(secret, time.Hour, alice, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", time.Hour, alice, time.Now())
	require.NoError(t, err)
	ghost, err := IssueToken(secret, time.Hour, &models.User{ID: "00000000-0000-4000-8000-000000000000"}, time.Now())
	require.NoError(t, err)

	cases := []struct {
		name    string
		token   string
		message string
	}{
		{"missing", "", "No token provided"},
		{"expired", expired, "Token expired"},
		{"wrong secret", forged, "Invalid token"},
		{"garbage", "not.a.jwt", "Invalid token"},
		{"deleted user", ghost, "User not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, newApp(), "/me", tc.token)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.message, body["message"])
		})
	}
}

func TestInvalidAuthorizationScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := newApp().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPanicBecomesGenericInternalError(t *testing.T) {
	status, body := do(t, newApp(), "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestValidationErrorCarriesFields(t *testing.T) {
	status, body := do(t, newApp(), "/invalid", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, float64(400), body["status"])
	fields, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "email", fields[0].(map[string]any)["field"])
}

func TestUnknownRouteIs404(t *testing.T) {
	status, body := do(t, newApp(), "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
}
