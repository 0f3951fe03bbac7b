package test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := CreateTestApp(t)

	email := fmt.Sprintf("Login_%d@Example.com", time.Now().UnixNano())
	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "name": "  Ana  ",
	})
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Raw))
	user := resp.Data(t)["user"].(map[string]any)
	assert.Equal(t, "Ana", user["name"])
	assert.NotContains(t, string(resp.Raw), "password")

	resp = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Raw))
	token := resp.Data(t)["token"].(string)

	resp = env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, user["id"], resp.Data(t)["id"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := CreateTestApp(t)
	email := fmt.Sprintf("dup_%d@example.com", time.Now().UnixNano())
	body := map[string]string{"email": email, "password": "secret123", "name": "Dup"}

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/auth/register", "", body).Status)
	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, false, resp.Body["success"])
}

func TestRegisterValidation(t *testing.T) {
	env := CreateTestApp(t)

	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "123", "name": "",
	})
	require.Equal(t, http.StatusBadRequest, resp.Status)
	fields := map[string]bool{}
	for _, f := range resp.Body["errors"].([]any) {
		fields[f.(map[string]any)["field"].(string)] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
	assert.True(t, fields["name"])
}

func TestLoginWrongPassword(t *testing.T) {
	env := CreateTestApp(t)
	email := fmt.Sprintf("wrong_%d@example.com", time.Now().UnixNano())
	env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "name": "Wrong",
	})

	resp := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "nope-nope",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, "Invalid credentials", resp.Body["message"])

	resp = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, "Invalid credentials", resp.Body["message"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := CreateTestApp(t)

	for _, path := range []string{"/api/v1/clients", "/api/v1/projects", "/api/v1/tasks", "/api/v1/invoices",
		"/api/v1/dashboard/metrics", "/api/v1/github/stats", "/api/v1/users/profile"} {
		resp := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Status, path)
	}
	resp := env.do(t, http.MethodGet, "/api/v1/clients", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestHealth(t *testing.T) {
	env := CreateTestApp(t)
	resp := env.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "ok", resp.Body["status"])
}
