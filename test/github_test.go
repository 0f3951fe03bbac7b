package test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHubStatsBeforeSync(t *testing.T) {
	env := CreateTestApp(t)
	token, _ := env.registerUser(t)

	resp := env.do(t, http.MethodGet, "/api/v1/github/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Nil(t, resp.Body["data"])
	assert.NotEmpty(t, resp.Body["message"])

	resp = env.do(t, http.MethodPost, "/api/v1/github/sync", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "GitHub account is not connected", resp.Body["message"])
}

func TestGitHubCallbackRedirects(t *testing.T) {
	env := CreateTestApp(t)

	resp := env.do(t, http.MethodGet, "/api/v1/github/callback", "", nil)
	require.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, env.cfg.FrontendURL+"/dashboard/github?error=no_code", resp.Header.Get("Location"))

	resp = env.do(t, http.MethodGet, "/api/v1/github/callback?code=abc", "", nil)
	require.Equal(t, http.StatusFound, resp.Status)
	assert.Equal(t, env.cfg.FrontendURL+"/dashboard/github?error=config_error", resp.Header.Get("Location"))
}

func TestGitHubConfigCheckIsPublic(t *testing.T) {
	env := CreateTestApp(t)
	resp := env.do(t, http.MethodGet, "/api/v1/github/config/check", "", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, false, resp.Body["configured"])

	token, _ := env.registerUser(t)
	resp = env.do(t, http.MethodGet, "/api/v1/github/authorize", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}
