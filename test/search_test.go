package test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchNames(t *testing.T, env *testEnv, token, path, key, term string) []string {
	t.Helper()
	resp := env.do(t, http.MethodGet, path+"?search="+url.QueryEscape(term), token, nil)
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Raw))
	var names []string
	for _, item := range resp.List(t, key) {
		names = append(names, item.(map[string]any)["name"].(string))
	}
	return names
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	env := CreateTestApp(t)
	token, _ := env.registerUser(t)
	env.createClient(t, token, "100% Design")
	env.createClient(t, token, "Acme_Co")
	env.createClient(t, token, "AcmeXCo")
	env.createProject(t, token, "", "Phase_1")
	env.createProject(t, token, "", "PhaseX1")

	assert.Equal(t, []string{"100% Design"}, searchNames(t, env, token, "/api/v1/clients", "clients", "%"))
	assert.Equal(t, []string{"Acme_Co"}, searchNames(t, env, token, "/api/v1/clients", "clients", "_"))
	assert.Equal(t, []string{"Acme_Co"}, searchNames(t, env, token, "/api/v1/clients", "clients", "e_C"))
	assert.Equal(t, []string{"AcmeXCo"}, searchNames(t, env, token, "/api/v1/clients", "clients", "xco"))
	assert.Equal(t, []string{"Phase_1"}, searchNames(t, env, token, "/api/v1/projects", "projects", "e_1"))
}
