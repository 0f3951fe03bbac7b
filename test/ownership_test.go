package test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Another user's resources must be indistinguishable from missing ones.
func TestCrossUserAccessIsNotFound(t *testing.T) {
	env := CreateTestApp(t)
	alice, _ := env.registerUser(t)
	bob, _ := env.registerUser(t)

	clientID := env.createClient(t, alice, "Acme")
	projectID := env.createProject(t, alice, clientID, "Website")
	taskID := env.create(t, "/api/v1/tasks", alice, map[string]any{"projectId": projectID, "title": "Design"})["id"].(string)
	invoiceID := env.create(t, "/api/v1/invoices", alice, map[string]any{
		"clientId": clientID,
		"dueDate":  time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		"items":    []map[string]any{{"description": "Work", "quantity": 1, "unitPrice": 10}},
	})["id"].(string)

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/v1/clients/" + clientID, nil},
		{http.MethodPut, "/api/v1/clients/" + clientID, map[string]any{"name": "Hijacked"}},
		{http.MethodDelete, "/api/v1/clients/" + clientID, nil},
		{http.MethodGet, "/api/v1/projects/" + projectID, nil},
		{http.MethodPut, "/api/v1/projects/" + projectID, map[string]any{"name": "Hijacked"}},
		{http.MethodDelete, "/api/v1/projects/" + projectID, nil},
		{http.MethodGet, "/api/v1/tasks/" + taskID, nil},
		{http.MethodPut, "/api/v1/tasks/" + taskID, map[string]any{"status": "COMPLETED"}},
		{http.MethodDelete, "/api/v1/tasks/" + taskID, nil},
		{http.MethodGet, "/api/v1/tasks?projectId=" + projectID, nil},
		{http.MethodGet, "/api/v1/invoices/" + invoiceID, nil},
		{http.MethodPatch, "/api/v1/invoices/" + invoiceID + "/status", map[string]any{"status": "PAID"}},
		{http.MethodGet, "/api/v1/invoices/" + invoiceID + "/pdf", nil},
		{http.MethodDelete, "/api/v1/invoices/" + invoiceID, nil},
		{http.MethodPost, "/api/v1/projects", map[string]any{"name": "Mine", "clientId": clientID}},
		{http.MethodPost, "/api/v1/tasks", map[string]any{"title": "Mine", "projectId": projectID}},
		{http.MethodPost, "/api/v1/invoices", map[string]any{
			"clientId": clientID,
			"dueDate":  "2030-01-01",
			"items":    []map[string]any{{"description": "x", "quantity": 1, "unitPrice": 1}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := env.do(t, tc.method, tc.path, bob, tc.body)
			assert.Equal(t, http.StatusNotFound, resp.Status, string(resp.Raw))
		})
	}

	// Nothing of Alice's was touched.
	resp := env.do(t, http.MethodGet, "/api/v1/clients/"+clientID, alice, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Acme", resp.Data(t)["name"])
	resp = env.do(t, http.MethodGet, "/api/v1/invoices/"+invoiceID, alice, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "DRAFT", resp.Data(t)["status"])

	// Lists only show the caller's rows.
	resp = env.do(t, http.MethodGet, "/api/v1/clients", bob, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, resp.List(t, "clients"))
}

func TestMalformedIDIsBadRequest(t *testing.T) {
	env := CreateTestApp(t)
	token, _ := env.registerUser(t)

	resp := env.do(t, http.MethodGet, "/api/v1/clients/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "Invalid id", resp.Body["message"])
}
