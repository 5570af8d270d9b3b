package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkerpauldavid/oauth-mcp-server/internal/authflow"
	"github.com/walkerpauldavid/oauth-mcp-server/internal/config"
)

// newTestServer wires a Server against a fake identity endpoint. The
// handlers are installed on the standard v2.0 paths for the tenant.
func newTestServer(t *testing.T, flow string, deviceHandler, tokenHandler http.HandlerFunc) *Server {
	t.Helper()

	mux := http.NewServeMux()
	if deviceHandler != nil {
		mux.HandleFunc("/tenant-a/oauth2/v2.0/devicecode", deviceHandler)
	}
	if tokenHandler != nil {
		mux.HandleFunc("/tenant-a/oauth2/v2.0/token", tokenHandler)
	}
	idp := httptest.NewServer(mux)
	t.Cleanup(idp.Close)

	cfg := &config.Config{
		Flow:            flow,
		Authority:       idp.URL,
		TenantID:        "tenant-a",
		ClientID:        "client-1",
		ClientSecret:    "hunter2",
		Scope:           "api://app/.default",
		CompleteTimeout: 5 * time.Second,
		FlowTimeout:     5 * time.Second,
	}
	manager := authflow.NewManager(cfg.AuthFlow(), authflow.NewCache())

	server, err := New(cfg, manager)
	require.NoError(t, err)
	return server
}

// resultJSON decodes the single text content of a tool result.
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()

	require.Len(t, result.Content, 1)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	return body
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestHandlePing(t *testing.T) {
	server := newTestServer(t, "client_credentials", nil, nil)

	result, err := server.handlePing(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, "pong", text.Text)
}

func TestHandleGetServerInfo(t *testing.T) {
	server := newTestServer(t, "device_code", nil, nil)

	result, err := server.handleGetServerInfo(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)

	body := resultJSON(t, result)
	assert.Equal(t, serverName, body["name"])
	assert.Equal(t, serverVersion, body["version"])
	assert.Equal(t, "device_code", body["flow"])
}

func TestHandleGetTokenClientCredentials(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := newTestServer(t, "client_credentials", nil, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK,
				`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600,"scope":"api://app/.default"}`)
		})

		result, err := server.handleGetTokenClientCredentials(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)

		body := resultJSON(t, result)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "tok-1", body["access_token"])
		assert.Equal(t, "Bearer", body["token_type"])
	})

	t.Run("invalid credentials reported as data", func(t *testing.T) {
		server := newTestServer(t, "client_credentials", nil, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized,
				`{"error":"invalid_client","error_description":"secret is wrong"}`)
		})

		result, err := server.handleGetTokenClientCredentials(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)
		assert.False(t, result.IsError)

		body := resultJSON(t, result)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, string(authflow.KindInvalidCredentials), body["error_kind"])
	})
}

func TestHandleStartDeviceAuth(t *testing.T) {
	server := newTestServer(t, "device_code", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK,
			`{"device_code":"dc-1","user_code":"A1B2C3D4","verification_uri":"https://example.com/devicelogin","expires_in":900,"interval":5}`)
	}, nil)

	result, err := server.handleStartDeviceAuth(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)

	body := resultJSON(t, result)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "A1B2C3D4", body["user_code"])
	assert.Equal(t, "https://example.com/devicelogin", body["verification_uri"])
	assert.Contains(t, body["message"], "A1B2C3D4")
	assert.Contains(t, body["next_step"], "complete_device_auth")
}

func TestHandleCompleteDeviceAuth(t *testing.T) {
	t.Run("without a started flow", func(t *testing.T) {
		server := newTestServer(t, "device_code", nil, nil)

		result, err := server.handleCompleteDeviceAuth(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)

		body := resultJSON(t, result)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, string(authflow.KindReauthenticationRequired), body["error_kind"])
	})

	t.Run("success after start", func(t *testing.T) {
		server := newTestServer(t, "device_code",
			func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK,
					`{"device_code":"dc-1","user_code":"A1B2C3D4","verification_uri":"https://example.com/devicelogin","expires_in":900,"interval":5}`)
			},
			func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK,
					`{"access_token":"device-tok","token_type":"Bearer","expires_in":3600,"scope":"api://app/.default"}`)
			})

		_, err := server.handleStartDeviceAuth(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)

		result, err := server.handleCompleteDeviceAuth(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)

		body := resultJSON(t, result)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "device-tok", body["access_token"])
	})
}

func TestHandleDeviceAuthFlow(t *testing.T) {
	t.Run("one call returns the token", func(t *testing.T) {
		server := newTestServer(t, "device_code",
			func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK,
					`{"device_code":"dc-1","user_code":"A1B2C3D4","verification_uri":"https://example.com/devicelogin","expires_in":900,"interval":5}`)
			},
			func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK,
					`{"access_token":"device-tok","token_type":"Bearer","expires_in":3600}`)
			})

		result, err := server.handleDeviceAuthFlow(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)

		body := resultJSON(t, result)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "device-tok", body["access_token"])
	})

	t.Run("poll failure falls back to pending", func(t *testing.T) {
		server := newTestServer(t, "device_code",
			func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK,
					`{"device_code":"dc-1","user_code":"A1B2C3D4","verification_uri":"https://example.com/devicelogin","expires_in":900,"interval":5}`)
			},
			func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest,
					`{"error":"expired_token","error_description":"the code expired"}`)
			})

		result, err := server.handleDeviceAuthFlow(context.Background(), mcp.CallToolRequest{})
		require.NoError(t, err)

		body := resultJSON(t, result)
		assert.Equal(t, "pending", body["status"])
		assert.Equal(t, "A1B2C3D4", body["user_code"])
		assert.Contains(t, body["suggestion"], "start_device_auth")
		assert.NotEmpty(t, body["error"])
	})
}
