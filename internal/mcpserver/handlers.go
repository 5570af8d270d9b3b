package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/walkerpauldavid/oauth-mcp-server/internal/authflow"
)

// tokenResult is the success payload returned by every token-yielding
// tool. The access token is returned in full so the caller can use it
// directly; it is never written to disk.
type tokenResult struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	ExpiresIn   int64  `json:"expires_in"`
	AccessToken string `json:"access_token"`
}

// pendingResult describes a device flow that still needs the user to
// sign in.
type pendingResult struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	NextStep        string `json:"next_step,omitempty"`
	Error           string `json:"error,omitempty"`
	Suggestion      string `json:"suggestion,omitempty"`
}

type errorResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// jsonResult marshals v as an indented JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// failureResult turns an acquisition error into a structured JSON tool
// result. Failures are data, not MCP protocol errors.
func failureResult(ctx context.Context, op string, err error) (*mcp.CallToolResult, error) {
	slog.ErrorContext(ctx, "tool failed", "tool", op, "error", err)
	return jsonResult(errorResult{
		Status:    "error",
		Message:   err.Error(),
		ErrorKind: string(authflow.KindOf(err)),
	})
}

func successToken(message string, token *authflow.Token) (*mcp.CallToolResult, error) {
	return jsonResult(tokenResult{
		Status:      "success",
		Message:     message,
		TokenType:   token.TokenType,
		Scope:       token.Scope,
		ExpiresIn:   token.ExpiresIn(time.Now()),
		AccessToken: token.AccessToken,
	})
}

func deviceInstructions(grant *authflow.DeviceGrant, expiresIn int64) string {
	return fmt.Sprintf(`DEVICE AUTHENTICATION REQUIRED

Please complete these steps:

1. Go to: %s
2. Enter code: %s
3. Sign in with your credentials

Code expires in: %d seconds (%d minutes)`,
		grant.VerificationURI, grant.UserCode, expiresIn, expiresIn/60)
}

func (s *Server) handlePing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slog.DebugContext(ctx, "ping")
	return mcp.NewToolResultText("pong"), nil
}

func (s *Server) handleGetServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
		Flow        string `json:"flow"`
		LogLevel    string `json:"log_level"`
		LogFile     string `json:"log_file,omitempty"`
	}{
		Name:        serverName,
		Version:     serverVersion,
		Description: "MCP server for OAuth 2.0 token acquisition",
		Flow:        s.cfg.Flow,
		LogLevel:    s.cfg.Log.Level,
		LogFile:     s.cfg.Log.File,
	})
}

func (s *Server) handleStartDeviceAuth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	grant, err := s.manager.StartDeviceAuth(ctx)
	if err != nil {
		return failureResult(ctx, "start_device_auth", err)
	}

	expiresIn := int64(time.Until(grant.ExpiresAt).Seconds())
	return jsonResult(pendingResult{
		Status:          "pending",
		Message:         deviceInstructions(grant, expiresIn),
		UserCode:        grant.UserCode,
		VerificationURI: grant.VerificationURI,
		ExpiresIn:       expiresIn,
		NextStep:        "After authenticating, call complete_device_auth to retrieve the token",
	})
}

func (s *Server) handleCompleteDeviceAuth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := s.manager.CompleteDeviceAuth(ctx)
	if err != nil {
		return failureResult(ctx, "complete_device_auth", err)
	}
	return successToken("Device authentication completed successfully. Use the access_token below.", token)
}

func (s *Server) handleDeviceAuthFlow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var started *authflow.DeviceGrant
	token, err := s.manager.AuthorizeDevice(ctx, func(grant *authflow.DeviceGrant) {
		started = grant
		slog.InfoContext(ctx, "waiting for user sign-in",
			"user_code", grant.UserCode, "verification_uri", grant.VerificationURI)
	})
	if err != nil {
		if started == nil {
			return failureResult(ctx, "device_auth_flow", err)
		}
		// The flow did start; hand the instructions back so the caller
		// can fall back to the two-call API.
		expiresIn := int64(time.Until(started.ExpiresAt).Seconds())
		return jsonResult(pendingResult{
			Status:          "pending",
			Message:         "Authentication instructions displayed, but token polling failed or timed out",
			UserCode:        started.UserCode,
			VerificationURI: started.VerificationURI,
			ExpiresIn:       expiresIn,
			Error:           err.Error(),
			Suggestion:      "Use start_device_auth and complete_device_auth for better control",
		})
	}
	return successToken("Device authentication completed successfully. Use the access_token below.", token)
}

func (s *Server) handleGetTokenClientCredentials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := s.manager.GetClientCredentialsToken(ctx)
	if err != nil {
		return failureResult(ctx, "get_token_client_credentials", err)
	}
	return successToken("Token acquired with the client credentials grant.", token)
}
