// Package mcpserver exposes the token engine as MCP tools over the
// stdio transport. Tool failures are reported as structured JSON tool
// results rather than protocol errors so that callers can inspect the
// status and error kind programmatically.
package mcpserver

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/walkerpauldavid/oauth-mcp-server/internal/authflow"
	"github.com/walkerpauldavid/oauth-mcp-server/internal/config"
)

const (
	serverName    = "oauth-mcp-server"
	serverVersion = "0.1.0"
)

// Server wraps the MCP protocol server and the token manager backing
// its tools.
type Server struct {
	cfg     *config.Config
	manager *authflow.Manager
	mcp     *server.MCPServer
}

// New creates the MCP server and registers all tools and prompts.
func New(cfg *config.Config, manager *authflow.Manager) (*Server, error) {
	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		cfg:     cfg,
		manager: manager,
		mcp:     mcpServer,
	}

	s.registerTools()
	s.registerPrompts()

	return s, nil
}

// Start serves the MCP protocol over stdin/stdout. It blocks until the
// context is canceled or the client closes the connection.
func (s *Server) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "serving mcp over stdio", "name", serverName, "version", serverVersion)
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("ping",
		mcp.WithDescription("Health check to verify the server is running"),
	), s.handlePing)

	s.mcp.AddTool(mcp.NewTool("get_server_info",
		mcp.WithDescription("Get information about this authentication server"),
	), s.handleGetServerInfo)

	s.mcp.AddTool(mcp.NewTool("start_device_auth",
		mcp.WithDescription("Start the OAuth 2.0 device authorization flow. "+
			"Returns a user code and verification URL; after the user has signed in, "+
			"call complete_device_auth to retrieve the token."),
	), s.handleStartDeviceAuth)

	s.mcp.AddTool(mcp.NewTool("complete_device_auth",
		mcp.WithDescription("Complete a previously started device authorization flow "+
			"and return the bearer token. Call this after the user has finished "+
			"signing in; if they have not, the result reports status pending."),
	), s.handleCompleteDeviceAuth)

	s.mcp.AddTool(mcp.NewTool("device_auth_flow",
		mcp.WithDescription("Run the full device authorization flow in one call: "+
			"start the flow, then block polling for the token until the user signs "+
			"in or the flow times out."),
	), s.handleDeviceAuthFlow)

	s.mcp.AddTool(mcp.NewTool("get_token_client_credentials",
		mcp.WithDescription("Acquire a bearer token with the OAuth 2.0 client "+
			"credentials grant using the configured application credentials. "+
			"Tokens are cached and refreshed before expiry."),
	), s.handleGetTokenClientCredentials)
}
