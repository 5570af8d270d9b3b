package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerPrompts adds workflow guidance prompts. They walk an
// assistant through the two grants and common failure modes.
func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("device_code_auth_workflow",
		mcp.WithPromptDescription("Step-by-step guide for the device code authentication flow"),
	), staticPrompt("Device code authentication workflow", deviceCodeWorkflow))

	s.mcp.AddPrompt(mcp.NewPrompt("client_credentials_auth_workflow",
		mcp.WithPromptDescription("Guide for the client credentials (app-only) authentication flow"),
	), staticPrompt("Client credentials authentication workflow", clientCredentialsWorkflow))

	s.mcp.AddPrompt(mcp.NewPrompt("troubleshooting_auth",
		mcp.WithPromptDescription("Solutions to common authentication problems"),
	), staticPrompt("Authentication troubleshooting", troubleshootingGuide))
}

func staticPrompt(description, text string) func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	}
}

const deviceCodeWorkflow = `I'll guide you through device code authentication to get a bearer token.

**Device Code Flow (User Authentication)**

This method authenticates you as a specific user.

**Step 1: Start Device Authentication**
Tool: start_device_auth

This returns:
- A user code (e.g. "A1B2C3D4")
- A verification URL
- The expiration time (usually 15 minutes)

**Step 2: Authenticate in Browser**
1. Open the verification URL in your browser
2. Enter the user code
3. Sign in with your credentials and approve the requested permissions

**Step 3: Complete Authentication**
Tool: complete_device_auth

This returns your bearer token. The token:
- Is valid for about an hour
- Represents YOU (user-delegated permissions)
- Stays in this conversation context only

Alternatively, the device_auth_flow tool runs both steps in one blocking call.

**Ready to start?**
Say: "start device authentication"
`

const clientCredentialsWorkflow = `I'll guide you through client credentials authentication.

**Client Credentials Flow (App-Only Authentication)**

This method authenticates as an application, not a user.

**When to Use:**
- Automated scripts
- Server-to-server operations
- No user interaction available

**Requirements:**
The server must be configured with:
- AUTH_FLOW=client_credentials
- TENANT_ID
- CLIENT_ID
- CLIENT_SECRET
- OAUTH2_SCOPE (e.g. api://your-app-id/.default)

**How to Use:**
Tool: get_token_client_credentials

This authenticates with the configured credentials and returns a bearer
token. The token:
- Represents the APPLICATION (not a user)
- Is valid for about an hour
- Is cached and refreshed automatically

**Important:**
Client credentials tokens carry app permissions only. For user
permissions, use the device code flow instead.
`

const troubleshootingGuide = `Here are solutions to common authentication issues:

**"Device code has expired"**
Device codes expire after about 15 minutes. Start fresh:
1. start_device_auth (get a new code)
2. Complete the sign-in in your browser
3. complete_device_auth

**"Authorization pending"**
You have not finished the browser sign-in yet:
1. Check you entered the code correctly at the verification URL
2. Complete the sign-in process
3. Then call complete_device_auth again

**"Re-authentication required"**
The cached device token has expired or no device flow has completed yet.
Run the device code flow again to get a fresh token.

**"Invalid client credentials"**
Check CLIENT_ID and CLIENT_SECRET in the server configuration and
restart the server after updating them.

**"Invalid scope"**
Verify OAUTH2_SCOPE matches what the application registration exposes,
typically api://your-app-id/.default.

**Which flow should I use?**
- Device code: you, authenticating as yourself (interactive)
- Client credentials: automated scripts and applications

**Still stuck?**
Check the log file (LOG_FILE) and set LOG_LEVEL=debug for detail.
`
