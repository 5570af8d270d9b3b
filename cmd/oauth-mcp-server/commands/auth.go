package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/walkerpauldavid/oauth-mcp-server/internal/authflow"
)

// loginCommand returns the interactive device-code login command.
func loginCommand() *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Sign in with the device code flow and print the token",
		Action: loginAction,
	}
}

// tokenCommand returns the client-credentials token command.
func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:   "token",
		Usage:  "Acquire a token with the client credentials grant",
		Action: tokenAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := instrument(cfg); err != nil {
		return err
	}

	acfg := cfg.AuthFlow()
	acfg.Flow = authflow.FlowDeviceCode
	manager := authflow.NewManager(acfg, authflow.NewCache())

	fmt.Println("=== Device Code Login ===")
	fmt.Println()

	token, err := manager.AuthorizeDevice(ctx, func(grant *authflow.DeviceGrant) {
		fmt.Printf("1. Visit this URL in your browser:\n   %s\n\n", grant.VerificationURI)
		fmt.Printf("2. Enter code: %s\n\n", grant.UserCode)
		fmt.Printf("The code expires at %s. Waiting for you to sign in...\n",
			grant.ExpiresAt.Format(time.Kitchen))
	})
	if err != nil {
		return fmt.Errorf("device login failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Login Successful ===")
	printToken(token)
	return nil
}

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := instrument(cfg); err != nil {
		return err
	}

	acfg := cfg.AuthFlow()
	acfg.Flow = authflow.FlowClientCredentials

	if acfg.ClientSecret == "" {
		secret, err := readSecureInput(ctx, "Enter client secret: ")
		if err != nil {
			return err
		}
		if secret == "" {
			return fmt.Errorf("client secret cannot be empty")
		}
		acfg.ClientSecret = secret
	}

	manager := authflow.NewManager(acfg, authflow.NewCache())

	token, err := manager.GetClientCredentialsToken(ctx)
	if err != nil {
		return fmt.Errorf("token acquisition failed: %w", err)
	}

	printToken(token)
	return nil
}

func printToken(token *authflow.Token) {
	fmt.Printf("Token type:  %s\n", token.TokenType)
	if token.Scope != "" {
		fmt.Printf("Scope:       %s\n", token.Scope)
	}
	if !token.ExpiresAt.IsZero() {
		fmt.Printf("Expires at:  %s\n", token.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println(token.AccessToken)
}

// readSecureInput reads user input with hidden display and context cancellation support.
// Goroutine+select pattern required because term.ReadPassword has no native context support.
func readSecureInput(ctx context.Context, prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.value, nil
	}
}
