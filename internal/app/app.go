package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/walkerpauldavid/oauth-mcp-server/internal/authflow"
	"github.com/walkerpauldavid/oauth-mcp-server/internal/config"
	"github.com/walkerpauldavid/oauth-mcp-server/internal/mcpserver"
	"github.com/walkerpauldavid/oauth-mcp-server/internal/ops"
)

// App orchestrates the lifecycle of the MCP server and the operational
// HTTP endpoints.
type App struct {
	cfg     *config.Config
	manager *authflow.Manager
	mcp     *mcpserver.Server
	ops     *ops.Server
	health  *Health
}

// New creates a new App instance from the loaded configuration.
func New(cfg *config.Config) (*App, error) {
	manager := authflow.NewManager(cfg.AuthFlow(), authflow.NewCache())

	mcpSrv, err := mcpserver.New(cfg, manager)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp server: %w", err)
	}

	health := NewHealth()

	return &App{
		cfg:     cfg,
		manager: manager,
		mcp:     mcpSrv,
		ops:     ops.New(health),
		health:  health,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting ops server", "addr", a.cfg.Ops.Addr)
	opsErrCh, err := a.ops.Start(gCtx, a.cfg.Ops.Addr)
	if err != nil {
		return fmt.Errorf("ops server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.ops.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-opsErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "ops server runtime error", "error", err)
				return fmt.Errorf("ops: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	// The MCP server serves the stdio transport and returns when stdin is
	// closed or the context is canceled.
	slog.InfoContext(gCtx, "starting mcp server", "flow", a.cfg.Flow)
	g.Go(func() error {
		if err := a.mcp.Start(gCtx); err != nil {
			slog.ErrorContext(gCtx, "mcp server runtime error", "error", err)
			return fmt.Errorf("mcp: %w", err)
		}
		return nil
	})

	a.health.SetReady(true)

	runtimeErr := g.Wait()
	a.health.SetReady(false)

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
