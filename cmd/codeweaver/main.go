// Command codeweaver starts the find_code MCP server: it loads
// configuration from the current directory, wires the composition root,
// and serves until interrupted. Grounded on the teacher's
// internal/cli/indexer_start.go signal-driven startup/shutdown shape, with
// cobra's subcommand tree dropped since the spec names a single running
// process rather than a CLI (spec §6's operator tooling stays Go-function
// only; no command surface is built).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/knitli/codeweaver/internal/config"
	"github.com/knitli/codeweaver/internal/logging"
	"github.com/knitli/codeweaver/internal/root"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("codeweaver: load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("codeweaver: invalid config: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: os.Getenv("CODEWEAVER_LOG_LEVEL")})
	if err != nil {
		return fmt.Errorf("codeweaver: build logger: %w", err)
	}
	defer logger.Sync()

	state, err := root.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("codeweaver: wire composition root: %w", err)
	}

	logger.Info("codeweaver: starting")
	return state.Run(ctx)
}
