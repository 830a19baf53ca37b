package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/bootstrap"
	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:           "taskctl",
	Short:         "Operator commands for the assignment engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var outputJSON bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(retryCmd, retryAllCmd, reenableCmd, failedCmd, nextOwnerCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withContainer loads configuration, wires the engine and runs fn against it.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	container, err := bootstrap.New(ctx, cfg, logger.With(zap.String("component", "taskctl")))
	if err != nil {
		return err
	}
	defer container.Close()
	return fn(ctx, container)
}
