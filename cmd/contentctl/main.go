// Command contentctl is an operator CLI that runs generation, publishing and
// key management directly against the database, bypassing the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-content-publisher/internal/adapter/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/app"
	"github.com/fairyhunter13/ai-content-publisher/internal/config"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var owner string
	rootCmd := &cobra.Command{
		Use:           "contentctl",
		Short:         "Generate and publish AI content from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&owner, "owner", "o", os.Getenv("CONTENTCTL_OWNER"), "Owner id the keys and sites belong to")

	rootCmd.AddCommand(addKeyCmd(&owner))
	rootCmd.AddCommand(addSiteCmd(&owner))
	rootCmd.AddCommand(generateCmd(&owner))
	rootCmd.AddCommand(publishCmd(&owner))
	rootCmd.AddCommand(quotaCmd(&owner))
	return rootCmd
}

// runner loads configuration and the dependency container for one command.
type runner func(ctx context.Context, cfg config.Config, deps *app.Container) error

func withDeps(owner *string, fn runner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if *owner == "" {
			return fmt.Errorf("--owner is required")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		// CLI output goes to stdout; logs stay on stderr.
		slog.SetDefault(observability.SetupLoggerTo(os.Stderr, cfg))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := app.Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.Close()
		return fn(ctx, cfg, deps)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
