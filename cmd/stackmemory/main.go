// Command stackmemory runs ingestion and context assembly against the
// configured store without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/arturoeanton/stackmemory/internal/app"
	"github.com/arturoeanton/stackmemory/pkg/config"
)

// buildApp is replaced in tests.
var buildApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return app.Build(ctx, cfg, app.Overrides{})
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	cfg   *config.Config
	app   *app.App
	owner string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "stackmemory",
		Short:         "Ingest repositories and assemble AI context",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.cfg = config.Load()
			app.SetupLogging(c.cfg.LogLevel, c.cfg.LogFormat, cmd.ErrOrStderr())
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			a, err := buildApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.PersistentFlags().StringVar(&c.owner, "owner", "cli", "owner id used for project commands")

	root.AddCommand(
		c.projectCmd(),
		c.ingestCmd(),
		c.contextCmd(),
		c.searchCmd(),
		c.statusCmd(),
		c.tokenCmd(),
		c.mirrorCmd(),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
