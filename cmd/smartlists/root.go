package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"smartlists/internal/database"
	"smartlists/internal/startup"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Format string
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "smartlists",
		Short: "Rule based playlists and collections for a media library",
		Long: `smartlists keeps playlists and collections in sync with rules evaluated
against the host media library. Without a subcommand it runs the service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newEvaluateCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newCatalogCommand(opts))
	cmd.AddCommand(newHashTokenCommand())

	return cmd
}

// loadToolConfig reads the environment for the maintenance commands without
// printing the service banner.
func loadToolConfig() (*startup.Config, error) {
	cfg, err := startup.Process()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := startup.PrepareDirectories(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg *startup.Config) (*database.Database, error) {
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database (DATABASE_DIR=%s): %w", cfg.DatabaseDir, err)
	}
	return db, nil
}

func writeJSONOutput(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
