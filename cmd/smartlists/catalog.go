package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartlists/internal/database"
)

func newCatalogCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain the host library database",
	}
	cmd.AddCommand(newCatalogImportCommand(opts))
	cmd.AddCommand(newCatalogVacuumCommand())
	return cmd
}

func newCatalogImportCommand(opts *rootOptions) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import users, items and user data from a YAML catalog file",
		Long: `Import users, items and playback state from a YAML catalog file. Existing
records are updated. Every change is recorded in the change log, so a running
service refreshes the affected lists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadToolConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			summary, err := db.ImportCatalogFile(ctx, args[0], database.ImportOptions{Prune: prune})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSONOutput(out, summary)
			}
			fmt.Fprintf(out, "Imported %d user(s), %d item(s), %d user data record(s)", summary.Users, summary.Items, summary.UserData)
			if prune {
				fmt.Fprintf(out, ", pruned %d item(s)", summary.Pruned)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "delete items missing from the file")
	return cmd
}

func newCatalogVacuumCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the host library database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadToolConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Vacuum(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database vacuumed.")
			return nil
		},
	}
}
