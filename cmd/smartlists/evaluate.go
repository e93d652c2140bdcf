package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartlists/internal/definitions"
	"smartlists/internal/library"
	"smartlists/internal/refresh"
)

type evaluateResult struct {
	ListID  string   `json:"listId"`
	Count   int      `json:"count"`
	ItemIDs []string `json:"itemIds"`
}

func newEvaluateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <list-id>",
		Short: "Print the items a list would contain, without writing it back",
		Args:  cobra.ExactArgs(1),
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

			orch := refresh.New(refresh.Options{
				Store:        definitions.NewStore(cfg.ListsDir),
				Catalog:      db,
				Users:        library.NewUserCache(db),
				Materializer: db,
				Config: refresh.Config{
					Workers:            cfg.RefreshWorkers,
					MaxConcurrentLists: cfg.MaxConcurrentLists,
					Affixes:            cfg.Affixes(),
					Location:           cfg.Location,
				},
			})
			defer orch.Close()

			ids, err := orch.Evaluate(ctx, args[0])
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []string{}
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSONOutput(out, evaluateResult{ListID: args[0], Count: len(ids), ItemIDs: ids})
			}

			for i, id := range ids {
				title := ""
				if it, err := db.ItemByID(ctx, id); err == nil {
					title = it.Title()
				}
				fmt.Fprintf(out, "%4d  %-36s  %s\n", i+1, id, title)
			}
			fmt.Fprintf(out, "%d item(s)\n", len(ids))
			return nil
		},
	}
}
