package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"smartlists/internal/library"
	"smartlists/internal/logging"
	"smartlists/internal/mediatypes"
)

// CatalogFile is the on-disk catalog format accepted by ImportCatalog.
type CatalogFile struct {
	Users    []library.User                `yaml:"users"`
	Items    []library.Item                `yaml:"items"`
	UserData map[string][]library.UserData `yaml:"userData"`
}

// ImportOptions tunes ImportCatalog.
type ImportOptions struct {
	// Prune deletes catalog items that are not in the file. Collection
	// objects written by materialization are kept.
	Prune bool
}

// ImportSummary counts what an import wrote.
type ImportSummary struct {
	Users    int   `json:"users"`
	Items    int   `json:"items"`
	UserData int   `json:"userData"`
	Pruned   int64 `json:"pruned"`
}

// ImportCatalogFile imports the catalog file at path.
func (d *Database) ImportCatalogFile(ctx context.Context, path string, opts ImportOptions) (ImportSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportSummary{}, err
	}
	defer f.Close()
	return d.ImportCatalog(ctx, f, opts)
}

// ImportCatalog reads a YAML catalog and writes it in one transaction.
// Users are written before items, items before user data.
func (d *Database) ImportCatalog(ctx context.Context, r io.Reader, opts ImportOptions) (summary ImportSummary, err error) {
	var file CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return summary, fmt.Errorf("parsing catalog: %w", err)
	}

	b, err := d.BeginBatch(ctx)
	if err != nil {
		return summary, err
	}
	defer func() { err = d.EndBatch(b, err) }()

	for _, u := range file.Users {
		if err = d.UpsertUser(b, u); err != nil {
			return summary, err
		}
		summary.Users++
	}

	keep := make(map[string]bool, len(file.Items))
	for i := range file.Items {
		it := &file.Items[i]
		if it.Kind == "" && it.Path != "" {
			if kind, ok := mediatypes.KindForExtension(strings.ToLower(filepath.Ext(it.Path))); ok {
				it.Kind = kind
			}
		}
		if err = d.UpsertItem(b, it); err != nil {
			return summary, err
		}
		keep[file.Items[i].ID] = true
		summary.Items++
	}

	for userID, entries := range file.UserData {
		for _, ud := range entries {
			if err = d.PutUserData(b, userID, ud); err != nil {
				return summary, err
			}
			summary.UserData++
		}
	}

	if opts.Prune {
		summary.Pruned, err = prune(ctx, b, keep)
		if err != nil {
			return summary, err
		}
	}

	logging.Info("Imported catalog: %d users, %d items, %d user data entries, %d pruned",
		summary.Users, summary.Items, summary.UserData, summary.Pruned)
	return summary, nil
}

func prune(ctx context.Context, b *Batch, keep map[string]bool) (int64, error) {
	rows, err := b.QueryContext(ctx, "SELECT id FROM items WHERE smart_list_id = ''")
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if _, err := b.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("pruning %s: %w", id, err)
		}
	}
	return int64(len(stale)), nil
}
