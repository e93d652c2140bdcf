package playlist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"smartlists/internal/library"
	"smartlists/internal/logging"
	"smartlists/internal/metrics"
	"smartlists/internal/smartlist"
)

// Exporter is a library.Materializer that also writes playlists to dir.
type Exporter struct {
	next    library.Materializer
	catalog library.Catalog
	dir     string
}

// NewExporter wraps next. catalog resolves item ids to paths.
func NewExporter(next library.Materializer, catalog library.Catalog, dir string) *Exporter {
	return &Exporter{next: next, catalog: catalog, dir: dir}
}

// Materialize writes to the host first. Export problems are logged and
// counted but do not fail the refresh, since the host already holds the
// new content.
func (e *Exporter) Materialize(ctx context.Context, r library.Result) error {
	if err := e.next.Materialize(ctx, r); err != nil {
		return err
	}
	if r.Kind != smartlist.KindPlaylist {
		return nil
	}

	if err := e.export(ctx, r); err != nil {
		metrics.PlaylistExportsTotal.WithLabelValues("error").Inc()
		logging.Warn("Exporting playlist %s for %s failed: %v", r.ListID, r.OwnerID, err)
		return nil
	}
	metrics.PlaylistExportsTotal.WithLabelValues("success").Inc()
	return nil
}

// Capabilities implements library.Materializer.
func (e *Exporter) Capabilities() library.Capabilities {
	return e.next.Capabilities()
}

// RefreshMetadata implements library.Materializer.
func (e *Exporter) RefreshMetadata(ctx context.Context, r library.Result) error {
	return e.next.RefreshMetadata(ctx, r)
}

// Path returns the export file of a list and owner.
func (e *Exporter) Path(listID, ownerID string) string {
	return filepath.Join(e.dir, sanitize(listID)+"_"+sanitize(ownerID)+".wpl")
}

func (e *Exporter) export(ctx context.Context, r library.Result) error {
	paths := make([]string, 0, len(r.ItemIDs))
	skipped := 0
	for _, id := range r.ItemIDs {
		it, err := e.catalog.ItemByID(ctx, id)
		if errors.Is(err, library.ErrNotFound) {
			skipped++
			continue
		}
		if err != nil {
			return err
		}
		if it.Path == "" {
			skipped++
			continue
		}
		paths = append(paths, it.Path)
	}
	if skipped > 0 {
		logging.Debug("Playlist %s: %d items without a path were left out of the export", r.ListID, skipped)
	}

	var buf bytes.Buffer
	if err := NewWPL(r.Name, paths).Encode(&buf); err != nil {
		return err
	}
	return writeAtomic(e.Path(r.ListID, r.OwnerID), buf.Bytes())
}

// writeAtomic writes data to a temp file in the target directory and renames
// it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// sanitize keeps file names portable.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '_'
	}, s)
	s = strings.Trim(s, ".")
	if s == "" {
		return "_"
	}
	return s
}
