package playlist

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"smartlists/internal/library"
	"smartlists/internal/library/librarytest"
	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

func TestWPLRoundTrip(t *testing.T) {
	w := NewWPL("Road Trip", []string{`\\nas\music\a.flac`, "/media/b & c.mp3"})

	var buf bytes.Buffer
	if err := w.Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, `<?wpl version="1.0"?>`) {
		t.Errorf("missing wpl processing instruction: %q", out[:min(len(out), 40)])
	}
	if !strings.Contains(out, "b &amp; c.mp3") {
		t.Error("paths must be XML escaped")
	}

	path := filepath.Join(t.TempDir(), "trip.wpl")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	parsed, err := ReadWPL(path)
	if err != nil {
		t.Fatalf("ReadWPL failed: %v", err)
	}
	if parsed.Head.Title != "Road Trip" {
		t.Errorf("title = %q", parsed.Head.Title)
	}
	if !slices.Equal(parsed.Paths(), w.Paths()) {
		t.Errorf("paths = %v, want %v", parsed.Paths(), w.Paths())
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"road-trip", "road-trip"},
		{"a/b\\c", "a_b_c"},
		{"..", "_"},
		{"", "_"},
		{"Émilie", "Émilie"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newExportFixture(t *testing.T) (*librarytest.Library, *Exporter) {
	t.Helper()
	lib := librarytest.New()
	lib.AddItems(
		library.Item{ID: "a1", Kind: mediatypes.KindAudio, Name: "One", Path: "/music/one.mp3"},
		library.Item{ID: "a2", Kind: mediatypes.KindAudio, Name: "Two", Path: "/music/two.mp3"},
		library.Item{ID: "a3", Kind: mediatypes.KindAudio, Name: "Virtual"},
	)
	return lib, NewExporter(lib, lib, t.TempDir())
}

func TestExporterWritesPlaylists(t *testing.T) {
	lib, exp := newExportFixture(t)
	r := library.Result{ListID: "mix", Kind: smartlist.KindPlaylist, OwnerID: "u1", Name: "Mix", ItemIDs: []string{"a2", "a3", "a1", "gone"}}

	if err := exp.Materialize(context.Background(), r); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if lib.WritesFor("mix") != 1 {
		t.Error("the host write must happen")
	}

	w, err := ReadWPL(exp.Path("mix", "u1"))
	if err != nil {
		t.Fatalf("export missing: %v", err)
	}
	want := []string{"/music/two.mp3", "/music/one.mp3"}
	if !slices.Equal(w.Paths(), want) {
		t.Errorf("exported paths = %v, want %v", w.Paths(), want)
	}

	entries, _ := os.ReadDir(filepath.Dir(exp.Path("mix", "u1")))
	if len(entries) != 1 {
		t.Errorf("expected only the playlist file, found %d entries", len(entries))
	}
}

func TestExporterSkipsCollections(t *testing.T) {
	_, exp := newExportFixture(t)
	r := library.Result{ListID: "box", Kind: smartlist.KindCollection, OwnerID: "u1", Name: "Box", ItemIDs: []string{"a1"}}
	if err := exp.Materialize(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(exp.Path("box", "u1")); !os.IsNotExist(err) {
		t.Errorf("collections must not be exported, stat err = %v", err)
	}
}

func TestExporterHostFailureSkipsExport(t *testing.T) {
	lib, exp := newExportFixture(t)
	lib.BeforeMaterialize = func(context.Context, library.Result) error { return errors.New("host down") }

	r := library.Result{ListID: "mix", Kind: smartlist.KindPlaylist, OwnerID: "u1", Name: "Mix", ItemIDs: []string{"a1"}}
	if err := exp.Materialize(context.Background(), r); err == nil {
		t.Fatal("host errors must be returned")
	}
	if _, err := os.Stat(exp.Path("mix", "u1")); !os.IsNotExist(err) {
		t.Error("nothing should be exported when the host write failed")
	}
}

func TestExporterPassesCapabilities(t *testing.T) {
	lib, exp := newExportFixture(t)
	lib.Caps = library.Capabilities{RefreshMetadata: true}
	if !exp.Capabilities().RefreshMetadata {
		t.Error("capabilities should come from the wrapped materializer")
	}
	r := library.Result{ListID: "box", Kind: smartlist.KindCollection}
	if err := exp.RefreshMetadata(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if got := lib.MetadataRefreshes(); !slices.Equal(got, []string{"box"}) {
		t.Errorf("metadata refreshes = %v", got)
	}
}
