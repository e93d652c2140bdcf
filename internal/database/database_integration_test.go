package database

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"smartlists/internal/library"
	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, dbPath
}

const testCatalog = `
users:
  - id: u1
    name: Alice
  - id: u2
    name: Bob
items:
  - id: m1
    kind: movie
    name: Alien
    productionYear: 1979
    communityRating: 8.5
    runtime: 1h57m
    genres: [Horror, Science Fiction]
    people: [Sigourney Weaver]
    dateCreated: 2024-01-10T00:00:00Z
  - id: m2
    kind: Movie
    name: Aliens
    productionYear: 1986
    genres: [Action, Science Fiction]
  - id: s1
    kind: Series
    name: Firefly
    genres: [Science Fiction]
  - id: e2
    kind: Episode
    name: The Train Job
    seriesId: s1
    seriesName: Firefly
    seasonNumber: 1
    episodeNumber: 2
  - id: e1
    kind: Episode
    name: Serenity
    seriesId: s1
    seriesName: Firefly
    seasonNumber: 1
    episodeNumber: 1
userData:
  u1:
    - itemId: m1
      played: true
      playCount: 2
      lastPlayed: 2024-05-01T20:00:00Z
    - itemId: m2
      isFavorite: true
`

func importTestCatalog(t *testing.T, db *Database) {
	t.Helper()
	summary, err := db.ImportCatalog(context.Background(), strings.NewReader(testCatalog), ImportOptions{})
	if err != nil {
		t.Fatalf("ImportCatalog failed: %v", err)
	}
	if summary.Users != 2 || summary.Items != 5 || summary.UserData != 2 {
		t.Fatalf("unexpected import summary %+v", summary)
	}
}

func TestImportAndQueryCatalogIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	importTestCatalog(t, db)
	ctx := context.Background()

	items, err := db.Items(ctx, nil)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("Expected 5 items, got %d", len(items))
	}
	if items[0].ID != "m1" || items[4].ID != "e1" {
		t.Errorf("items should keep insertion order, got %s..%s", items[0].ID, items[4].ID)
	}

	alien := items[0]
	if alien.Kind != mediatypes.KindMovie {
		t.Errorf("Expected kind Movie, got %s", alien.Kind)
	}
	if alien.Runtime != 117*time.Minute {
		t.Errorf("Expected runtime 1h57m, got %v", alien.Runtime)
	}
	if !slices.Equal(alien.Genres, []string{"Horror", "Science Fiction"}) {
		t.Errorf("Unexpected genres %v", alien.Genres)
	}
	if !alien.DateCreated.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected date created %v", alien.DateCreated)
	}
	if !items[1].DateCreated.IsZero() {
		t.Error("missing dates should stay zero")
	}

	movies, err := db.Items(ctx, []mediatypes.Kind{mediatypes.KindMovie})
	if err != nil {
		t.Fatalf("Items(Movie) failed: %v", err)
	}
	if len(movies) != 2 || len(movies[1].Genres) != 2 {
		t.Errorf("Expected 2 movies with values, got %+v", movies)
	}
}

func TestItemLookupsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	importTestCatalog(t, db)
	ctx := context.Background()

	it, err := db.ItemByID(ctx, "m2")
	if err != nil || it.Name != "Aliens" {
		t.Fatalf("ItemByID(m2) = %v, %v", it, err)
	}
	if _, err := db.ItemByID(ctx, "missing"); !errorsIsNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	eps, err := db.Episodes(ctx, "s1")
	if err != nil {
		t.Fatalf("Episodes failed: %v", err)
	}
	if len(eps) != 2 || eps[0].ID != "e1" || eps[1].ID != "e2" {
		t.Errorf("Episodes should be ordered by season and episode, got %v", eps)
	}

	exact, err := db.FindByName(ctx, "alien", true)
	if err != nil || len(exact) != 1 || exact[0].ID != "m1" {
		t.Errorf("FindByName exact = %v, %v", exact, err)
	}
	partial, err := db.FindByName(ctx, "ALIEN", false)
	if err != nil || len(partial) != 2 {
		t.Errorf("FindByName partial = %v, %v", partial, err)
	}
}

func TestUsersIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	importTestCatalog(t, db)
	ctx := context.Background()

	for _, ref := range []string{"u1", "alice", "ALICE"} {
		u, err := db.User(ctx, ref)
		if err != nil || u.ID != "u1" {
			t.Errorf("User(%q) = %v, %v", ref, u, err)
		}
	}
	if _, err := db.User(ctx, "carol"); !errorsIsNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	users, err := db.Users(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("Users = %v, %v", users, err)
	}

	data, err := db.UserData(ctx, "u1")
	if err != nil {
		t.Fatalf("UserData failed: %v", err)
	}
	if d := data["m1"]; !d.Played || d.PlayCount != 2 || d.LastPlayed.IsZero() {
		t.Errorf("Unexpected user data for m1: %+v", d)
	}
	if d := data["m2"]; !d.IsFavorite || d.Played {
		t.Errorf("Unexpected user data for m2: %+v", d)
	}

	err = db.SetUserData(ctx, "u2", library.UserData{ItemID: "m1", Played: true, PlayCount: 1})
	if err != nil {
		t.Fatalf("SetUserData failed: %v", err)
	}
	data, _ = db.UserData(ctx, "u2")
	if !data["m1"].Played {
		t.Error("SetUserData should be visible to UserData")
	}
}

func TestChangeLogIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	importTestCatalog(t, db)
	ctx := context.Background()

	changes, err := db.Changes(ctx, 0, 100)
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}
	counts := make(map[string]int)
	for _, c := range changes {
		counts[c.Kind]++
	}
	if counts["UserChanged"] != 2 || counts["ItemAdded"] != 5 || counts["PlaybackChanged"] != 2 {
		t.Errorf("Unexpected change counts %v", counts)
	}

	total := len(changes)
	last := changes[total-1].Seq
	latest, err := db.LatestChangeSeq(ctx)
	if err != nil || latest != last {
		t.Errorf("LatestChangeSeq = %d, %v; want %d", latest, err, last)
	}

	if err := db.SetUserData(ctx, "u1", library.UserData{ItemID: "m2", Played: true}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteItem(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	changes, err = db.Changes(ctx, last, 100)
	if err != nil || len(changes) != 2 {
		t.Fatalf("Changes after %d = %v, %v", last, changes, err)
	}
	if c := changes[0]; c.Kind != "PlaybackChanged" || c.UserID != "u1" || c.ItemKind != "Movie" {
		t.Errorf("Unexpected playback change %+v", c)
	}
	if c := changes[1]; c.Kind != "ItemRemoved" || c.ItemID != "s1" || c.ItemKind != "Series" {
		t.Errorf("Unexpected removal change %+v", c)
	}

	pruned, err := db.PruneChanges(ctx, last)
	if err != nil || pruned != int64(total) {
		t.Errorf("PruneChanges = %d, %v; want %d", pruned, err, total)
	}
	rest, _ := db.Changes(ctx, 0, 100)
	if len(rest) != 2 {
		t.Errorf("Expected 2 changes after pruning, got %d", len(rest))
	}
}

func TestMaterializeIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	importTestCatalog(t, db)
	ctx := context.Background()
	before, _ := db.LatestChangeSeq(ctx)

	r := library.Result{ListID: "scifi", Kind: smartlist.KindPlaylist, OwnerID: "u1", Name: "Sci-Fi", ItemIDs: []string{"m2", "m1"}}
	if err := db.Materialize(ctx, r); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	ids, err := db.MaterializedItems(ctx, "scifi", "u1")
	if err != nil || !slices.Equal(ids, []string{"m2", "m1"}) {
		t.Errorf("MaterializedItems = %v, %v", ids, err)
	}

	r.ItemIDs = []string{"m1"}
	if err := db.Materialize(ctx, r); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	ids, _ = db.MaterializedItems(ctx, "scifi", "u1")
	if !slices.Equal(ids, []string{"m1"}) {
		t.Errorf("Materialize should replace previous content, got %v", ids)
	}

	coll := library.Result{ListID: "eighties", Kind: smartlist.KindCollection, OwnerID: "u1", Name: "[Smart] Eighties", ItemIDs: []string{"m2", "m1"}}
	if err := db.Materialize(ctx, coll); err != nil {
		t.Fatalf("Materialize collection failed: %v", err)
	}
	if err := db.RefreshMetadata(ctx, coll); err != nil {
		t.Fatalf("RefreshMetadata failed: %v", err)
	}

	box, err := db.ItemByID(ctx, CollectionItemID("eighties"))
	if err != nil {
		t.Fatalf("collection object missing: %v", err)
	}
	if box.Kind != mediatypes.KindBoxSet || box.SmartListID != "eighties" || box.Name != "[Smart] Eighties" {
		t.Errorf("Unexpected collection object %+v", box)
	}
	if len(box.Genres) == 0 || box.Genres[0] != "Science Fiction" {
		t.Errorf("Expected most common genre first, got %v", box.Genres)
	}

	alien, _ := db.ItemByID(ctx, "m1")
	if !slices.Contains(alien.Collections, "[Smart] Eighties") {
		t.Errorf("members should list the collection, got %v", alien.Collections)
	}

	after, _ := db.LatestChangeSeq(ctx)
	if after != before {
		t.Errorf("materialization must not write library changes (%d -> %d)", before, after)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.ItemsByKind["Movie"] != 2 || stats.ItemsByKind["BoxSet"] != 1 || stats.Users != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.ListsByKind["Playlist"] != 1 || stats.ListsByKind["Collection"] != 1 {
		t.Errorf("Unexpected list stats %+v", stats.ListsByKind)
	}
}

func TestImportPruneIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	importTestCatalog(t, db)
	ctx := context.Background()

	if err := db.Materialize(ctx, library.Result{ListID: "c", Kind: smartlist.KindCollection, OwnerID: "u1", Name: "C"}); err != nil {
		t.Fatal(err)
	}

	summary, err := db.ImportCatalog(ctx, strings.NewReader("items:\n  - id: m1\n    kind: Movie\n    name: Alien\n"), ImportOptions{Prune: true})
	if err != nil {
		t.Fatalf("ImportCatalog failed: %v", err)
	}
	if summary.Pruned != 4 {
		t.Errorf("Expected 4 pruned items, got %d", summary.Pruned)
	}
	if _, err := db.ItemByID(ctx, CollectionItemID("c")); err != nil {
		t.Errorf("prune must keep collection objects: %v", err)
	}
}

func TestImportRejectsBadCatalogIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		catalog string
	}{
		{"unknown key", "itemz: []"},
		{"unknown kind", "items:\n  - id: x\n    kind: Hologram\n    name: X\n"},
		{"missing id", "items:\n  - kind: Movie\n    name: X\n"},
		{"no kind and unknown extension", "items:\n  - id: x\n    name: X\n    path: /media/x.bin\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.ImportCatalog(ctx, strings.NewReader(tt.catalog), ImportOptions{}); err == nil {
				t.Error("Expected import error")
			}
		})
	}

	items, _ := db.Items(ctx, nil)
	if len(items) != 0 {
		t.Errorf("failed imports must not write anything, got %d items", len(items))
	}
}

func TestImportInfersKindFromPathIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	catalog := `items:
  - id: song
    name: Song
    path: /media/music/Song.MP3
  - id: clip
    name: Clip
    path: /media/clips/clip.mkv
  - id: film
    kind: Movie
    name: Film
    path: /media/film.mp3
`
	if _, err := db.ImportCatalog(ctx, strings.NewReader(catalog), ImportOptions{}); err != nil {
		t.Fatalf("ImportCatalog() error: %v", err)
	}

	want := map[string]mediatypes.Kind{
		"song": mediatypes.KindAudio,
		"clip": mediatypes.KindVideo,
		"film": mediatypes.KindMovie,
	}
	for id, kind := range want {
		it, err := db.ItemByID(ctx, id)
		if err != nil {
			t.Fatalf("ItemByID(%s) error: %v", id, err)
		}
		if it.Kind != kind {
			t.Errorf("%s kind = %s, want %s", id, it.Kind, kind)
		}
	}
}

func TestChangeCursorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	seq, err := db.GetChangeCursor(ctx)
	if err != nil || seq != 0 {
		t.Fatalf("GetChangeCursor on a new database = %d, %v", seq, err)
	}
	if err := db.SetChangeCursor(ctx, 42); err != nil {
		t.Fatal(err)
	}
	seq, err = db.GetChangeCursor(ctx)
	if err != nil || seq != 42 {
		t.Errorf("GetChangeCursor = %d, %v; want 42", seq, err)
	}

	if _, err := db.GetMetadata(ctx, "nonexistent"); err == nil {
		t.Error("Expected error for non-existent key")
	}
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, library.ErrNotFound)
}
