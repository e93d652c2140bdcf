package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"smartlists/internal/definitions"
	"smartlists/internal/library"
	"smartlists/internal/refresh"
	"smartlists/internal/smartlist"
	"smartlists/internal/watcher"
)

// =============================================================================
// Mock collaborators
// =============================================================================

type mockRefresher struct {
	mu         sync.Mutex
	lists      []*smartlist.SmartList
	status     map[string]refresh.ListStatus
	triggerErr error
	triggered  []string
	evaluated  map[string][]string
	notified   []library.ChangeEvent
	affected   []string
}

func (m *mockRefresher) Lists() []*smartlist.SmartList { return m.lists }

func (m *mockRefresher) Status(id string) refresh.ListStatus {
	if s, ok := m.status[id]; ok {
		return s
	}
	return refresh.ListStatus{ListID: id, State: refresh.StateIdle}
}

func (m *mockRefresher) TriggerRefresh(_ context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.triggerErr != nil {
		return m.triggerErr
	}
	m.triggered = append(m.triggered, target)
	return nil
}

func (m *mockRefresher) Evaluate(_ context.Context, id string) ([]string, error) {
	ids, ok := m.evaluated[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", refresh.ErrListNotFound, id)
	}
	return ids, nil
}

func (m *mockRefresher) Notify(ev library.ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, ev)
}

func (m *mockRefresher) GetAffectedLists(library.ChangeEvent) []string { return m.affected }

func (m *mockRefresher) BatchState() (string, int) { return "Idle", 0 }

type mockProblems []definitions.Problem

func (p mockProblems) Problems() []definitions.Problem { return p }

type mockWatcher struct{ status watcher.Status }

func (m mockWatcher) Status() watcher.Status { return m.status }

type dirExports struct{ dir string }

func (d dirExports) Path(listID, ownerID string) string {
	return filepath.Join(d.dir, listID+"_"+ownerID+".wpl")
}

func testList(id string, kind smartlist.ListKind, enabled bool) *smartlist.SmartList {
	l := smartlist.New()
	l.ID = id
	l.Name = strings.ToUpper(id)
	l.Kind = kind
	l.Enabled = enabled
	l.UserID = "u1"
	return l
}

func newTestServer(t *testing.T, deps Deps) (*Handlers, *mux.Router) {
	t.Helper()
	h := New(deps)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return h, r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

// =============================================================================
// Health
// =============================================================================

func TestHealthCheck(t *testing.T) {
	ref := &mockRefresher{
		lists: []*smartlist.SmartList{
			testList("a", smartlist.KindPlaylist, true),
			testList("b", smartlist.KindCollection, false),
		},
		status: map[string]refresh.ListStatus{"a": {ListID: "a", State: refresh.StateRefreshing}},
	}
	h, r := newTestServer(t, Deps{Refresher: ref, Problems: mockProblems{{File: "bad.yaml"}}})

	w := do(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before ready, got %d", w.Code)
	}

	h.SetReady(true)
	w = do(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 when ready, got %d", w.Code)
	}

	var resp HealthResponse
	decode(t, w, &resp)
	if resp.Status != statusHealthy || !resp.Ready {
		t.Errorf("status = %s ready = %v", resp.Status, resp.Ready)
	}
	if resp.Lists != 2 || resp.EnabledLists != 1 || resp.Refreshing != 1 {
		t.Errorf("lists=%d enabled=%d refreshing=%d", resp.Lists, resp.EnabledLists, resp.Refreshing)
	}
	if resp.Problems != 1 {
		t.Errorf("problems = %d, want 1", resp.Problems)
	}
}

func TestHealthCheckDegradedWatcher(t *testing.T) {
	h, r := newTestServer(t, Deps{
		Refresher: &mockRefresher{},
		Watcher:   mockWatcher{status: watcher.Status{Cursor: 42, LastError: "database is locked", LastPoll: time.Now()}},
	})
	h.SetReady(true)

	var resp HealthResponse
	w := do(r, http.MethodGet, "/health", "")
	decode(t, w, &resp)
	if resp.Status != statusDegraded {
		t.Errorf("status = %s, want degraded", resp.Status)
	}
	if resp.WatcherCursor != 42 || resp.WatcherLastError == "" || resp.WatcherLastPoll == "" {
		t.Errorf("unexpected watcher fields: %+v", resp)
	}
}

func TestLivenessAndReadiness(t *testing.T) {
	h, r := newTestServer(t, Deps{Refresher: &mockRefresher{}})

	if w := do(r, http.MethodGet, "/livez", ""); w.Code != http.StatusOK {
		t.Errorf("livez = %d", w.Code)
	}
	if w := do(r, http.MethodHead, "/livez", ""); w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("HEAD livez = %d with %d body bytes", w.Code, w.Body.Len())
	}
	if w := do(r, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before ready = %d", w.Code)
	}
	h.SetReady(true)
	if w := do(r, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Errorf("readyz after ready = %d", w.Code)
	}
}

func TestGetVersion(t *testing.T) {
	_, r := newTestServer(t, Deps{Refresher: &mockRefresher{}})
	w := do(r, http.MethodGet, "/version", "")
	if w.Code != http.StatusOK {
		t.Fatalf("version = %d", w.Code)
	}
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Error("Expected Cache-Control: no-cache")
	}
	var info map[string]string
	decode(t, w, &info)
	if info["version"] == "" || info["goVersion"] == "" {
		t.Errorf("incomplete build info: %v", info)
	}
}

// =============================================================================
// Lists
// =============================================================================

func TestListLists(t *testing.T) {
	ref := &mockRefresher{
		lists: []*smartlist.SmartList{testList("a", smartlist.KindPlaylist, true)},
		status: map[string]refresh.ListStatus{
			"a": {ListID: "a", State: refresh.StateIdle, ItemCount: 7, LastCause: refresh.CauseScheduled},
		},
	}
	_, r := newTestServer(t, Deps{Refresher: ref})

	w := do(r, http.MethodGet, "/api/lists", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got []struct {
		ID     string             `json:"id"`
		Name   string             `json:"name"`
		Status refresh.ListStatus `json:"status"`
	}
	decode(t, w, &got)
	if len(got) != 1 || got[0].ID != "a" || got[0].Name != "A" {
		t.Fatalf("unexpected lists: %+v", got)
	}
	if got[0].Status.ItemCount != 7 || got[0].Status.LastCause != refresh.CauseScheduled {
		t.Errorf("unexpected status: %+v", got[0].Status)
	}
}

func TestGetList(t *testing.T) {
	ref := &mockRefresher{lists: []*smartlist.SmartList{testList("a", smartlist.KindPlaylist, true)}}
	_, r := newTestServer(t, Deps{Refresher: ref})

	if w := do(r, http.MethodGet, "/api/lists/a", ""); w.Code != http.StatusOK {
		t.Errorf("GET existing = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/lists/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("GET missing = %d", w.Code)
	}
}

func TestRefreshEndpoints(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"all accepted", "/api/refresh", nil, http.StatusAccepted},
		{"all conflict", "/api/refresh", refresh.ErrRefreshInProgress, http.StatusConflict},
		{"one accepted", "/api/lists/a/refresh", nil, http.StatusAccepted},
		{"one missing", "/api/lists/x/refresh", fmt.Errorf("%w: x", refresh.ErrListNotFound), http.StatusNotFound},
		{"one disabled", "/api/lists/b/refresh", fmt.Errorf("%w: b", refresh.ErrListDisabled), http.StatusConflict},
		{"store failure", "/api/lists/a/refresh", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := &mockRefresher{triggerErr: tt.err}
			_, r := newTestServer(t, Deps{Refresher: ref})

			w := do(r, http.MethodPost, tt.path, "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRefreshTargets(t *testing.T) {
	ref := &mockRefresher{}
	_, r := newTestServer(t, Deps{Refresher: ref})

	do(r, http.MethodPost, "/api/refresh", "")
	do(r, http.MethodPost, "/api/lists/favs/refresh", "")

	if len(ref.triggered) != 2 || ref.triggered[0] != refresh.AllLists || ref.triggered[1] != "favs" {
		t.Errorf("triggered = %v", ref.triggered)
	}
}

func TestRefreshMethodNotAllowed(t *testing.T) {
	_, r := newTestServer(t, Deps{Refresher: &mockRefresher{}})
	if w := do(r, http.MethodGet, "/api/refresh", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/refresh = %d, want 405", w.Code)
	}
}

func TestEvaluateList(t *testing.T) {
	ref := &mockRefresher{evaluated: map[string][]string{"a": {"m3", "m1"}, "empty": nil}}
	_, r := newTestServer(t, Deps{Refresher: ref})

	w := do(r, http.MethodGet, "/api/lists/a/evaluate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp EvaluateResponse
	decode(t, w, &resp)
	if resp.Count != 2 || resp.ItemIDs[0] != "m3" || resp.ItemIDs[1] != "m1" {
		t.Errorf("unexpected evaluation: %+v", resp)
	}

	w = do(r, http.MethodGet, "/api/lists/empty/evaluate", "")
	if !strings.Contains(w.Body.String(), `"itemIds":[]`) {
		t.Errorf("Expected empty array, got %s", w.Body.String())
	}

	if w := do(r, http.MethodGet, "/api/lists/nope/evaluate", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing list = %d", w.Code)
	}
}

func TestValidateList(t *testing.T) {
	_, r := newTestServer(t, Deps{Refresher: &mockRefresher{}})

	valid := `
id: favs
name: Favourites
kind: Playlist
userId: u1
expressionSets:
  - expressions:
      - field: IsFavorite
        operator: Equal
        value: "true"
`
	w := do(r, http.MethodPost, "/api/lists/validate", valid)
	if w.Code != http.StatusOK {
		t.Fatalf("valid definition = %d: %s", w.Code, w.Body.String())
	}

	invalid := `
name: ""
kind: Playlist
expressionSets: []
`
	w = do(r, http.MethodPost, "/api/lists/validate", invalid)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid definition = %d", w.Code)
	}
	var resp ValidateResponse
	decode(t, w, &resp)
	if resp.Valid || len(resp.Problems) < 2 {
		t.Errorf("Expected several problems, got %+v", resp)
	}

	w = do(r, http.MethodPost, "/api/lists/validate", "name: [unterminated")
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed YAML = %d", w.Code)
	}
}

func TestDefinitionProblems(t *testing.T) {
	_, r := newTestServer(t, Deps{Refresher: &mockRefresher{}})
	w := do(r, http.MethodGet, "/api/definitions/problems", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Expected empty array without a problem source, got %s", w.Body.String())
	}

	_, r = newTestServer(t, Deps{Refresher: &mockRefresher{}, Problems: mockProblems{{File: "x.yaml", Error: "boom"}}})
	var got []definitions.Problem
	decode(t, do(r, http.MethodGet, "/api/definitions/problems", ""), &got)
	if len(got) != 1 || got[0].File != "x.yaml" {
		t.Errorf("problems = %+v", got)
	}
}

func TestExportList(t *testing.T) {
	dir := t.TempDir()
	ref := &mockRefresher{lists: []*smartlist.SmartList{
		testList("pl", smartlist.KindPlaylist, true),
		testList("col", smartlist.KindCollection, true),
	}}
	_, r := newTestServer(t, Deps{Refresher: ref, Exports: dirExports{dir}})

	if w := do(r, http.MethodGet, "/api/lists/pl/export", ""); w.Code != http.StatusNotFound {
		t.Errorf("not yet exported = %d", w.Code)
	}

	content := `<?wpl version="1.0"?><smil></smil>`
	if err := os.WriteFile(filepath.Join(dir, "pl_u1.wpl"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	w := do(r, http.MethodGet, "/api/lists/pl/export", "")
	if w.Code != http.StatusOK || w.Body.String() != content {
		t.Fatalf("export = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.ms-wpl" {
		t.Errorf("Content-Type = %s", ct)
	}

	if w := do(r, http.MethodGet, "/api/lists/pl/export?user=u2", ""); w.Code != http.StatusNotFound {
		t.Errorf("other owner = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/lists/col/export", ""); w.Code != http.StatusBadRequest {
		t.Errorf("collection export = %d", w.Code)
	}
}

func TestExportDisabled(t *testing.T) {
	ref := &mockRefresher{lists: []*smartlist.SmartList{testList("pl", smartlist.KindPlaylist, true)}}
	_, r := newTestServer(t, Deps{Refresher: ref})
	if w := do(r, http.MethodGet, "/api/lists/pl/export", ""); w.Code != http.StatusNotFound {
		t.Errorf("export without exporter = %d", w.Code)
	}
}

// =============================================================================
// Events
// =============================================================================

func TestPostEvent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"item added", `{"kind":"ItemAdded","itemIds":["m1"],"kinds":["Movie"]}`, http.StatusAccepted},
		{"playback", `{"kind":"PlaybackChanged","itemIds":["m1"],"userId":"u1"}`, http.StatusAccepted},
		{"user changed", `{"kind":"UserChanged","userId":"u1"}`, http.StatusAccepted},
		{"unknown kind", `{"kind":"Exploded","itemIds":["m1"]}`, http.StatusBadRequest},
		{"missing items", `{"kind":"ItemUpdated"}`, http.StatusBadRequest},
		{"playback without user", `{"kind":"PlaybackChanged","itemIds":["m1"]}`, http.StatusBadRequest},
		{"unknown field", `{"kind":"ItemAdded","itemIds":["m1"],"extra":1}`, http.StatusBadRequest},
		{"not json", `kind: ItemAdded`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := &mockRefresher{}
			_, r := newTestServer(t, Deps{Refresher: ref})

			w := do(r, http.MethodPost, "/api/events", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			notified := len(ref.notified) == 1
			if notified != (tt.want == http.StatusAccepted) {
				t.Errorf("notified = %v", notified)
			}
			if notified && ref.notified[0].At.IsZero() {
				t.Error("Expected event timestamp to be filled in")
			}
		})
	}
}

func TestAffectedLists(t *testing.T) {
	ref := &mockRefresher{affected: []string{"zeta", "alpha"}}
	_, r := newTestServer(t, Deps{Refresher: ref})

	w := do(r, http.MethodPost, "/api/events/affected", `{"kind":"ItemAdded","itemIds":["m1"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp AffectedResponse
	decode(t, w, &resp)
	if len(resp.Lists) != 2 || resp.Lists[0] != "alpha" {
		t.Errorf("lists = %v", resp.Lists)
	}
	if len(ref.notified) != 0 {
		t.Error("affected lookup must not queue the event")
	}
}
