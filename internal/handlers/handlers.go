package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"smartlists/internal/definitions"
	"smartlists/internal/library"
	"smartlists/internal/refresh"
	"smartlists/internal/smartlist"
	"smartlists/internal/watcher"
)

// Refresher is the part of the refresh orchestrator the API drives.
type Refresher interface {
	Lists() []*smartlist.SmartList
	Status(id string) refresh.ListStatus
	TriggerRefresh(ctx context.Context, target string) error
	Evaluate(ctx context.Context, id string) ([]string, error)
	Notify(ev library.ChangeEvent)
	GetAffectedLists(ev library.ChangeEvent) []string
	BatchState() (string, int)
}

// ProblemSource reports definition files that failed to load.
type ProblemSource interface {
	Problems() []definitions.Problem
}

// WatcherStatus reports the state of the change log watcher.
type WatcherStatus interface {
	Status() watcher.Status
}

// ExportLocator maps a list and owner to an exported playlist file.
type ExportLocator interface {
	Path(listID, ownerID string) string
}

// Handlers serves the API. Watcher and Exports may be nil.
type Handlers struct {
	refresher Refresher
	problems  ProblemSource
	watcher   WatcherStatus
	exports   ExportLocator
	started   time.Time
	ready     atomic.Bool
}

// Deps carries the collaborators of Handlers.
type Deps struct {
	Refresher Refresher
	Problems  ProblemSource
	Watcher   WatcherStatus
	Exports   ExportLocator
}

func New(deps Deps) *Handlers {
	return &Handlers{
		refresher: deps.Refresher,
		problems:  deps.Problems,
		watcher:   deps.Watcher,
		exports:   deps.Exports,
		started:   time.Now(),
	}
}

// SetReady marks the service ready once the definitions have been loaded.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// RegisterRoutes attaches every API route to r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/lists", h.ListLists).Methods(http.MethodGet)
	api.HandleFunc("/lists/validate", h.ValidateList).Methods(http.MethodPost)
	api.HandleFunc("/lists/{id}", h.GetList).Methods(http.MethodGet)
	api.HandleFunc("/lists/{id}/refresh", h.RefreshList).Methods(http.MethodPost)
	api.HandleFunc("/lists/{id}/evaluate", h.EvaluateList).Methods(http.MethodGet)
	api.HandleFunc("/lists/{id}/export", h.ExportList).Methods(http.MethodGet)
	api.HandleFunc("/refresh", h.RefreshAll).Methods(http.MethodPost)
	api.HandleFunc("/events", h.PostEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/affected", h.AffectedLists).Methods(http.MethodPost)
	api.HandleFunc("/definitions/problems", h.DefinitionProblems).Methods(http.MethodGet)
}
