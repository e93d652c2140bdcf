package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"smartlists/internal/definitions"
	"smartlists/internal/filesystem"
	"smartlists/internal/refresh"
	"smartlists/internal/smartlist"
)

// ListView is a definition together with its runtime status.
type ListView struct {
	*smartlist.SmartList
	Status refresh.ListStatus `json:"status"`
}

// EvaluateResponse is the result of a dry-run evaluation.
type EvaluateResponse struct {
	ListID  string   `json:"listId"`
	Count   int      `json:"count"`
	ItemIDs []string `json:"itemIds"`
}

// ValidateResponse lists every problem found in a submitted definition.
type ValidateResponse struct {
	Valid    bool                        `json:"valid"`
	ID       string                      `json:"id,omitempty"`
	Problems []smartlist.ValidationError `json:"problems,omitempty"`
}

func (h *Handlers) findList(id string) (*smartlist.SmartList, error) {
	for _, l := range h.refresher.Lists() {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", refresh.ErrListNotFound, id)
}

// ListLists returns every loaded definition with its status
func (h *Handlers) ListLists(w http.ResponseWriter, _ *http.Request) {
	lists := h.refresher.Lists()
	views := make([]ListView, 0, len(lists))
	for _, l := range lists {
		views = append(views, ListView{SmartList: l, Status: h.refresher.Status(l.ID)})
	}
	writeJSONStatus(w, http.StatusOK, views)
}

// GetList returns one definition with its status
func (h *Handlers) GetList(w http.ResponseWriter, r *http.Request) {
	l, err := h.findList(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, ListView{SmartList: l, Status: h.refresher.Status(l.ID)})
}

// RefreshAll queues a refresh of every enabled list. It answers 409 while a
// previous refresh of all lists is still running.
func (h *Handlers) RefreshAll(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.TriggerRefresh(r.Context(), refresh.AllLists); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "accepted", "target": refresh.AllLists})
}

// RefreshList queues a manual refresh of one list
func (h *Handlers) RefreshList(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.refresher.TriggerRefresh(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "accepted", "target": id})
}

// EvaluateList computes the ordered item ids of a list without writing them
// back to the host
func (h *Handlers) EvaluateList(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ids, err := h.refresher.Evaluate(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSONStatus(w, http.StatusOK, EvaluateResponse{ListID: id, Count: len(ids), ItemIDs: ids})
}

// ValidateList checks a YAML or JSON definition posted in the body and
// reports every problem at once
func (h *Handlers) ValidateList(w http.ResponseWriter, r *http.Request) {
	l, err := definitions.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), r.URL.Query().Get("id"))
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, ValidateResponse{Problems: smartlist.ValidationErrors(err)})
		return
	}
	writeJSONStatus(w, http.StatusOK, ValidateResponse{Valid: true, ID: l.ID})
}

// DefinitionProblems returns the definition files skipped on the last load
func (h *Handlers) DefinitionProblems(w http.ResponseWriter, _ *http.Request) {
	problems := []definitions.Problem{}
	if h.problems != nil {
		problems = append(problems, h.problems.Problems()...)
	}
	writeJSONStatus(w, http.StatusOK, problems)
}

// ExportList serves the exported .wpl file of a playlist. The owner defaults
// to the list's first owner and can be chosen with ?user=.
func (h *Handlers) ExportList(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeJSONError(w, "playlist export is disabled", http.StatusNotFound)
		return
	}

	l, err := h.findList(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if !l.IsPlaylist() {
		writeJSONError(w, "only playlists are exported", http.StatusBadRequest)
		return
	}

	owner := r.URL.Query().Get("user")
	if owner == "" {
		owner = l.Owners()[0]
	}

	path := h.exports.Path(l.ID, owner)
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if errors.Is(err, os.ErrNotExist) {
		writeJSONError(w, "playlist has not been exported yet", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.ms-wpl")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}
