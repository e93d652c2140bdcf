package handlers

import (
	"net/http"
	"slices"
	"time"

	"smartlists/internal/library"
)

// AffectedResponse lists the ids of lists an event would refresh.
type AffectedResponse struct {
	Lists []string `json:"lists"`
}

func (h *Handlers) decodeEvent(w http.ResponseWriter, r *http.Request) (library.ChangeEvent, bool) {
	var ev library.ChangeEvent
	if err := decodeJSON(w, r, &ev); err != nil {
		writeJSONError(w, "invalid event: "+err.Error(), http.StatusBadRequest)
		return ev, false
	}
	if _, err := library.ParseChangeKind(string(ev.Kind)); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return ev, false
	}
	if ev.Kind != library.UserChanged && len(ev.ItemIDs) == 0 {
		writeJSONError(w, "itemIds is required for "+string(ev.Kind), http.StatusBadRequest)
		return ev, false
	}
	if ev.Kind == library.PlaybackChanged && ev.UserID == "" {
		writeJSONError(w, "userId is required for "+string(ev.Kind), http.StatusBadRequest)
		return ev, false
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return ev, true
}

// PostEvent accepts a change event pushed by the host. The event joins the
// current debounce batch.
func (h *Handlers) PostEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}
	h.refresher.Notify(ev)
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// AffectedLists reports which lists would be refreshed by an event without
// queueing anything
func (h *Handlers) AffectedLists(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}
	ids := h.refresher.GetAffectedLists(ev)
	if ids == nil {
		ids = []string{}
	}
	slices.Sort(ids)
	writeJSONStatus(w, http.StatusOK, AffectedResponse{Lists: ids})
}
