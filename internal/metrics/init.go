package metrics

import "smartlists/internal/mediatypes"

// Causes and statuses used as refresh label values.
var (
	refreshCauses   = []string{"manual", "scheduled", "auto"}
	refreshStatuses = []string{"success", "error", "discarded"}
	changeKinds     = []string{"ItemAdded", "ItemRemoved", "ItemUpdated", "PlaybackChanged", "UserChanged"}
	triggerKinds    = []string{"Daily", "Weekly", "Monthly", "Yearly", "Interval"}

	filesystemOperations = []string{"stat", "open", "read_file", "read_dir"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, cause := range refreshCauses {
		RefreshDuration.WithLabelValues(cause)
		for _, status := range refreshStatuses {
			RefreshRunsTotal.WithLabelValues(cause, status)
		}
	}

	for _, kind := range changeKinds {
		ChangeEventsTotal.WithLabelValues(kind)
	}

	for _, trigger := range triggerKinds {
		ScheduleFiresTotal.WithLabelValues(trigger)
	}

	for _, kind := range mediatypes.AllKinds {
		LibraryItemsTotal.WithLabelValues(string(kind))
	}

	for _, kind := range []string{"Playlist", "Collection"} {
		MaterializedListsTotal.WithLabelValues(kind)
	}

	for _, state := range []string{"enabled", "disabled"} {
		DefinitionsLoaded.WithLabelValues(state)
	}

	for _, status := range []string{"success", "error"} {
		PlaylistExportsTotal.WithLabelValues(status)
	}

	for _, result := range []string{"success", "failure", "missing"} {
		AuthAttemptsTotal.WithLabelValues(result)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, op := range filesystemOperations {
		FilesystemRetryAttempts.WithLabelValues(op)
		for _, outcome := range []string{"success", "failure"} {
			FilesystemRetryOutcomes.WithLabelValues(op, outcome)
		}
	}
}
