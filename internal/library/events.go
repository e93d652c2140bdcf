package library

import (
	"fmt"
	"time"

	"smartlists/internal/mediatypes"
)

// ChangeKind classifies a change event.
type ChangeKind string

const (
	ItemAdded       ChangeKind = "ItemAdded"
	ItemRemoved     ChangeKind = "ItemRemoved"
	ItemUpdated     ChangeKind = "ItemUpdated"
	PlaybackChanged ChangeKind = "PlaybackChanged"
	UserChanged     ChangeKind = "UserChanged"
)

// ParseChangeKind validates a change kind name.
func ParseChangeKind(s string) (ChangeKind, error) {
	switch k := ChangeKind(s); k {
	case ItemAdded, ItemRemoved, ItemUpdated, PlaybackChanged, UserChanged:
		return k, nil
	}
	return "", fmt.Errorf("unknown change kind %q", s)
}

// IsLibraryChange reports whether the change adds or removes items.
func (k ChangeKind) IsLibraryChange() bool {
	return k == ItemAdded || k == ItemRemoved
}

// ChangeEvent is one notification from the host. Delivery is at least once,
// so consumers must tolerate duplicates.
type ChangeEvent struct {
	Kind    ChangeKind `json:"kind"`
	ItemIDs []string   `json:"itemIds,omitempty"`
	// Kinds are the media kinds of the affected items, when known.
	Kinds  []mediatypes.Kind `json:"kinds,omitempty"`
	UserID string            `json:"userId,omitempty"`
	At     time.Time         `json:"at"`
}
