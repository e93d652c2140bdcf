package library

import (
	"context"
	"errors"

	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

// ErrNotFound is returned when an item or user does not exist.
var ErrNotFound = errors.New("not found")

// Catalog answers candidate item queries. Items must return a stable order
// for identical catalog contents.
type Catalog interface {
	// Items returns every item whose kind is in kinds; nil means all kinds.
	Items(ctx context.Context, kinds []mediatypes.Kind) ([]Item, error)
	// ItemByID returns ErrNotFound when the item does not exist.
	ItemByID(ctx context.Context, id string) (*Item, error)
	// Episodes returns the episodes of a series in broadcast order.
	Episodes(ctx context.Context, seriesID string) ([]Item, error)
	// FindByName returns items whose name equals name, or contains it when
	// exact is false. Matching is case-insensitive.
	FindByName(ctx context.Context, name string, exact bool) ([]Item, error)
}

// UserDirectory resolves users and their playback state.
type UserDirectory interface {
	// User resolves a user by id or name; ErrNotFound when unknown.
	User(ctx context.Context, ref string) (User, error)
	Users(ctx context.Context) ([]User, error)
	// UserData returns the user's state keyed by item id.
	UserData(ctx context.Context, userID string) (map[string]UserData, error)
}

// Result is the computed content of one materialized list.
type Result struct {
	ListID  string             `json:"listId"`
	Kind    smartlist.ListKind `json:"kind"`
	OwnerID string             `json:"ownerId"`
	Name    string             `json:"name"`
	// ItemIDs is ordered for playlists and unordered for collections.
	ItemIDs []string `json:"itemIds"`
}

// Capabilities lists the optional operations a Materializer supports.
type Capabilities struct {
	RefreshMetadata bool
}

// Materializer writes computed lists back into the served library. A
// Materialize call replaces the previous content of the list as a whole or
// leaves it untouched on error.
type Materializer interface {
	Materialize(ctx context.Context, r Result) error
	Capabilities() Capabilities
	// RefreshMetadata asks the host to refresh artwork and counts for a
	// materialized list. Only called when Capabilities().RefreshMetadata.
	RefreshMetadata(ctx context.Context, r Result) error
}
