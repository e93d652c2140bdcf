package rules

import (
	"time"

	"smartlists/internal/library"
	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

// Value is a resolved field value. Type selects the meaningful member.
type Value struct {
	Type smartlist.FieldType
	Str  string
	Set  []string
	Num  float64
	Bool bool
	Time time.Time
}

func stringValue(s string) (Value, bool) {
	return Value{Type: smartlist.TypeString, Str: s}, true
}

func setValue(s []string) (Value, bool) {
	return Value{Type: smartlist.TypeStringSet, Set: s}, true
}

func numValue(n float64) (Value, bool) {
	return Value{Type: smartlist.TypeNumeric, Num: n}, true
}

func boolValue(b bool) (Value, bool) {
	return Value{Type: smartlist.TypeBoolean, Bool: b}, true
}

// dateValue treats the zero time as unknown.
func dateValue(t time.Time) (Value, bool) {
	if t.IsZero() {
		return Value{}, false
	}
	return Value{Type: smartlist.TypeDate, Time: t}, true
}

// ResolveOptions carries the per-expression inputs of a resolution.
type ResolveOptions struct {
	// UserID overrides the context owner for user-scoped fields.
	UserID string
	Flags  smartlist.Flag
}

type resolver func(ec *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool)

// resolvers is indexed by Field; the package tests fail on a missing entry.
var resolvers = [smartlist.NumFields]resolver{
	smartlist.FieldName: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return stringValue(it.Name)
	},
	smartlist.FieldSeriesName: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return stringValue(it.SeriesName)
	},
	smartlist.FieldAlbum: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return stringValue(it.Album)
	},
	smartlist.FieldOverview: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return stringValue(it.Overview)
	},
	smartlist.FieldOfficialRating: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return stringValue(it.OfficialRating)
	},
	smartlist.FieldItemType: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return Value{Type: smartlist.TypeEnum, Str: string(it.Kind)}, true
	},
	smartlist.FieldProductionYear: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		if it.ProductionYear == 0 {
			return Value{}, false
		}
		return numValue(float64(it.ProductionYear))
	},
	smartlist.FieldCommunityRating: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return numValue(it.CommunityRating)
	},
	smartlist.FieldCriticRating: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return numValue(it.CriticRating)
	},
	smartlist.FieldRuntimeMinutes: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return numValue(it.Runtime.Minutes())
	},
	smartlist.FieldSeasonNumber: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return numValue(float64(it.SeasonNumber))
	},
	smartlist.FieldEpisodeNumber: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return numValue(float64(it.EpisodeNumber))
	},
	smartlist.FieldTrackNumber: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return numValue(float64(it.TrackNumber))
	},
	smartlist.FieldDateCreated: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return dateValue(it.DateCreated)
	},
	smartlist.FieldReleaseDate: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return dateValue(it.ReleaseDate)
	},
	smartlist.FieldLastPlayed: func(ec *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool) {
		d, ok := ec.userItemData(ec.effectiveUser(opts.UserID), it.ID)
		if !ok {
			return Value{}, false
		}
		return dateValue(d.LastPlayed)
	},
	smartlist.FieldPlayCount: func(ec *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool) {
		d, ok := ec.userItemData(ec.effectiveUser(opts.UserID), it.ID)
		if !ok {
			return Value{}, false
		}
		return numValue(float64(d.PlayCount))
	},
	smartlist.FieldIsPlayed: func(ec *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool) {
		d, ok := ec.userItemData(ec.effectiveUser(opts.UserID), it.ID)
		if !ok {
			return Value{}, false
		}
		return boolValue(d.Played)
	},
	smartlist.FieldIsFavorite: func(ec *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool) {
		d, ok := ec.userItemData(ec.effectiveUser(opts.UserID), it.ID)
		if !ok {
			return Value{}, false
		}
		return boolValue(d.IsFavorite)
	},
	smartlist.FieldNextUnwatched: func(ec *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool) {
		user := ec.effectiveUser(opts.UserID)
		if _, ok := ec.userItemData(user, it.ID); !ok {
			return Value{}, false
		}
		next := ec.nextUnwatched(it.SeriesID, user, opts.Flags&smartlist.FlagUnwatchedSeries != 0)
		return boolValue(next != "" && next == it.ID)
	},
	smartlist.FieldGenres: func(ec *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool) {
		return setValue(withParentSeries(ec, it, opts, func(i *library.Item) []string { return i.Genres }))
	},
	smartlist.FieldTags: func(ec *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool) {
		return setValue(withParentSeries(ec, it, opts, func(i *library.Item) []string { return i.Tags }))
	},
	smartlist.FieldStudios: func(ec *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool) {
		return setValue(withParentSeries(ec, it, opts, func(i *library.Item) []string { return i.Studios }))
	},
	smartlist.FieldPeople: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return setValue(it.People)
	},
	smartlist.FieldCollections: func(_ *EvalContext, it *library.Item, opts ResolveOptions) (Value, bool) {
		if opts.Flags&smartlist.FlagCollectionItself != 0 && it.Kind == mediatypes.KindBoxSet {
			return setValue(append([]string{it.Name}, it.Collections...))
		}
		return setValue(it.Collections)
	},
	smartlist.FieldArtists: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return setValue(it.Artists)
	},
	smartlist.FieldAlbumArtists: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return setValue(it.AlbumArtists)
	},
	smartlist.FieldSimilarTo: func(_ *EvalContext, it *library.Item, _ ResolveOptions) (Value, bool) {
		return stringValue(it.Name)
	},
}

// Resolve maps field of item to a typed value for the evaluation context. ok
// is false when the field does not apply to the item's media kind or the value
// is unknown; such expressions do not match.
func Resolve(ec *EvalContext, it *library.Item, field smartlist.Field, opts ResolveOptions) (Value, bool) {
	if !field.IsValid() || !field.AppliesTo(it.Kind) {
		return Value{}, false
	}
	return resolvers[field](ec, it, opts)
}

// withParentSeries unions an episode's values with its series' values when
// the expression asks for it.
func withParentSeries(ec *EvalContext, it *library.Item, opts ResolveOptions, get func(*library.Item) []string) []string {
	own := get(it)
	if opts.Flags&smartlist.FlagParentSeries == 0 || it.SeriesID == "" {
		return own
	}
	if it.Kind != mediatypes.KindEpisode && it.Kind != mediatypes.KindSeason {
		return own
	}
	p := ec.parent(it.SeriesID)
	if p == nil {
		return own
	}
	merged := make([]string, 0, len(own)+len(get(p)))
	merged = append(merged, own...)
	return append(merged, get(p)...)
}
