package smartlist

import (
	"fmt"
	"strings"

	"smartlists/internal/mediatypes"
)

// FieldType classifies the value a field resolves to. It drives the set of
// operators an expression on that field may use.
type FieldType uint8

const (
	// TypeString is a single text value.
	TypeString FieldType = iota + 1
	// TypeStringSet is a multi-valued text field such as genres or tags.
	TypeStringSet
	// TypeNumeric is a floating point or integer value.
	TypeNumeric
	// TypeBoolean is a true/false value.
	TypeBoolean
	// TypeDate is an instant in time.
	TypeDate
	// TypeEnum is a value from a closed set, such as the media kind.
	TypeEnum
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeStringSet:
		return "StringSet"
	case TypeNumeric:
		return "Numeric"
	case TypeBoolean:
		return "Boolean"
	case TypeDate:
		return "Date"
	case TypeEnum:
		return "Enum"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// Field names an item property an expression can test.
type Field uint8

const (
	// FieldInvalid is the zero value and never validates.
	FieldInvalid Field = iota
	FieldName
	FieldSeriesName
	FieldAlbum
	FieldOverview
	FieldOfficialRating
	FieldItemType
	FieldProductionYear
	FieldCommunityRating
	FieldCriticRating
	FieldRuntimeMinutes
	FieldSeasonNumber
	FieldEpisodeNumber
	FieldTrackNumber
	FieldDateCreated
	FieldReleaseDate
	FieldLastPlayed
	FieldPlayCount
	FieldIsPlayed
	FieldIsFavorite
	FieldNextUnwatched
	FieldGenres
	FieldTags
	FieldStudios
	FieldPeople
	FieldCollections
	FieldArtists
	FieldAlbumArtists
	FieldSimilarTo

	fieldCount
)

// NumFields sizes tables indexed by Field.
const NumFields = fieldCount

// Flag is an auxiliary per-expression option. Each field declares which flags
// it accepts.
type Flag uint8

const (
	// FlagParentSeries unions an episode's values with its parent series' values.
	FlagParentSeries Flag = 1 << iota
	// FlagUnwatchedSeries lets series with no watched episodes yield a next episode.
	FlagUnwatchedSeries
	// FlagCollectionItself matches the collection object instead of its members.
	FlagCollectionItself
)

type fieldInfo struct {
	name       string
	typ        FieldType
	userScoped bool
	// kinds restricts the media kinds the field applies to; nil means all.
	kinds []mediatypes.Kind
	// ops narrows the operators allowed by typ; nil means the type default.
	ops   []Operator
	flags Flag
}

var (
	videoKinds = []mediatypes.Kind{
		mediatypes.KindMovie, mediatypes.KindSeries, mediatypes.KindSeason,
		mediatypes.KindEpisode, mediatypes.KindMusicVideo, mediatypes.KindVideo,
	}
	playableKinds = []mediatypes.Kind{
		mediatypes.KindMovie, mediatypes.KindEpisode, mediatypes.KindAudio,
		mediatypes.KindAudioBook, mediatypes.KindMusicVideo, mediatypes.KindVideo,
		mediatypes.KindBook,
	}
	runtimeKinds = []mediatypes.Kind{
		mediatypes.KindMovie, mediatypes.KindSeries, mediatypes.KindSeason,
		mediatypes.KindEpisode, mediatypes.KindAudio, mediatypes.KindAudioBook,
		mediatypes.KindMusicVideo, mediatypes.KindVideo,
	}
	musicKinds   = []mediatypes.Kind{mediatypes.KindAudio, mediatypes.KindMusicVideo, mediatypes.KindAudioBook}
	episodeKinds = []mediatypes.Kind{mediatypes.KindEpisode, mediatypes.KindSeason}
)

// fieldTable is indexed by Field. Its fixed size makes a missing entry a zero
// fieldInfo, which the package tests reject.
var fieldTable = [fieldCount]fieldInfo{
	FieldInvalid:         {},
	FieldName:            {name: "Name", typ: TypeString},
	FieldSeriesName:      {name: "SeriesName", typ: TypeString, kinds: episodeKinds},
	FieldAlbum:           {name: "Album", typ: TypeString, kinds: musicKinds},
	FieldOverview:        {name: "Overview", typ: TypeString},
	FieldOfficialRating:  {name: "OfficialRating", typ: TypeString, kinds: videoKinds},
	FieldItemType:        {name: "ItemType", typ: TypeEnum},
	FieldProductionYear:  {name: "ProductionYear", typ: TypeNumeric},
	FieldCommunityRating: {name: "CommunityRating", typ: TypeNumeric},
	FieldCriticRating:    {name: "CriticRating", typ: TypeNumeric, kinds: []mediatypes.Kind{mediatypes.KindMovie, mediatypes.KindSeries}},
	FieldRuntimeMinutes:  {name: "RuntimeMinutes", typ: TypeNumeric, kinds: runtimeKinds},
	FieldSeasonNumber:    {name: "SeasonNumber", typ: TypeNumeric, kinds: episodeKinds},
	FieldEpisodeNumber:   {name: "EpisodeNumber", typ: TypeNumeric, kinds: []mediatypes.Kind{mediatypes.KindEpisode}},
	FieldTrackNumber:     {name: "TrackNumber", typ: TypeNumeric, kinds: []mediatypes.Kind{mediatypes.KindAudio}},
	FieldDateCreated:     {name: "DateCreated", typ: TypeDate},
	FieldReleaseDate:     {name: "ReleaseDate", typ: TypeDate},
	FieldLastPlayed:      {name: "LastPlayed", typ: TypeDate, userScoped: true, kinds: playableKinds},
	FieldPlayCount:       {name: "PlayCount", typ: TypeNumeric, userScoped: true, kinds: playableKinds},
	FieldIsPlayed:        {name: "IsPlayed", typ: TypeBoolean, userScoped: true},
	FieldIsFavorite:      {name: "IsFavorite", typ: TypeBoolean, userScoped: true},
	FieldNextUnwatched:   {name: "NextUnwatched", typ: TypeBoolean, userScoped: true, kinds: []mediatypes.Kind{mediatypes.KindEpisode}, flags: FlagUnwatchedSeries},
	FieldGenres:          {name: "Genres", typ: TypeStringSet, flags: FlagParentSeries},
	FieldTags:            {name: "Tags", typ: TypeStringSet, flags: FlagParentSeries},
	FieldStudios:         {name: "Studios", typ: TypeStringSet, flags: FlagParentSeries},
	FieldPeople:          {name: "People", typ: TypeStringSet},
	FieldCollections:     {name: "Collections", typ: TypeStringSet, flags: FlagCollectionItself},
	FieldArtists:         {name: "Artists", typ: TypeStringSet, kinds: musicKinds},
	FieldAlbumArtists:    {name: "AlbumArtists", typ: TypeStringSet, kinds: musicKinds},
	FieldSimilarTo:       {name: "SimilarTo", typ: TypeString, ops: []Operator{OpEqual, OpContains}},
}

// fieldAliases maps alternative spellings onto canonical fields.
var fieldAliases = map[string]Field{
	"title":        FieldName,
	"genre":        FieldGenres,
	"tag":          FieldTags,
	"studio":       FieldStudios,
	"person":       FieldPeople,
	"actors":       FieldPeople,
	"collection":   FieldCollections,
	"artist":       FieldArtists,
	"albumartist":  FieldAlbumArtists,
	"runtime":      FieldRuntimeMinutes,
	"type":         FieldItemType,
	"mediatype":    FieldItemType,
	"year":         FieldProductionYear,
	"played":       FieldIsPlayed,
	"favorite":     FieldIsFavorite,
	"dateadded":    FieldDateCreated,
	"premieredate": FieldReleaseDate,
	"rating":       FieldCommunityRating,
}

// ParseField converts a field name (or a known alias) into a Field.
func ParseField(s string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for f := FieldName; f < fieldCount; f++ {
		if strings.ToLower(fieldTable[f].name) == key {
			return f, nil
		}
	}
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	return FieldInvalid, fmt.Errorf("unknown field %q", s)
}

// AllFields returns every valid field in declaration order.
func AllFields() []Field {
	fields := make([]Field, 0, fieldCount-1)
	for f := FieldName; f < fieldCount; f++ {
		fields = append(fields, f)
	}
	return fields
}

// IsValid reports whether f names a known field.
func (f Field) IsValid() bool {
	return f > FieldInvalid && f < fieldCount
}

func (f Field) String() string {
	if !f.IsValid() {
		return fmt.Sprintf("Field(%d)", uint8(f))
	}
	return fieldTable[f].name
}

// Type returns the value type of the field.
func (f Field) Type() FieldType {
	if !f.IsValid() {
		return 0
	}
	return fieldTable[f].typ
}

// UserScoped reports whether the field depends on per-user playback state.
func (f Field) UserScoped() bool {
	return f.IsValid() && fieldTable[f].userScoped
}

// AppliesTo reports whether the field is meaningful for items of kind k.
func (f Field) AppliesTo(k mediatypes.Kind) bool {
	if !f.IsValid() {
		return false
	}
	kinds := fieldTable[f].kinds
	if kinds == nil {
		return true
	}
	for _, allowed := range kinds {
		if allowed == k {
			return true
		}
	}
	return false
}

// Accepts reports whether the field supports the auxiliary flag.
func (f Field) Accepts(flag Flag) bool {
	return f.IsValid() && fieldTable[f].flags&flag != 0
}

// Operators returns the operators valid for the field.
func (f Field) Operators() []Operator {
	if !f.IsValid() {
		return nil
	}
	if ops := fieldTable[f].ops; ops != nil {
		return ops
	}
	return OperatorsFor(fieldTable[f].typ)
}

// Allows reports whether op may be used with the field.
func (f Field) Allows(op Operator) bool {
	for _, allowed := range f.Operators() {
		if allowed == op {
			return true
		}
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (f Field) MarshalText() ([]byte, error) {
	if !f.IsValid() {
		return nil, fmt.Errorf("cannot marshal invalid field %d", uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
