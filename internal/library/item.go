package library

import (
	"time"

	"smartlists/internal/mediatypes"
)

// Item is one catalog entry with the metadata the rule engine can test.
type Item struct {
	ID       string          `json:"id" yaml:"id"`
	Kind     mediatypes.Kind `json:"kind" yaml:"kind"`
	Name     string          `json:"name" yaml:"name"`
	SortName string          `json:"sortName,omitempty" yaml:"sortName,omitempty"`
	Path     string          `json:"path,omitempty" yaml:"path,omitempty"`

	// SeriesID and SeriesName link episodes and seasons to their series.
	SeriesID   string `json:"seriesId,omitempty" yaml:"seriesId,omitempty"`
	SeriesName string `json:"seriesName,omitempty" yaml:"seriesName,omitempty"`
	Album      string `json:"album,omitempty" yaml:"album,omitempty"`

	Overview        string        `json:"overview,omitempty" yaml:"overview,omitempty"`
	OfficialRating  string        `json:"officialRating,omitempty" yaml:"officialRating,omitempty"`
	ProductionYear  int           `json:"productionYear,omitempty" yaml:"productionYear,omitempty"`
	CommunityRating float64       `json:"communityRating,omitempty" yaml:"communityRating,omitempty"`
	CriticRating    float64       `json:"criticRating,omitempty" yaml:"criticRating,omitempty"`
	Runtime         time.Duration `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	SeasonNumber    int           `json:"seasonNumber,omitempty" yaml:"seasonNumber,omitempty"`
	EpisodeNumber   int           `json:"episodeNumber,omitempty" yaml:"episodeNumber,omitempty"`
	DiscNumber      int           `json:"discNumber,omitempty" yaml:"discNumber,omitempty"`
	TrackNumber     int           `json:"trackNumber,omitempty" yaml:"trackNumber,omitempty"`
	DateCreated     time.Time     `json:"dateCreated,omitempty" yaml:"dateCreated,omitempty"`
	ReleaseDate     time.Time     `json:"releaseDate,omitempty" yaml:"releaseDate,omitempty"`

	Genres       []string `json:"genres,omitempty" yaml:"genres,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Studios      []string `json:"studios,omitempty" yaml:"studios,omitempty"`
	People       []string `json:"people,omitempty" yaml:"people,omitempty"`
	Collections  []string `json:"collections,omitempty" yaml:"collections,omitempty"`
	Artists      []string `json:"artists,omitempty" yaml:"artists,omitempty"`
	AlbumArtists []string `json:"albumArtists,omitempty" yaml:"albumArtists,omitempty"`

	// SmartListID is set on collection objects materialized from a smart list.
	SmartListID string `json:"smartListId,omitempty" yaml:"smartListId,omitempty"`
}

// Title returns the explicit sort title when present, otherwise the name.
func (it *Item) Title() string {
	if it.SortName != "" {
		return it.SortName
	}
	return it.Name
}

// User is a library account.
type User struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// UserData is one user's playback state for one item.
type UserData struct {
	ItemID     string    `json:"itemId" yaml:"itemId"`
	Played     bool      `json:"played" yaml:"played"`
	PlayCount  int       `json:"playCount" yaml:"playCount"`
	IsFavorite bool      `json:"isFavorite" yaml:"isFavorite"`
	LastPlayed time.Time `json:"lastPlayed,omitempty" yaml:"lastPlayed,omitempty"`
}
