package mediatypes

import (
	"fmt"
	"strings"
)

// Kind identifies the media kind of a library item.
type Kind string

const (
	// KindMovie is a feature film.
	KindMovie Kind = "Movie"
	// KindSeries is a TV series container.
	KindSeries Kind = "Series"
	// KindSeason is a season within a series.
	KindSeason Kind = "Season"
	// KindEpisode is a single TV episode.
	KindEpisode Kind = "Episode"
	// KindAudio is a music track.
	KindAudio Kind = "Audio"
	// KindAudioBook is an audiobook.
	KindAudioBook Kind = "AudioBook"
	// KindMusicVideo is a music video.
	KindMusicVideo Kind = "MusicVideo"
	// KindVideo is a home or other untyped video.
	KindVideo Kind = "Video"
	// KindPhoto is a still image.
	KindPhoto Kind = "Photo"
	// KindBook is an e-book or comic.
	KindBook Kind = "Book"
	// KindBoxSet is a collection object.
	KindBoxSet Kind = "BoxSet"
)

// AllKinds lists every known kind in a stable order.
var AllKinds = []Kind{
	KindMovie, KindSeries, KindSeason, KindEpisode, KindAudio, KindAudioBook,
	KindMusicVideo, KindVideo, KindPhoto, KindBook, KindBoxSet,
}

// ParseKind converts a kind name to a Kind, ignoring case.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for _, k := range AllKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler with case-insensitive names.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsPlayable reports whether items of this kind carry their own playback state.
func (k Kind) IsPlayable() bool {
	switch k {
	case KindSeries, KindSeason, KindBoxSet, KindPhoto:
		return false
	default:
		return true
	}
}

// HasRuntime reports whether items of this kind have a meaningful runtime.
func (k Kind) HasRuntime() bool {
	switch k {
	case KindPhoto, KindBook, KindBoxSet:
		return false
	default:
		return true
	}
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".aac":  true,
}

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".heic": true,
	".tiff": true,
}

// BookExtensions maps file extensions to whether they are supported book formats.
var BookExtensions = map[string]bool{
	".epub": true,
	".pdf":  true,
	".cbz":  true,
	".cbr":  true,
	".mobi": true,
}

// KindForExtension guesses a Kind from a lowercase file extension including the
// leading dot. The second return value is false when the extension is unknown.
func KindForExtension(ext string) (Kind, bool) {
	switch {
	case VideoExtensions[ext]:
		return KindVideo, true
	case AudioExtensions[ext]:
		return KindAudio, true
	case ImageExtensions[ext]:
		return KindPhoto, true
	case BookExtensions[ext]:
		return KindBook, true
	}
	return "", false
}
