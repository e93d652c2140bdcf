package sorter

import (
	"bytes"
	"cmp"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"smartlists/internal/library"
	"smartlists/internal/smartlist"
)

// Keys supplies the per-user and per-list values some sort keys need.
type Keys interface {
	// ItemData returns the owner's playback state for an item.
	ItemData(itemID string) library.UserData
	// Similarity returns the item's SimilarTo score.
	Similarity(it *library.Item) float64
}

// noKeys is used when the caller has no user or similarity data.
type noKeys struct{}

func (noKeys) ItemData(string) library.UserData  { return library.UserData{} }
func (noKeys) Similarity(*library.Item) float64 { return 0 }

// Sorter orders evaluated items. The zero value is not usable; call New.
type Sorter struct {
	tag  language.Tag
	rand func() *rand.Rand
}

// Option configures a Sorter.
type Option func(*Sorter)

// WithLanguage sets the collation language for titles.
func WithLanguage(tag language.Tag) Option {
	return func(s *Sorter) { s.tag = tag }
}

// WithRand sets the source of random orderings.
func WithRand(fn func() *rand.Rand) Option {
	return func(s *Sorter) { s.rand = fn }
}

// New returns a Sorter collating titles in English.
func New(opts ...Option) *Sorter {
	s := &Sorter{
		tag: language.English,
		rand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sortKey struct {
	text []byte
	nums [2]float64
}

func compareKeys(a, b sortKey) int {
	if c := bytes.Compare(a.text, b.text); c != 0 {
		return c
	}
	if c := cmp.Compare(a.nums[0], b.nums[0]); c != 0 {
		return c
	}
	return cmp.Compare(a.nums[1], b.nums[1])
}

// Order returns items arranged by the sort chain. Keys compare in order and
// fall through on ties; remaining ties are broken by item id, so the result
// is deterministic for every chain without Random. Random shuffles and
// NoOrder (or an empty chain) keeps catalog order. The input is not modified.
func (s *Sorter) Order(items []*library.Item, keys []smartlist.SortKey, data Keys) []*library.Item {
	out := slices.Clone(items)
	if len(keys) == 0 || keys[0].Field == smartlist.SortNoOrder {
		return out
	}
	if keys[0].Field == smartlist.SortRandom {
		r := s.rand()
		r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
	if data == nil {
		data = noKeys{}
	}

	col := collate.New(s.tag, collate.IgnoreCase, collate.Numeric)
	var buf collate.Buffer

	// Keys are extracted once per item; the collator is not shared with other
	// goroutines.
	type entry struct {
		item *library.Item
		keys []sortKey
	}
	entries := make([]entry, len(out))
	for i, it := range out {
		e := entry{item: it, keys: make([]sortKey, 0, len(keys))}
		for _, k := range keys {
			e.keys = append(e.keys, extract(k.Field, it, data, col, &buf))
		}
		entries[i] = e
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		for i, k := range keys {
			c := compareKeys(a.keys[i], b.keys[i])
			if k.Descending() {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.item.ID, b.item.ID)
	})

	for i := range entries {
		out[i] = entries[i].item
	}
	return out
}

func extract(field smartlist.SortField, it *library.Item, data Keys, col *collate.Collator, buf *collate.Buffer) sortKey {
	text := func(s string) []byte {
		k := col.KeyFromString(buf, s)
		// Keys alias buf, which is reset below; copy them out.
		return slices.Clone(k)
	}
	defer buf.Reset()

	switch field {
	case smartlist.SortName:
		return sortKey{text: text(it.Title())}
	case smartlist.SortNameIgnoreArticles:
		return sortKey{text: text(StripArticle(it.Title()))}
	case smartlist.SortSeriesName:
		return sortKey{text: text(it.SeriesName), nums: [2]float64{float64(it.SeasonNumber), float64(it.EpisodeNumber)}}
	case smartlist.SortProductionYear:
		return sortKey{nums: [2]float64{float64(it.ProductionYear)}}
	case smartlist.SortCommunityRating:
		return sortKey{nums: [2]float64{it.CommunityRating}}
	case smartlist.SortCriticRating:
		return sortKey{nums: [2]float64{it.CriticRating}}
	case smartlist.SortDateCreated:
		return sortKey{nums: [2]float64{unix(it.DateCreated)}}
	case smartlist.SortReleaseDate:
		return sortKey{nums: [2]float64{unix(it.ReleaseDate)}}
	case smartlist.SortRuntime:
		return sortKey{nums: [2]float64{it.Runtime.Seconds()}}
	case smartlist.SortPlayCount:
		return sortKey{nums: [2]float64{float64(data.ItemData(it.ID).PlayCount)}}
	case smartlist.SortLastPlayed:
		return sortKey{nums: [2]float64{unix(data.ItemData(it.ID).LastPlayed)}}
	case smartlist.SortTrackNumber:
		return sortKey{nums: [2]float64{float64(it.DiscNumber), float64(it.TrackNumber)}}
	case smartlist.SortEpisodeNumber:
		return sortKey{nums: [2]float64{float64(it.SeasonNumber), float64(it.EpisodeNumber)}}
	case smartlist.SortSimilarity:
		return sortKey{nums: [2]float64{data.Similarity(it)}}
	}
	return sortKey{}
}

// unix returns seconds since the epoch; the zero time sorts first.
func unix(t time.Time) float64 {
	if t.IsZero() {
		return -1 << 62
	}
	return float64(t.UnixNano()) / 1e9
}

var articles = []string{"the ", "a ", "an "}

// StripArticle removes one leading English article from a title.
func StripArticle(title string) string {
	t := strings.TrimSpace(title)
	lower := strings.ToLower(t)
	for _, a := range articles {
		if strings.HasPrefix(lower, a) && len(t) > len(a) {
			return strings.TrimSpace(t[len(a):])
		}
	}
	return t
}

// Limit truncates an ordered result to at most maxItems items and at most
// maxPlayTime of accumulated runtime. Zero disables a limit. The runtime limit
// stops at the first item that would exceed it.
func Limit(items []*library.Item, maxItems int, maxPlayTime time.Duration) []*library.Item {
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	if maxPlayTime <= 0 {
		return items
	}
	var total time.Duration
	for i, it := range items {
		total += it.Runtime
		if total > maxPlayTime {
			return items[:i]
		}
	}
	return items
}
