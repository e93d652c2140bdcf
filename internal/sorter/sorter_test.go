package sorter

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"smartlists/internal/library"
	"smartlists/internal/smartlist"
)

type fakeKeys struct {
	data  map[string]library.UserData
	score map[string]float64
}

func (f fakeKeys) ItemData(id string) library.UserData  { return f.data[id] }
func (f fakeKeys) Similarity(it *library.Item) float64 { return f.score[it.ID] }

func ids(items []*library.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func ptrs(items ...library.Item) []*library.Item {
	out := make([]*library.Item, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}

func key(f smartlist.SortField, o smartlist.SortOrder) smartlist.SortKey {
	return smartlist.SortKey{Field: f, Order: o}
}

func TestOrderByName(t *testing.T) {
	items := ptrs(
		library.Item{ID: "1", Name: "zebra"},
		library.Item{ID: "2", Name: "Apple"},
		library.Item{ID: "3", Name: "The Matrix", SortName: "Matrix"},
		library.Item{ID: "4", Name: "Episode 10"},
		library.Item{ID: "5", Name: "Episode 9"},
	)
	got := New().Order(items, []smartlist.SortKey{key(smartlist.SortName, smartlist.Ascending)}, nil)
	assert.Equal(t, []string{"2", "5", "4", "3", "1"}, ids(got))
	assert.Equal(t, "1", items[0].ID, "input is not modified")
}

func TestOrderIgnoreArticles(t *testing.T) {
	items := ptrs(
		library.Item{ID: "the", Name: "The Birds"},
		library.Item{ID: "an", Name: "An Affair"},
		library.Item{ID: "c", Name: "Casablanca"},
		library.Item{ID: "a", Name: "A"},
	)
	got := New().Order(items, []smartlist.SortKey{key(smartlist.SortNameIgnoreArticles, smartlist.Ascending)}, nil)
	assert.Equal(t, []string{"a", "an", "the", "c"}, ids(got))
}

func TestOrderFallsThroughAndBreaksTiesByID(t *testing.T) {
	items := ptrs(
		library.Item{ID: "d", ProductionYear: 2000, CommunityRating: 7},
		library.Item{ID: "c", ProductionYear: 2001, CommunityRating: 5},
		library.Item{ID: "b", ProductionYear: 2000, CommunityRating: 9},
		library.Item{ID: "a", ProductionYear: 2000, CommunityRating: 7},
	)
	got := New().Order(items, []smartlist.SortKey{
		key(smartlist.SortProductionYear, smartlist.Ascending),
		key(smartlist.SortCommunityRating, smartlist.Descending),
	}, nil)
	assert.Equal(t, []string{"b", "a", "d", "c"}, ids(got))
}

func TestOrderIsDeterministic(t *testing.T) {
	var items []library.Item
	for i := 0; i < 50; i++ {
		items = append(items, library.Item{ID: string(rune('A' + i)), Name: []string{"x", "y"}[i%2], ProductionYear: 2000 + i%3})
	}
	keys := []smartlist.SortKey{key(smartlist.SortName, smartlist.Descending), key(smartlist.SortProductionYear, smartlist.Ascending)}
	s := New()

	first := ids(s.Order(ptrs(items...), keys, nil))
	rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	second := ids(s.Order(ptrs(items...), keys, nil))
	assert.Equal(t, first, second)
}

func TestOrderUserAndSimilarityKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := ptrs(library.Item{ID: "a"}, library.Item{ID: "b"}, library.Item{ID: "c"})
	keys := fakeKeys{
		data: map[string]library.UserData{
			"a": {PlayCount: 1, LastPlayed: now},
			"b": {PlayCount: 5, LastPlayed: now.Add(-time.Hour)},
		},
		score: map[string]float64{"a": 0.3, "b": 0.9, "c": 0.5},
	}
	s := New()

	assert.Equal(t, []string{"b", "a", "c"}, ids(s.Order(items, []smartlist.SortKey{key(smartlist.SortPlayCount, smartlist.Descending)}, keys)))
	assert.Equal(t, []string{"c", "b", "a"}, ids(s.Order(items, []smartlist.SortKey{key(smartlist.SortLastPlayed, smartlist.Ascending)}, keys)))
	assert.Equal(t, []string{"b", "c", "a"}, ids(s.Order(items, []smartlist.SortKey{key(smartlist.SortSimilarity, smartlist.Descending)}, keys)))
}

func TestOrderEpisodeTuple(t *testing.T) {
	items := ptrs(
		library.Item{ID: "s2e1", SeasonNumber: 2, EpisodeNumber: 1},
		library.Item{ID: "s1e10", SeasonNumber: 1, EpisodeNumber: 10},
		library.Item{ID: "s1e2", SeasonNumber: 1, EpisodeNumber: 2},
	)
	got := New().Order(items, []smartlist.SortKey{key(smartlist.SortEpisodeNumber, smartlist.Ascending)}, nil)
	assert.Equal(t, []string{"s1e2", "s1e10", "s2e1"}, ids(got))
}

func TestOrderNoOrderAndRandom(t *testing.T) {
	items := ptrs(library.Item{ID: "c"}, library.Item{ID: "a"}, library.Item{ID: "b"}, library.Item{ID: "d"})

	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(New().Order(items, []smartlist.SortKey{{Field: smartlist.SortNoOrder}}, nil)))
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(New().Order(items, nil, nil)))

	seeded := New(WithRand(func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }))
	got := ids(seeded.Order(items, []smartlist.SortKey{{Field: smartlist.SortRandom}}, nil))
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, got)
	assert.Equal(t, got, ids(seeded.Order(items, []smartlist.SortKey{{Field: smartlist.SortRandom}}, nil)), "same seed, same permutation")
}

func TestStripArticle(t *testing.T) {
	assert.Equal(t, "Matrix", StripArticle("The Matrix"))
	assert.Equal(t, "Apple", StripArticle("an Apple"))
	assert.Equal(t, "Theory", StripArticle("Theory"))
	assert.Equal(t, "A", StripArticle("A"))
}

func TestLimit(t *testing.T) {
	items := ptrs(
		library.Item{ID: "a", Runtime: 30 * time.Minute},
		library.Item{ID: "b", Runtime: 40 * time.Minute},
		library.Item{ID: "c", Runtime: 20 * time.Minute},
	)
	assert.Equal(t, []string{"a", "b", "c"}, ids(Limit(items, 0, 0)))
	assert.Equal(t, []string{"a", "b"}, ids(Limit(items, 2, 0)))
	assert.Equal(t, []string{"a", "b"}, ids(Limit(items, 0, 70*time.Minute)))
	assert.Equal(t, []string{"a"}, ids(Limit(items, 0, 69*time.Minute)))
	assert.Empty(t, Limit(items, 0, time.Minute))
}
