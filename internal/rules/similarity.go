package rules

import (
	"smartlists/internal/library"
)

// SimilarityThreshold is the minimum overlap score for a SimilarTo match.
const SimilarityThreshold = 0.2

// similarity holds the reference items of one SimilarTo expression.
type similarity struct {
	refs     map[string]bool
	features []map[string]struct{}
}

func newSimilarity(refs []library.Item) *similarity {
	s := &similarity{refs: make(map[string]bool, len(refs))}
	for i := range refs {
		s.refs[refs[i].ID] = true
		s.features = append(s.features, features(&refs[i]))
	}
	return s
}

// features is the case-folded union of genres, tags, studios and people,
// prefixed by category so a genre never matches a tag of the same name.
func features(it *library.Item) map[string]struct{} {
	f := make(map[string]struct{})
	add := func(prefix string, values []string) {
		for _, v := range values {
			f[prefix+fold(v)] = struct{}{}
		}
	}
	add("g:", it.Genres)
	add("t:", it.Tags)
	add("s:", it.Studios)
	add("p:", it.People)
	return f
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for k := range a {
		if _, ok := b[k]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// score returns the best overlap between it and any reference item.
func (s *similarity) score(it *library.Item) float64 {
	if len(s.features) == 0 {
		return 0
	}
	f := features(it)
	best := 0.0
	for _, ref := range s.features {
		if sc := jaccard(f, ref); sc > best {
			best = sc
		}
	}
	return best
}

func (s *similarity) matches(it *library.Item) bool {
	return !s.refs[it.ID] && s.score(it) >= SimilarityThreshold
}
