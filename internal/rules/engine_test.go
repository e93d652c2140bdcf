package rules

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartlists/internal/library"
	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

func TestGenreAndUnplayedScenario(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	fx.lib.AddItems(movie("A", "Alpha", "Action", "Drama"), movie("B", "Beta", "Comedy"))

	l := list(smartlist.KindPlaylist, []smartlist.Expression{
		expr(smartlist.FieldGenres, smartlist.OpContains, "Action"),
		expr(smartlist.FieldIsPlayed, smartlist.OpEqual, "false"),
	})
	assert.Equal(t, []string{"A"}, fx.evaluate(t, l, "u1"))
}

func TestExpressionSetsAreOred(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	fx.lib.AddItems(movie("A", "Alpha", "Action", "Drama"), movie("B", "Beta", "Comedy"), movie("C", "Gamma", "Comedy"))

	l := list(smartlist.KindPlaylist,
		[]smartlist.Expression{expr(smartlist.FieldGenres, smartlist.OpContains, "Action")},
		[]smartlist.Expression{expr(smartlist.FieldGenres, smartlist.OpContains, "Comedy")},
	)
	l.ExpressionSets[1].Expressions = append(l.ExpressionSets[1].Expressions,
		expr(smartlist.FieldName, smartlist.OpNotEqual, "beta"))

	assert.Equal(t, []string{"A", "C"}, fx.evaluate(t, l, "u1"))
}

func TestEmptyExpressionSetNeverMatches(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	fx.lib.AddItems(movie("A", "Alpha", "Action"), library.Item{ID: "P", Kind: mediatypes.KindPhoto})

	assert.Empty(t, fx.evaluate(t, list(smartlist.KindPlaylist, []smartlist.Expression{}), "u1"))
	assert.Empty(t, fx.evaluate(t, list(smartlist.KindPlaylist), "u1"), "no sets at all")

	l := list(smartlist.KindPlaylist,
		[]smartlist.Expression{},
		[]smartlist.Expression{expr(smartlist.FieldName, smartlist.OpEqual, "alpha")},
	)
	assert.Equal(t, []string{"A"}, fx.evaluate(t, l, "u1"), "an empty set does not block other sets")
}

func TestNotApplicableFieldIsFalseEvenWhenNegated(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	fx.lib.AddItems(library.Item{ID: "P", Kind: mediatypes.KindPhoto, Name: "Beach"})

	l := list(smartlist.KindPlaylist, []smartlist.Expression{
		expr(smartlist.FieldRuntimeMinutes, smartlist.OpNotEqual, "5"),
	})
	assert.Empty(t, fx.evaluate(t, l, "u1"))
}

func TestBadRegexDisablesOnlyThatExpression(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	fx.lib.AddItems(movie("A", "Alpha", "Action"), movie("B", "Beta", "Comedy"))

	l := list(smartlist.KindPlaylist,
		[]smartlist.Expression{expr(smartlist.FieldName, smartlist.OpMatchRegex, "([")},
		[]smartlist.Expression{expr(smartlist.FieldGenres, smartlist.OpContains, "comedy")},
	)
	prog, err := fx.engine.Compile(context.Background(), l)
	require.NoError(t, err)
	require.Len(t, prog.Disabled(), 1)
	assert.Equal(t, 0, prog.Disabled()[0].Set)

	assert.Equal(t, []string{"B"}, fx.evaluate(t, l, "u1"))
}

func TestSelfReferenceGuard(t *testing.T) {
	affixes := smartlist.NameAffixes{Prefix: "[Smart] "}
	fx := newFixture(t, affixes)
	fx.lib.AddItems(
		library.Item{ID: "self", Kind: mediatypes.KindBoxSet, Name: "[Smart] Box Sets", Collections: []string{"Everything"}},
		library.Item{ID: "old", Kind: mediatypes.KindBoxSet, Name: "(Auto) Box Sets", SmartListID: "list", Collections: []string{"Everything"}},
		library.Item{ID: "other", Kind: mediatypes.KindBoxSet, Name: "Marvel", Collections: []string{"Everything"}},
	)

	l := list(smartlist.KindCollection, []smartlist.Expression{{
		Field: smartlist.FieldCollections, Operator: smartlist.OpContains, Value: "Everything",
		IncludeCollectionItself: true,
	}})
	l.Name = "box sets"

	assert.Equal(t, []string{"other"}, fx.evaluate(t, l, "u1"),
		"the list's own collection is excluded by name and by owning list id after a prefix change")

	l.Kind = smartlist.KindPlaylist
	l.ExpressionSets[0].Expressions[0].IncludeCollectionItself = false
	assert.Len(t, fx.evaluate(t, l, "u1"), 3, "playlists have no self to exclude")
}

func TestCollectionItselfMatchesBoxSetByName(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	fx.lib.AddItems(library.Item{ID: "b", Kind: mediatypes.KindBoxSet, Name: "Marvel"})

	l := list(smartlist.KindCollection, []smartlist.Expression{
		expr(smartlist.FieldCollections, smartlist.OpContains, "marvel"),
	})
	assert.Empty(t, fx.evaluate(t, l, "u1"))

	l.ExpressionSets[0].Expressions[0].IncludeCollectionItself = true
	assert.Equal(t, []string{"b"}, fx.evaluate(t, l, "u1"))
}

func TestSimilarTo(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	ref := library.Item{ID: "ref", Kind: mediatypes.KindMovie, Name: "Heat", Genres: []string{"Crime", "Thriller"}, People: []string{"Al Pacino"}}
	near := library.Item{ID: "near", Kind: mediatypes.KindMovie, Name: "Serpico", Genres: []string{"Crime"}, People: []string{"Al Pacino"}}
	far := library.Item{ID: "far", Kind: mediatypes.KindMovie, Name: "Up", Genres: []string{"Animation"}}
	fx.lib.AddItems(ref, near, far)

	l := list(smartlist.KindPlaylist, []smartlist.Expression{expr(smartlist.FieldSimilarTo, smartlist.OpEqual, "heat")})
	assert.Equal(t, []string{"near"}, fx.evaluate(t, l, "u1"))

	prog, err := fx.engine.Compile(context.Background(), l)
	require.NoError(t, err)
	assert.True(t, prog.HasSimilarity())
	assert.InDelta(t, 2.0/3.0, prog.Similarity(&near), 1e-9)
	assert.Zero(t, prog.Similarity(&far))

	missing := list(smartlist.KindPlaylist, []smartlist.Expression{expr(smartlist.FieldSimilarTo, smartlist.OpEqual, "Nope")})
	prog, err = fx.engine.Compile(context.Background(), missing)
	require.NoError(t, err)
	assert.Len(t, prog.Disabled(), 1)
}

func TestMultiOwnerEvaluation(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	fx.lib.AddItems(movie("A", "Alpha"), movie("B", "Beta"))
	fx.lib.SetUserData("u1", library.UserData{ItemID: "A", IsFavorite: true})
	fx.lib.SetUserData("u2", library.UserData{ItemID: "B", IsFavorite: true})

	l := list(smartlist.KindPlaylist, []smartlist.Expression{expr(smartlist.FieldIsFavorite, smartlist.OpEqual, "true")})
	assert.Equal(t, []string{"A"}, fx.evaluate(t, l, "u1"))
	assert.Equal(t, []string{"B"}, fx.evaluate(t, l, "u2"))
}

func TestProgramIsSafeForConcurrentUse(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	var items []library.Item
	for i := 0; i < 200; i++ {
		it := movie(string(rune('a'+i%26))+string(rune('0'+i/26)), "Movie", "Action")
		items = append(items, it)
		if i%2 == 0 {
			fx.lib.SetUserData("u1", library.UserData{ItemID: it.ID, Played: true})
		}
	}
	fx.lib.AddItems(items...)

	l := list(smartlist.KindPlaylist, []smartlist.Expression{
		expr(smartlist.FieldGenres, smartlist.OpContains, "action"),
		expr(smartlist.FieldIsPlayed, smartlist.OpEqual, "true"),
	})
	prog, err := fx.engine.Compile(context.Background(), l)
	require.NoError(t, err)
	ec := fx.context("u1")

	matched := make([]bool, len(items))
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(items); i += 4 {
				matched[i] = prog.Matches(ec, &items[i])
			}
		}(w)
	}
	wg.Wait()

	for i := range items {
		assert.Equal(t, i%2 == 0, matched[i], items[i].ID)
	}
}

func TestEngineMatchesConvenience(t *testing.T) {
	fx := newFixture(t, smartlist.NameAffixes{})
	a := movie("A", "Alpha", "Action")
	ok, err := fx.engine.Matches(context.Background(),
		list(smartlist.KindPlaylist, []smartlist.Expression{expr(smartlist.FieldGenres, smartlist.OpIsIn, "Horror;Action")}),
		&a, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}
