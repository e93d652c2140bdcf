package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartlists/internal/library"
	"smartlists/internal/library/librarytest"
	"smartlists/internal/mediatypes"
	"smartlists/internal/smartlist"
)

var evalNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	lib    *librarytest.Library
	engine *Engine
}

func newFixture(t *testing.T, affixes smartlist.NameAffixes) *fixture {
	t.Helper()
	lib := librarytest.New()
	lib.AddUser(library.User{ID: "u1", Name: "Alice"})
	lib.AddUser(library.User{ID: "u2", Name: "Bob"})
	return &fixture{
		lib:    lib,
		engine: NewEngine(lib, library.NewUserCache(lib), affixes),
	}
}

func (f *fixture) context(userID string) *EvalContext {
	return f.engine.NewContext(context.Background(), "test", userID, evalNow)
}

// evaluate returns the ids of the catalog items matching list for userID.
func (f *fixture) evaluate(t *testing.T, list *smartlist.SmartList, userID string) []string {
	t.Helper()
	prog, err := f.engine.Compile(context.Background(), list)
	require.NoError(t, err)
	items, err := f.lib.Items(context.Background(), list.MediaTypes)
	require.NoError(t, err)

	ec := f.context(userID)
	var ids []string
	for i := range items {
		if prog.Matches(ec, &items[i]) {
			ids = append(ids, items[i].ID)
		}
	}
	return ids
}

func list(kind smartlist.ListKind, sets ...[]smartlist.Expression) *smartlist.SmartList {
	l := smartlist.New()
	l.ID = "list"
	l.Name = "Test List"
	l.Kind = kind
	l.UserID = "u1"
	for _, exprs := range sets {
		l.ExpressionSets = append(l.ExpressionSets, smartlist.ExpressionSet{Expressions: exprs})
	}
	return l
}

func expr(field smartlist.Field, op smartlist.Operator, value string) smartlist.Expression {
	return smartlist.Expression{Field: field, Operator: op, Value: value}
}

func movie(id, name string, genres ...string) library.Item {
	return library.Item{ID: id, Kind: mediatypes.KindMovie, Name: name, Genres: genres}
}
