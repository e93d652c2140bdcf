package rules

import (
	"context"
	"fmt"
	"time"

	"smartlists/internal/library"
	"smartlists/internal/logging"
	"smartlists/internal/mediatypes"
	"smartlists/internal/metrics"
	"smartlists/internal/smartlist"
)

// Engine compiles smart lists into Programs that decide item membership.
type Engine struct {
	catalog library.Catalog
	users   *library.UserCache
	affixes smartlist.NameAffixes
}

// NewEngine creates an engine reading from catalog and users. affixes are the
// configured collection name decorations used by the self-reference guard.
func NewEngine(catalog library.Catalog, users *library.UserCache, affixes smartlist.NameAffixes) *Engine {
	return &Engine{catalog: catalog, users: users, affixes: affixes}
}

// Disabled is an expression switched off for a refresh because its target
// could not be parsed.
type Disabled struct {
	Set        int
	Index      int
	Expression smartlist.Expression
	Err        error
}

func (d Disabled) String() string {
	return fmt.Sprintf("set %d expression %d (%s): %v", d.Set, d.Index, d.Expression, d.Err)
}

type compiled struct {
	expr     smartlist.Expression
	opts     ResolveOptions
	target   Target
	disabled bool
	similar  *similarity
}

// Program is a compiled list ready for concurrent evaluation. It is immutable
// after Compile.
type Program struct {
	list     *smartlist.SmartList
	sets     [][]compiled
	disabled []Disabled
	similar  []*similarity
	affixes  smartlist.NameAffixes
	selfName string
}

// Compile parses every expression target and loads SimilarTo reference
// items. A target that fails to parse disables only its expression. The
// returned error is reserved for catalog failures.
func (e *Engine) Compile(ctx context.Context, list *smartlist.SmartList) (*Program, error) {
	p := &Program{
		list:     list,
		affixes:  e.affixes,
		selfName: e.affixes.Normalize(list.Name),
	}

	for si, set := range list.ExpressionSets {
		compiledSet := make([]compiled, 0, len(set.Expressions))
		for ei, expr := range set.Expressions {
			c := compiled{
				expr: expr,
				opts: ResolveOptions{UserID: expr.UserID, Flags: expr.Flags()},
			}

			var err error
			if expr.Field == smartlist.FieldSimilarTo {
				var refs []library.Item
				refs, err = e.catalog.FindByName(ctx, expr.Value, expr.Operator == smartlist.OpEqual)
				if err != nil {
					return nil, fmt.Errorf("loading SimilarTo references for %q: %w", expr.Value, err)
				}
				if len(refs) == 0 {
					err = fmt.Errorf("no item named %q", expr.Value)
				} else {
					c.similar = newSimilarity(refs)
					p.similar = append(p.similar, c.similar)
				}
			} else {
				c.target, err = ParseTarget(expr.Field.Type(), expr.Operator, expr.Value)
			}

			if err != nil {
				c.disabled = true
				d := Disabled{Set: si, Index: ei, Expression: expr, Err: err}
				p.disabled = append(p.disabled, d)
				metrics.DisabledExpressionsTotal.WithLabelValues(string(expr.Operator)).Inc()
				logging.Warn("List %s: disabling %s", list.ID, d)
			}
			compiledSet = append(compiledSet, c)
		}
		p.sets = append(p.sets, compiledSet)
	}
	return p, nil
}

// List returns the definition the program was compiled from.
func (p *Program) List() *smartlist.SmartList { return p.list }

// Disabled returns the expressions switched off during compilation.
func (p *Program) Disabled() []Disabled { return p.disabled }

// HasSimilarity reports whether the program can score items by similarity.
func (p *Program) HasSimilarity() bool { return len(p.similar) > 0 }

// Similarity returns the best SimilarTo score of the item, 0 without
// SimilarTo expressions.
func (p *Program) Similarity(it *library.Item) float64 {
	best := 0.0
	for _, s := range p.similar {
		if sc := s.score(it); sc > best {
			best = sc
		}
	}
	return best
}

// Matches reports whether any expression set matches the item. Sets are
// AND-groups evaluated with short-circuiting; an empty set never matches.
func (p *Program) Matches(ec *EvalContext, it *library.Item) bool {
	if p.isSelf(it) {
		return false
	}
	for _, set := range p.sets {
		if len(set) > 0 && p.matchSet(ec, it, set) {
			return true
		}
	}
	return false
}

func (p *Program) matchSet(ec *EvalContext, it *library.Item, set []compiled) bool {
	for i := range set {
		if !p.matchExpression(ec, it, &set[i]) {
			return false
		}
	}
	return true
}

func (p *Program) matchExpression(ec *EvalContext, it *library.Item, c *compiled) bool {
	if c.disabled {
		return false
	}
	if c.similar != nil {
		return c.similar.matches(it)
	}
	v, ok := Resolve(ec, it, c.expr.Field, c.opts)
	if !ok {
		return false
	}
	return Evaluate(c.expr.Operator, v, c.target, ec.now)
}

// isSelf reports whether it is the collection object the list materializes
// into, identified by the owning list id or by normalized name.
func (p *Program) isSelf(it *library.Item) bool {
	if !p.list.IsCollection() || it.Kind != mediatypes.KindBoxSet {
		return false
	}
	if it.SmartListID != "" && it.SmartListID == p.list.ID {
		return true
	}
	return p.affixes.Normalize(it.Name) == p.selfName
}

// Matches compiles list and evaluates one item for userID at the current
// time. Refreshes compile once and reuse the Program instead.
func (e *Engine) Matches(ctx context.Context, list *smartlist.SmartList, it *library.Item, userID string) (bool, error) {
	p, err := e.Compile(ctx, list)
	if err != nil {
		return false, err
	}
	ec := e.NewContext(ctx, list.ID, userID, time.Now())
	return p.Matches(ec, it), nil
}
