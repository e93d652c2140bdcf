// Package rules evaluates smart list expressions against library items.
//
// Evaluation has three layers:
//
//   - Resolve maps a field of an item to a typed Value for an evaluation
//     context (owner, per-expression user override, auxiliary flags).
//   - ParseTarget and Evaluate apply one operator to a resolved value.
//   - Engine.Compile turns a SmartList into a Program whose Matches method is
//     the OR of its expression sets, each an AND of its expressions.
//
// A Program and its EvalContext are safe for concurrent use, so a refresh can
// fan out over partitions of the candidate set:
//
//	prog, err := engine.Compile(ctx, list)
//	ec := engine.NewContext(ctx, list.ID, owner, now)
//	for i := range items {
//		matched[i] = prog.Matches(ec, &items[i])
//	}
//
// Fields that do not apply to an item's media kind, unknown dates and
// unresolvable users make an expression false rather than failing the list.
// Targets that cannot be parsed disable their expression for the refresh and
// are reported once through the logger and Program.Disabled.
package rules
