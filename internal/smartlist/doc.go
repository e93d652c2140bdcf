// Package smartlist defines the smart list model: lists, expression sets,
// expressions, sort keys and schedules, together with the closed field and
// operator tables that decide which combinations are valid.
//
// # Fields
//
// Every Field has a FieldType, and the FieldType fixes the operators an
// expression may use. The table is closed: adding a field means adding a row
// to fieldTable, and a missing row is caught by the package tests.
//
//	f, _ := smartlist.ParseField("genre") // FieldGenres
//	f.Type()                              // TypeStringSet
//	f.Allows(smartlist.OpContains)        // true
//
// # Validation
//
// Definitions are checked once, when they are loaded, with SmartList.Validate.
// Every problem is reported at once; use ValidationErrors to list them.
// Evaluation assumes a validated definition.
package smartlist
