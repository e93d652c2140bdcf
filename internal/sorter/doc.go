// Package sorter orders the items a smart list matched and applies the
// list's item count and play time limits.
//
// Titles are compared with golang.org/x/text/collate (case-insensitive,
// numeric aware), honoring an item's explicit sort name. The NameIgnoreArticles
// key drops a leading "The", "A" or "An". Every chain ends with an item id
// tie-break, so ordering is reproducible across runs.
package sorter
