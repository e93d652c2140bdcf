// Package refresh coordinates list recomputation. It debounces change
// events, maps them to the lists they can affect, serializes refreshes per
// list, bounds concurrency across lists and evaluates items in parallel
// within one list before handing results to a library.Materializer.
package refresh
