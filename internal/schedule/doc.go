// Package schedule computes when recurring list refreshes are due and emits
// them through a callback.
//
// NextFireTime is a pure function. Scheduler keeps one long-lived timer
// pointed at the earliest registered entry; Sync is called whenever the list
// definitions are reloaded, and disabled lists drop out of it.
package schedule
