// Package memory keeps the service inside its container memory budget.
//
// [Configure] derives the Go soft memory limit (GOMEMLIMIT) from the
// container limit handed in through MEMORY_LIMIT, typically populated by the
// Kubernetes Downward API:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.8"
//
// An explicit GOMEMLIMIT always takes precedence.
//
// [Monitor] samples heap usage against that limit. Once usage crosses the
// critical water mark, [Monitor.Wait] blocks new list refreshes until usage
// falls below the high water mark again. Refreshes already writing are not
// interrupted.
//
// # Metrics
//
//   - smartlists_memory_usage_ratio: heap allocation / limit
//   - smartlists_memory_paused: 1 while refreshes are held
//   - smartlists_memory_pauses_total: critical crossings
package memory
