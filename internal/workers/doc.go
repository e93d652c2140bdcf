/*
Package workers provides utilities for determining worker pool sizes in
containerized environments.

# Overview

Rule evaluation during a list refresh is CPU-bound and embarrassingly parallel.
The refresh orchestrator sizes its per-list worker pool with Resolve:

	n := workers.Resolve(cfg.RefreshWorkers) // 0 = auto

An explicit positive value wins. A value of 1 evaluates items sequentially.
Zero asks for automatic sizing based on GOMAXPROCS, which Go 1.19+ sets from the
container CPU limit, unlike runtime.NumCPU which reports host CPUs:

	// Wrong: Returns 64 (host CPUs), ignores container limit
	workers := runtime.NumCPU()

	// Correct: Returns 2 (respects container limit in Go 1.19+)
	workers := runtime.GOMAXPROCS(0)

# Environment Variable Override

Automatic sizing respects the REFRESH_WORKERS environment variable:

	env:
	- name: REFRESH_WORKERS
	  value: "4"

# Thread Safety

All functions in this package are safe for concurrent use. They read from
runtime.GOMAXPROCS and environment variables, which are themselves thread-safe.
*/
package workers
