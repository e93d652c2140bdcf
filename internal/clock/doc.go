// Package clock provides the time source used by the debouncer and the
// scheduler. Production code uses Real; tests drive a Fake forward explicitly.
package clock
