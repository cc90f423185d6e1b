// Package reactor provides the readiness loop that drives all stream I/O.
//
// A single goroutine polls registered file descriptors and invokes the
// callbacks attached to them. Everything registered with a Reactor runs on
// that goroutine, so callbacks never need their own locking against each
// other. Code outside the loop talks to it through Submit, which schedules
// a function on the loop and wakes it up.
//
// The package also provides Promise, a single-assignment value usable
// across the loop boundary: a callback resolves it, any goroutine awaits it.
package reactor
