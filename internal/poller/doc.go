// Package poller collects measurements from ET nodes.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper that performs one bounded-time poll
//   - [PollError]: classified poll failure (timeout, connection, HTTP status, decode)
//   - [Scheduler]: periodic tick loop that admits at most one poll per node
//
// Poll failures never leave this package as errors: the scheduler downgrades
// them to an absent value in the cache and logs them.
package poller
