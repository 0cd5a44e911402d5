// Package cache holds the latest known measurement for every configured node.
//
// The cache is created with the complete set of node ids and never gains or
// loses keys afterward; only values are replaced. A node whose last poll
// failed, timed out, or has not completed yet maps to an absent value, which
// readers must distinguish from a measurement with timestamp 0.
//
// The main components are:
//
//   - [Store]: read side used by the HTTP layer and the relay
//   - [Writer]: write side used by the poll scheduler
//   - [MemoryCache]: lock-free in-memory implementation of both, with pub/sub
//   - [Entry]: one node's cached value
//
// Each node's entry lives in its own atomic slot, so a write to one node never
// blocks readers or writers of another node, and readers always observe a
// complete entry. Subscribers receive every write through buffered channels
// with non-blocking sends (slow subscribers miss updates rather than stall
// the pollers).
package cache
