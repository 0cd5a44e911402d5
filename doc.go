// Package etlive collects live telemetry from ET sensor nodes and serves the
// latest measurement of each node over HTTP.
//
// A [Service] polls every configured node on a fixed interval, keeps the most
// recent successful measurement per node in memory, and exposes it through a
// small read API. A node whose last poll failed is reported offline; there is
// no history, retry or backoff.
//
// # Quick Start
//
//	node, _ := etlive.NewNode("ET0001", "http://10.0.0.1/api/last",
//	    etlive.WithLocation("Zurich"),
//	)
//	svc, _ := etlive.New(etlive.WithNode(node))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	svc.Start(ctx) // blocks until context is cancelled
//
// # Collection
//
// Each tick starts one poll per node, except for nodes whose previous poll is
// still running: those are skipped for that tick. A slow or hanging node
// therefore never accumulates requests and never delays other nodes. Every
// completed poll replaces the node's cached value as a whole, with either the
// decoded measurement or nothing.
//
// # Read API
//
//   - GET /api/data/all: {"data": [entry...]} for every node
//   - GET /api/data/{node}: one entry; the node id is case-insensitive
//   - GET /api/sse: stream of entries as nodes are updated
//
// An entry is {"node_id", "status", "location", "last_update", "data"}, with
// status "online" or "offline". When there is nothing to show the API answers
// 418 I'm a teapot.
//
// # Architecture
//
// The service consists of several internal packages (under internal/):
//
//   - internal/registry: immutable node set
//   - internal/poller: poll client and tick scheduler
//   - internal/gate: one-in-flight admission per node
//   - internal/cache: concurrent latest-value store with pub/sub
//   - internal/readapi: public node view over the cache
//   - internal/server: chi HTTP layer, SSE, metrics endpoint
//   - internal/relay: optional NATS publisher
//   - internal/shutdown: signal handling and bounded graceful stop
//
// The internal packages are not part of the public API and may change
// without notice.
package etlive
