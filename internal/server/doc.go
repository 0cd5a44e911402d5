// Package server provides the HTTP layer of the collector.
//
// This package is internal and handles all HTTP concerns:
//
//   - Read API: JSON endpoints at "/api/data/all" and "/api/data/{node}"
//   - Server-Sent Events: live node updates at "/api/sse"
//   - Operations: Prometheus metrics at "/metrics", liveness at "/healthz"
//   - Front end: a static build directory or the embedded dashboard at "/"
//
// Node lookups are case-insensitive. When there is nothing to show (unknown
// node, node without a current value, or no nodes at all) the API answers
// 418 I'm a teapot, which front ends treat as "no data yet".
//
// Users of the etlive library should not need to interact with this package
// directly. The server is started by [etlive.Service.Start].
package server
