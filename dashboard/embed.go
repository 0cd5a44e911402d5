// Package dashboard provides the embedded front end for the collector.
//
// The page polls /api/data/all and shows one card per node: ONLINE when the
// node has a current value with a GPS fix, NO GPS when it has a value but no
// fix, OFFLINE otherwise. It is served at "/" when no static build
// directory is configured.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - single page with inline CSS and JavaScript
//
// The page contains a {{.Title}} placeholder substituted by the server.
//
//go:embed assets/*
var Assets embed.FS
