// Standalone mock ET nodes for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/etlive serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/etlive/etlive/example/mocknode"
)

func main() {
	fmt.Println("Mock ET nodes listening on :9999")
	fmt.Println("GET /{node}/api/last, modes cycle: healthy → no_gps → failing → hanging")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := http.ListenAndServe(":9999", mocknode.New(logger, true).Handler()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
