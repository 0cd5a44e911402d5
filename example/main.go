package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etlive/etlive"
	"github.com/etlive/etlive/example/mocknode"
)

func main() {
	mock := mocknode.New(slog.Default(), true)
	go func() {
		if err := http.ListenAndServe(":9999", mock.Handler()); err != nil {
			slog.Error("mock server error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	locations := map[string]string{
		"ET0001": "Zurich",
		"ET0002": "Bern",
		"ET0003": "Basel",
	}

	var nodes []etlive.Node
	for _, id := range []string{"ET0001", "ET0002", "ET0003"} {
		n, err := etlive.NewNode(id, fmt.Sprintf("http://localhost:9999/%s/api/last", id),
			etlive.WithLocation(locations[id]),
		)
		if err != nil {
			slog.Error("failed to create node", "error", err)
			os.Exit(1)
		}
		nodes = append(nodes, n)
	}

	svc, err := etlive.New(
		etlive.WithNodes(nodes...),
		etlive.WithPollInterval(time.Second),
		etlive.WithPollTimeout(2*time.Second),
		etlive.WithPort(8080),
		etlive.WithUpdateCallback(func(u etlive.NodeUpdate) {
			if !u.Online() {
				slog.Warn("node offline", "node", u.NodeID, "location", u.Location)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ET Live demo")
	fmt.Println()
	fmt.Println("  Dashboard: http://localhost:8080")
	fmt.Println("  API:       http://localhost:8080/api/data/all")
	fmt.Println("  Nodes:     3 mock nodes cycling healthy, no GPS, failing, hanging")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil && !errors.Is(err, etlive.ErrShutdownTimeout) {
		slog.Error("etlive error", "error", err)
		os.Exit(1)
	}
}
