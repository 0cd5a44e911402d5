package etlive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testBody = `{"data":{"timestamp":1700000000,"sample_rate":100,"flags":{"has_gps_fix":true,"is_clipping":false},"latitude":52.1,"longitude":4.3,"elevation":12.5,"speed":0,"angle":0,"fix":1,"data":[0.1,0.2,0.3]}}`

func newTelemetryServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testBody))
	}))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStart_BlocksUntilContextCancelled verifies that Start blocks until the
// provided context is cancelled.
func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	ts := newTelemetryServer()
	defer ts.Close()

	svc, err := New(
		WithNode(mustNode(t, "ET0001", ts.URL)),
		WithPort(19001),
		WithPollInterval(100*time.Millisecond),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

// TestStart_ReturnsImmediatelyIfContextAlreadyCancelled verifies that Start
// returns immediately if the context is already cancelled.
func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	svc, err := New(
		WithNode(mustNode(t, "ET0001", "http://127.0.0.1:1")),
		WithPort(19002),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return immediately with cancelled context")
	}
}

// TestStart_WithTimeout verifies that Start returns when a context with a
// deadline expires.
func TestStart_WithTimeout(t *testing.T) {
	ts := newTelemetryServer()
	defer ts.Close()

	svc, err := New(
		WithNode(mustNode(t, "ET0001", ts.URL)),
		WithPort(19003),
		WithPollInterval(50*time.Millisecond),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := svc.Start(ctx); err != nil {
		t.Errorf("Start() returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Start() took %v, want around 200ms", elapsed)
	}
}

// TestStart_ServesLatestMeasurement runs the full service against a fake node
// and reads it back through the HTTP API.
func TestStart_ServesLatestMeasurement(t *testing.T) {
	ts := newTelemetryServer()
	defer ts.Close()

	svc, err := New(
		WithNodes(
			mustNode(t, "ET0001", ts.URL, WithLocation("Zurich")),
			mustNode(t, "ET0002", "http://127.0.0.1:1"),
		),
		WithPort(19004),
		WithPollInterval(50*time.Millisecond),
		WithPollTimeout(200*time.Millisecond),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	url := "http://127.0.0.1:19004/api/data/et0001"
	deadline := time.Now().Add(3 * time.Second)
	var status int
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			status = resp.StatusCode
			_ = resp.Body.Close()
			if status == http.StatusOK {
				break
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	if status != http.StatusOK {
		t.Fatalf("GET %s status = %d, want %d", url, status, http.StatusOK)
	}

	resp, err := http.Get("http://127.0.0.1:19004/api/data/nope")
	if err != nil {
		t.Fatalf("GET unknown node: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("unknown node status = %d, want %d", resp.StatusCode, http.StatusTeapot)
	}
}

// TestStart_HangingNodeBoundedByShutdownTimeout verifies that a node that
// never answers does not hold shutdown beyond the grace period.
func TestStart_HangingNodeBoundedByShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer hang.Close()
	defer close(release)

	svc, err := New(
		WithNode(mustNode(t, "ET0001", hang.URL)),
		WithPort(19005),
		WithPollTimeout(10*time.Second),
		WithShutdownTimeout(200*time.Millisecond),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = svc.Start(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrShutdownTimeout) {
		t.Errorf("Start() error = %v, want ErrShutdownTimeout", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Start() took %v, shutdown was not bounded", elapsed)
	}
}

// TestStart_PortInUse verifies that Start fails when the port is taken.
func TestStart_PortInUse(t *testing.T) {
	blocker := &http.Server{Addr: fmt.Sprintf(":%d", 19006)}
	go func() { _ = blocker.ListenAndServe() }()
	defer blocker.Close()
	time.Sleep(50 * time.Millisecond)

	svc, err := New(
		WithNode(mustNode(t, "ET0001", "http://127.0.0.1:1")),
		WithPort(19006),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := svc.Start(ctx); err == nil {
		t.Error("Start() expected error for port in use, got nil")
	}
}

// TestStart_NATSUnreachable verifies that a configured but unreachable NATS
// server aborts Start.
func TestStart_NATSUnreachable(t *testing.T) {
	svc, err := New(
		WithNode(mustNode(t, "ET0001", "http://127.0.0.1:1")),
		WithPort(19007),
		WithNATS("nats://127.0.0.1:1", ""),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.Start(ctx); err == nil {
		t.Error("Start() expected error for unreachable NATS, got nil")
	}
}
