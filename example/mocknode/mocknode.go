// Package mocknode serves fake ET node endpoints for demos and manual tests.
//
// Each node id is routed at /{id}/api/last and answers with a random
// measurement. Nodes drift between behaviours every 20-60 seconds: healthy,
// without GPS fix, failing with 500, and hanging past any sane poll timeout.
package mocknode

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/etlive/etlive/telemetry"
)

// Mode is the current behaviour of a mock node.
type Mode int

const (
	ModeHealthy Mode = iota
	ModeNoGPS
	ModeFailing
	ModeHanging
)

func (m Mode) String() string {
	switch m {
	case ModeHealthy:
		return "healthy"
	case ModeNoGPS:
		return "no_gps"
	case ModeFailing:
		return "failing"
	case ModeHanging:
		return "hanging"
	default:
		return "unknown"
	}
}

type nodeState struct {
	mode         Mode
	nextChangeAt time.Time
}

// Server holds the state of every mock node.
type Server struct {
	mu     sync.Mutex
	states map[string]*nodeState
	logger *slog.Logger
	cycle  bool
}

// New creates a mock server. When cycle is false every node stays healthy.
func New(logger *slog.Logger, cycle bool) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		states: make(map[string]*nodeState),
		logger: logger,
		cycle:  cycle,
	}
}

// Handler returns the routes of all mock nodes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/{node}/api/last", s.handleLast)
	return r
}

func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	id := strings.ToUpper(chi.URLParam(r, "node"))

	// small latency variance
	time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

	switch mode := s.modeOf(id); mode {
	case ModeFailing:
		http.Error(w, "sensor bus error", http.StatusInternalServerError)
		return
	case ModeHanging:
		select {
		case <-r.Context().Done():
		case <-time.After(time.Minute):
		}
		return
	default:
		resp := telemetry.LastDataResponse{Data: Sample(mode == ModeHealthy)}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.Error("failed to write response", "error", err)
		}
	}
}

func (s *Server) modeOf(id string) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if !ok {
		st = &nodeState{mode: ModeHealthy, nextChangeAt: nextChange()}
		s.states[id] = st
	}

	if s.cycle && time.Now().After(st.nextChangeAt) {
		old := st.mode
		st.mode = (st.mode + 1) % 4
		st.nextChangeAt = nextChange()
		s.logger.Info("mode change", "node", id, "from", old.String(), "to", st.mode.String())
	}
	return st.mode
}

func nextChange() time.Time {
	return time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
}

// Sample returns a plausible measurement stamped with the current time.
func Sample(gpsFix bool) telemetry.Measurement {
	ts := time.Now().UnixMilli()
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = rand.NormFloat64() * 0.01
	}

	m := telemetry.Measurement{
		Timestamp:  &ts,
		SampleRate: 100,
		Flags:      telemetry.Flags{HasGPSFix: gpsFix, IsClipping: rand.Intn(50) == 0},
		Samples:    samples,
	}
	if gpsFix {
		m.Latitude = 47.37 + rand.Float64()*0.01
		m.Longitude = 8.54 + rand.Float64()*0.01
		m.Elevation = 408 + rand.Float64()
		m.FixQuality = 1
	}
	return m
}
