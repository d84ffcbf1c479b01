// Package api provides the HTTP API for querying system state.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/arlstone/orrery/internal/engine"
	"github.com/arlstone/orrery/internal/persistence"
)

const maxSSEConns = 4

// Server serves the system state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Run      *engine.Runner
	DB       *persistence.DB
	Name     string // System name shown in status
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Active SSE connection count (atomic).
	sseConns int32
}

// Handler builds the full route table with CORS and rate limiting.
func (s *Server) Handler() http.Handler {
	limiter := NewIPLimiter(10, 20)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only observation).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/planets", s.handlePlanets)
	mux.HandleFunc("/api/v1/planet/", s.handlePlanetDetail)
	mux.HandleFunc("/api/v1/transfers", s.handleTransfers)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stats/history", s.handleStatsHistory)

	// SSE streaming endpoint.
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/command", s.adminOnly(s.handleCommand))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(RateLimitMiddleware(limiter, mux))
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	handler := s.Handler()
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no ORRERY_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.Sim.Mu.Lock()
	status := map[string]any{
		"name":             s.Name,
		"day":              s.Sim.Day,
		"sim_date":         engine.SimDate(s.Sim.Day),
		"alive":            s.Sim.AnyAlive(),
		"score":            s.Sim.Score,
		"population":       s.Sim.Stats.TotalPopulation,
		"alive_planets":    s.Sim.Stats.AlivePlanets,
		"dead_planets":     s.Sim.Stats.DeadPlanets,
		"active_transfers": s.Sim.Stats.ActiveTransfers,
	}
	s.Sim.Mu.Unlock()

	if s.Run != nil {
		status["speed"] = s.Run.Speed
		status["running"] = s.Run.Running
	}
	writeJSON(w, status)
}

func (s *Server) handlePlanets(w http.ResponseWriter, r *http.Request) {
	s.Sim.Mu.Lock()
	defer s.Sim.Mu.Unlock()

	result := make([]engine.PlanetReport, 0, len(s.Sim.Planets))
	for _, p := range s.Sim.Planets {
		result = append(result, s.Sim.Report(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	writeJSON(w, result)
}

// handlePlanetDetail serves GET /api/v1/planet/:name, with optional
// ?other=name for pair context (distance and net standing flow).
func (s *Server) handlePlanetDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "missing planet name", http.StatusBadRequest)
		return
	}
	name := parts[4]
	other := r.URL.Query().Get("other")

	s.Sim.Mu.Lock()
	rep, err := s.Sim.Inspect(name, other)
	s.Sim.Mu.Unlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, rep)
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	s.Sim.Mu.Lock()
	transfers := s.Sim.Ledger.Transfers()
	s.Sim.Mu.Unlock()

	writeJSON(w, transfers)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	s.Sim.Mu.Lock()
	events := append([]engine.Event(nil), s.Sim.Events...)
	s.Sim.Mu.Unlock()

	// Optional filters: exact category, or events mentioning a planet.
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if planetName := r.URL.Query().Get("planet"); planetName != "" {
		var filtered []engine.Event
		for _, e := range events {
			if strings.Contains(e.Description, planetName) {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}

	writeJSON(w, events[start:])
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.Sim.Mu.Lock()
	stats := s.Sim.Stats
	s.Sim.Mu.Unlock()

	writeJSON(w, stats)
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}

	from := uint64(0)
	if f := r.URL.Query().Get("from"); f != "" {
		if n, err := strconv.ParseUint(f, 10, 64); err == nil {
			from = n
		}
	}
	limit := 365
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 5000 {
			limit = n
		}
	}

	hist, err := s.DB.StatsHistory(from, limit)
	if err != nil {
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, hist)
}

// commandRequest is the envelope for POST /api/v1/command.
type commandRequest struct {
	Action     string  `json:"action"`
	Days       int     `json:"days,omitempty"`
	Resource   string  `json:"resource,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	From       string  `json:"from,omitempty"`
	To         string  `json:"to,omitempty"`
	Planet     string  `json:"planet,omitempty"`
	Other      string  `json:"other,omitempty"`
	TransferID string  `json:"transfer_id,omitempty"`
}

// handleCommand dispatches player commands. Invalid commands and
// out-of-range parameters come back as 400 with the reason; nothing in
// the simulation changes on a rejected command.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.Sim.Mu.Lock()
	defer s.Sim.Mu.Unlock()

	switch req.Action {
	case "advance":
		alive, err := s.Sim.Advance(req.Days)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"day":   s.Sim.Day,
			"alive": alive,
			"score": s.Sim.Score,
		})

	case "transfer":
		msg, err := s.Sim.SubmitTransfer(req.Resource, req.Amount, req.From, req.To)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]string{"message": msg})

	case "cancel_transfer":
		msg, err := s.Sim.CancelTransfer(req.TransferID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]string{"message": msg})

	case "inspect":
		rep, err := s.Sim.Inspect(req.Planet, req.Other)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, rep)

	default:
		http.Error(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
	}
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Run == nil {
		http.Error(w, "no runner attached", http.StatusServiceUnavailable)
		return
	}

	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.Run.SetSpeed(req.Speed); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Run.Speed})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "no database attached", http.StatusServiceUnavailable)
		return
	}

	s.Sim.Mu.Lock()
	defer s.Sim.Mu.Unlock()

	if err := s.DB.SaveState(s.Sim); err != nil {
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	if err := s.DB.Snapshot(s.Sim); err != nil {
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"day": s.Sim.Day, "snapshot": "stored"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Connection limit.
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	// SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe to events.
	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	// Send recent events as catch-up (last 50).
	s.Sim.Mu.Lock()
	events := s.Sim.RecentEvents(50)
	s.Sim.Mu.Unlock()
	for _, e := range events {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	// Stream loop with heartbeat.
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Category, data)
}
