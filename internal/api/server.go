// Package api provides the HTTP API for observing the colony simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/starcolony/internal/buildings"
	"github.com/talgya/starcolony/internal/colony"
	"github.com/talgya/starcolony/internal/config"
	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/empire"
	"github.com/talgya/starcolony/internal/engine"
	"github.com/talgya/starcolony/internal/metrics"
	"github.com/talgya/starcolony/internal/persistence"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB  // Optional; enables snapshot endpoints
	Metrics  *metrics.Metrics // Optional; serves /metrics
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Limits every endpoint per client IP. Nil uses 10 req/s with a burst of 20.
	Limiter *RateLimiter

	srv *http.Server
}

// Handler builds the routed, rate-limited handler.
func (s *Server) Handler() http.Handler {
	if s.Limiter == nil {
		s.Limiter = NewRateLimiter(10, 20)
	}
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/empires", s.handleEmpires)
	mux.HandleFunc("/api/v1/colonies", s.handleColonies)
	mux.HandleFunc("/api/v1/colony/", s.handleColonyDetail)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/v1/stream", s.handleStream)
	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics.Handler())
	}

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))
	mux.HandleFunc("/api/v1/rebellion/resolve", s.adminOnly(s.handleResolveRebellion))
	mux.HandleFunc("/api/v1/intervention", s.adminOnly(s.handleIntervention))

	return corsMiddleware(RateLimitMiddleware(s.Limiter, mux))
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	h := s.Handler()
	s.srv = &http.Server{Addr: s.Addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "", "metrics", s.Metrics != nil)

	go func() {
		for range time.Tick(10 * time.Minute) {
			s.Limiter.Cleanup(time.Hour)
		}
	}()
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Close stops the listener.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
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
				http.Error(w, "admin endpoints disabled (no "+config.AdminKeyEnv+" set)", http.StatusForbidden)
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
	stats := s.Sim.Stats()
	status := map[string]any{
		"name":       "starcolony",
		"turn":       s.Sim.CurrentTurn(),
		"empires":    len(s.Sim.Empires),
		"colonies":   stats.Colonies,
		"population": stats.Population,
		"catalog":    s.Sim.Catalog.Digest(),
		"watchers":   s.Sim.Subscribers(),
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Stats())
}

// colonySummary is the list view of a colony.
type colonySummary struct {
	ID             colony.ID      `json:"id"`
	EmpireID       uint64         `json:"empire_id"`
	Name           string         `json:"name"`
	Species        string         `json:"species"`
	Type           colony.Type    `json:"type"`
	Status         colony.Status  `json:"status"`
	Population     int            `json:"population"`
	Morale         int            `json:"morale"`
	Stability      int            `json:"stability"`
	Loyalty        int            `json:"loyalty"`
	Habitability   int            `json:"habitability"`
	Infrastructure int            `json:"infrastructure"`
	Buildings      int            `json:"buildings"`
	Stockpile      economy.Bundle `json:"stockpile"`
}

func summarize(st colony.State) colonySummary {
	pop := 0
	for _, p := range st.Pops {
		pop += p.Size
	}
	return colonySummary{
		ID:             st.ID,
		EmpireID:       st.EmpireID,
		Name:           st.Name,
		Species:        st.Species,
		Type:           st.Type,
		Status:         st.Status,
		Population:     pop,
		Morale:         st.Morale,
		Stability:      st.Stability,
		Loyalty:        st.Loyalty,
		Habitability:   st.Habitability,
		Infrastructure: st.Infrastructure,
		Buildings:      len(st.Buildings),
		Stockpile:      st.Stockpile,
	}
}

func (s *Server) handleEmpires(w http.ResponseWriter, r *http.Request) {
	type empireSummary struct {
		ID         uint64 `json:"id"`
		Name       string `json:"name"`
		Colonies   int    `json:"colonies"`
		Population int    `json:"population"`
	}
	out := make([]empireSummary, 0, len(s.Sim.Empires))
	for _, e := range s.Sim.Empires {
		es := empireSummary{ID: e.ID, Name: e.Name}
		for _, st := range e.Manager.Snapshot() {
			es.Colonies++
			es.Population += summarize(st).Population
		}
		out = append(out, es)
	}
	writeJSON(w, out)
}

func (s *Server) handleColonies(w http.ResponseWriter, r *http.Request) {
	var empireFilter uint64
	if v := r.URL.Query().Get("empire"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid empire id", http.StatusBadRequest)
			return
		}
		empireFilter = id
	}
	out := []colonySummary{}
	for _, st := range s.Sim.States() {
		if empireFilter != 0 && st.EmpireID != empireFilter {
			continue
		}
		out = append(out, summarize(st))
	}
	writeJSON(w, out)
}

// handleColonyDetail serves GET /api/v1/colony/{id} with the full colony state.
func (s *Server) handleColonyDetail(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/colony/")
	id, err := strconv.ParseUint(strings.Trim(raw, "/"), 10, 64)
	if err != nil {
		http.Error(w, "invalid colony id", http.StatusBadRequest)
		return
	}
	st, err := s.Sim.Colony(colony.ID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"summary": summarize(st),
		"state":   st,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(0)

	// Optional filters.
	q := r.URL.Query()
	if v := q.Get("colony"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid colony id", http.StatusBadRequest)
			return
		}
		events = filterEvents(events, func(e engine.Event) bool { return e.ColonyID == colony.ID(id) })
	}
	if kind := q.Get("kind"); kind != "" {
		events = filterEvents(events, func(e engine.Event) bool { return string(e.Kind) == kind })
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func filterEvents(in []engine.Event, keep func(engine.Event) bool) []engine.Event {
	out := []engine.Event{}
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	snaps, err := s.DB.Snapshots()
	if err != nil {
		slog.Error("list snapshots failed", "error", err)
		http.Error(w, "snapshot listing failed", http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []persistence.Snapshot{}
	}
	resp := map[string]any{"snapshots": snaps}
	if r.URL.Query().Get("verify") == "1" {
		verr := s.DB.VerifyChain()
		resp["verified"] = verr == nil
		if verr != nil {
			resp["error"] = verr.Error()
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
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
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	turn := s.Sim.CurrentTurn()
	snap, err := s.DB.SaveSnapshot(turn, s.Sim.States())
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"turn":    turn,
		"hash":    snap.Hash,
		"message": "snapshot saved",
	})
}

func (s *Server) handleResolveRebellion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Colony    colony.ID `json:"colony"`
		Stability int       `json:"stability"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.Sim.ResolveRebellion(req.Colony, req.Stability); err != nil {
		writeError(w, err)
		return
	}
	st, err := s.Sim.Colony(req.Colony)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("rebellion resolved", "colony", req.Colony, "stability", st.Stability)
	writeJSON(w, map[string]any{"success": true, "colony": summarize(st)})
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Type        string    `json:"type"`
		Colony      colony.ID `json:"colony"`
		Destination colony.ID `json:"destination,omitempty"`
		Count       int       `json:"count,omitempty"`
		Forced      bool      `json:"forced,omitempty"`
		Amount      int       `json:"amount,omitempty"`
		Orbital     bool      `json:"orbital,omitempty"`
		Building    string    `json:"building,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case "migrate":
		moved, err := s.Sim.Migrate(req.Colony, req.Destination, req.Count, req.Forced)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "moved": moved})

	case "attack":
		if req.Amount <= 0 {
			http.Error(w, "positive amount required for attack type", http.StatusBadRequest)
			return
		}
		rep, err := s.Sim.Attack(req.Colony, req.Amount, req.Orbital)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "report": rep})

	case "construct":
		if req.Building == "" {
			http.Error(w, "building required for construct type", http.StatusBadRequest)
			return
		}
		b, err := s.Sim.Construct(req.Colony, buildings.Type(req.Building))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "building": b})

	case "abandon":
		if err := s.Sim.Abandon(req.Colony); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "details": fmt.Sprintf("colony %d abandoned", req.Colony)})

	default:
		http.Error(w, fmt.Sprintf("unknown intervention type %q", req.Type), http.StatusBadRequest)
		return
	}
	slog.Info("intervention applied", "type", req.Type, "colony", req.Colony)
}

// writeError maps simulation errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var prereq *buildings.PrerequisiteError
	switch {
	case errors.Is(err, empire.ErrColonyNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, buildings.ErrUnknownType), errors.Is(err, empire.ErrInvalidCount),
		errors.Is(err, empire.ErrSameColony):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &prereq),
		errors.Is(err, colony.ErrNotInRebellion),
		errors.Is(err, colony.ErrAbandoned),
		errors.Is(err, colony.ErrUniqueBuilding),
		errors.Is(err, colony.ErrNoBuildingSlots),
		errors.Is(err, colony.ErrInsufficientFunds),
		errors.Is(err, empire.ErrSourceFloor),
		errors.Is(err, empire.ErrDestinationFull),
		errors.Is(err, empire.ErrUnhappyDestination),
		errors.Is(err, empire.ErrColonyAbandoned):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
