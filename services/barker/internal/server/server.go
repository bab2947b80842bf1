// Package server exposes the barker HTTP API consumed by the game
// client and the game server.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"guttervoice/internal/ratelimit"
	"guttervoice/internal/servicetoken"
	"guttervoice/internal/util"
	"guttervoice/pkg/auth"
	"guttervoice/pkg/domain"
	"guttervoice/services/barker/internal/app"
)

const maxBodyBytes = 1 << 16

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	TokenVerifier *servicetoken.Verifier
	AdminKeyHash  string
	QuipLimiter   *ratelimit.FixedWindowLimiter
}

// Server exposes HTTP endpoints for the barker service.
type Server struct {
	app           *app.App
	tokenVerifier *servicetoken.Verifier
	adminKeyHash  string
	quipLimiter   *ratelimit.FixedWindowLimiter
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:           cfg.App,
		tokenVerifier: cfg.TokenVerifier,
		adminKeyHash:  cfg.AdminKeyHash,
		quipLimiter:   cfg.QuipLimiter,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog("barker", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/v1/bark", s.withServiceAuth(s.handleBark))
	s.mux.Handle("/v1/graffiti", s.withServiceAuth(s.handleGraffiti))
	s.mux.Handle("/v1/deathquip", s.withServiceAuth(s.handleDeathQuip))
	s.mux.Handle("/v1/commentary", s.withServiceAuth(s.handleCommentary))
	s.mux.Handle("/v1/prefs/ai", s.withServiceAuth(s.handleAIPreference))
	s.mux.Handle("/v1/status", s.withAdmin(s.handleStatus))
	s.mux.Handle("/v1/admin/export", s.withAdmin(s.handleExport))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withServiceAuth requires a valid internal service token when a
// verifier is configured. Without one the endpoints are open, for local
// development.
func (s *Server) withServiceAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenVerifier != nil {
			token, ok := servicetoken.BearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, err := s.tokenVerifier.Verify(token); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	})
}

func (s *Server) withAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.CheckAdminKey(r.Header.Get("X-Admin-Key"), s.adminKeyHash) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleBark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	category := r.URL.Query().Get("category")
	playerID := r.URL.Query().Get("playerId")
	writeJSON(w, http.StatusOK, s.app.Bark(r.Context(), playerID, category))
}

func (s *Server) handleGraffiti(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	playerID := r.URL.Query().Get("playerId")
	writeJSON(w, http.StatusOK, s.app.Graffiti(r.Context(), playerID))
}

type deathQuipRequest struct {
	PlayerID string            `json:"playerId"`
	Run      domain.RunContext `json:"run"`
}

func (s *Server) handleDeathQuip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req deathQuipRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.allowQuip(r, req.PlayerID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	writeJSON(w, http.StatusOK, s.app.DeathQuip(r.Context(), req.PlayerID, req.Run))
}

type commentaryRequest struct {
	PlayerID string           `json:"playerId"`
	Race     domain.RaceState `json:"race"`
}

func (s *Server) handleCommentary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req commentaryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.allowQuip(r, req.PlayerID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	writeJSON(w, http.StatusOK, s.app.Commentary(r.Context(), req.PlayerID, req.Race))
}

type preferenceRequest struct {
	PlayerID  string `json:"playerId"`
	AIEnabled bool   `json:"aiEnabled"`
}

func (s *Server) handleAIPreference(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		playerID := r.URL.Query().Get("playerId")
		if playerID == "" {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}
		pref, err := s.app.AIPreference(r.Context(), playerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "preference lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, pref)
	case http.MethodPut:
		var req preferenceRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "playerId is required")
			return
		}
		if err := s.app.SetAIPreference(r.Context(), req.PlayerID, req.AIEnabled); err != nil {
			writeError(w, http.StatusInternalServerError, "preference update failed")
			return
		}
		writeJSON(w, http.StatusOK, domain.AIPreference{PlayerID: req.PlayerID, AIEnabled: req.AIEnabled})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Status(r.Context()))
}

type exportRequest struct {
	SinceHours int `json:"sinceHours"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	req := exportRequest{SinceHours: 24}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.SinceHours <= 0 {
		req.SinceHours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(req.SinceHours) * time.Hour)
	result, err := s.app.Export(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// allowQuip rate-limits on-demand generation per player, falling back
// to the caller IP for requests without a player id.
func (s *Server) allowQuip(r *http.Request, playerID string) bool {
	if s.quipLimiter == nil {
		return true
	}
	key := playerID
	if key == "" {
		key = util.ClientIP(r, nil)
	}
	return s.quipLimiter.Allow(key)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
