// Package api serves the studio over HTTP.
//
// Endpoints:
//
//	GET  /api/health             health check (no auth required)
//	POST /api/images/generate    compile a brief and generate an image
//	POST /api/personas           create an audience persona
//	POST /api/themes             create a campaign theme
//	GET  /api/entitlements       balances and free uses remaining
//	GET  /api/ledger?limit=N     recent ledger entries, newest first
//
// Every endpoint except health requires "Authorization: Bearer <token>".
package api

import (
	"net/http"
	"strconv"

	"github.com/klauspost/compress/gzhttp"

	"github.com/fpang/brand-studio/internal/auth"
	"github.com/fpang/brand-studio/internal/brief"
	"github.com/fpang/brand-studio/internal/studio"
)

// routes lists the known paths for metric dimensions.
var routes = map[string]struct{}{
	"/api/health":          {},
	"/api/images/generate": {},
	"/api/personas":        {},
	"/api/themes":          {},
	"/api/entitlements":    {},
	"/api/ledger":          {},
}

// Options configure the handler chain.
type Options struct {
	// OriginVerifySecret enables the CloudFront origin check when set.
	OriginVerifySecret string
	// Compress gzips responses. Behind CloudFront this is left to the CDN.
	Compress bool
	// Version and BuildTime are reported by the health endpoint.
	Version   string
	BuildTime string
}

// Server routes HTTP requests to a studio.Service.
type Server struct {
	svc      *studio.Service
	resolver *auth.Resolver
	opts     Options
}

// New creates a Server.
func New(svc *studio.Service, resolver *auth.Resolver, opts Options) *Server {
	return &Server{svc: svc, resolver: resolver, opts: opts}
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/images/generate", withAuth(s.resolver, s.handleGenerateImage))
	mux.HandleFunc("/api/personas", withAuth(s.resolver, s.handleCreatePersona))
	mux.HandleFunc("/api/themes", withAuth(s.resolver, s.handleCreateTheme))
	mux.HandleFunc("/api/entitlements", withAuth(s.resolver, s.handleEntitlements))
	mux.HandleFunc("/api/ledger", withAuth(s.resolver, s.handleLedger))

	var h http.Handler = withMetrics(withOriginVerify(s.opts.OriginVerifySecret, mux))
	if s.opts.Compress {
		h = gzhttp.GzipHandler(h)
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "brand-studio",
		"version":   s.opts.Version,
		"buildTime": s.opts.BuildTime,
	})
}

// POST /api/images/generate
func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req studio.ImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.GenerateImage(r.Context(), principalFrom(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// POST /api/personas
func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var in brief.PersonaInput
	if !decodeJSON(w, r, &in) {
		return
	}
	resp, err := s.svc.CreatePersona(r.Context(), principalFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// POST /api/themes
func (s *Server) handleCreateTheme(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var in brief.ThemeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	resp, err := s.svc.CreateTheme(r.Context(), principalFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// GET /api/entitlements
func (s *Server) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	snap, err := s.svc.Entitlements(r.Context(), principalFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GET /api/ledger?limit=N
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.svc.Ledger(r.Context(), principalFrom(r.Context()), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
