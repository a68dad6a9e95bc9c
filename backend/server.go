// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"
)

func generateETag(data []byte) string {
	return fmt.Sprintf("\"%x\"", sha256.Sum256(data))
}

// Options represent server options.
type Options struct {
	Addr        string
	Cert        *tls.Certificate
	DataDir     string
	UseMockAuth bool
	Debug       bool
	MatchStore  *MatchStore
	Session     *Session
	Storage     *storage.Storage
	Listener    net.Listener

	// Auth Options
	AuthCookieName string
	AuthJWKSURL    string
}

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
	store      *MatchStore
	hub        *Hub
}

// Shutdown gracefully shuts down the server, flushing pending match data and
// stopping the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []string

	if s.store != nil {
		if err := s.store.Flush(); err != nil {
			errs = append(errs, fmt.Sprintf("store flush: %v", err))
		}
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("http: %v", err))
	}

	if s.hub != nil {
		s.hub.Stop()
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, ", "))
	}
	return nil
}

// StartServer starts the web server and registers the API handlers.
func StartServer(opts Options) (*Server, error) {
	handler, store, hub := NewServerHandler(opts)

	httpServer := &http.Server{
		Addr:    opts.Addr,
		Handler: handler,
	}

	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}

	go func() {
		var err error
		if opts.Listener != nil {
			if httpServer.TLSConfig != nil {
				log.Printf("Starting HTTPS server on provided listener %s...", opts.Listener.Addr())
				err = httpServer.ServeTLS(opts.Listener, "", "")
			} else {
				log.Printf("Starting HTTP server on provided listener %s...", opts.Listener.Addr())
				err = httpServer.Serve(opts.Listener)
			}
		} else {
			log.Printf("Server starting on %s...\n", opts.Addr)
			if opts.Cert != nil {
				err = httpServer.ListenAndServeTLS("", "")
			} else {
				err = httpServer.ListenAndServe()
			}
		}

		if err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return &Server{httpServer: httpServer, store: store, hub: hub}, nil
}

// writeJSON marshals v, applies ETag handling and writes the response.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Internal Server Error during JSON Marshal: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	etag := generateETag(data)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// writeSessionError maps session errors to HTTP status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoMatch):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrMatchNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Printf("Internal Server Error: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// NewServerHandler creates and configures the HTTP handler for the server.
// The returned Hub runs its own goroutine; callers stop it with Hub.Stop
// when tearing the handler down.
func NewServerHandler(opts Options) (http.Handler, *MatchStore, *Hub) {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}

	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}

	store := opts.MatchStore
	if store == nil {
		store = NewMatchStore(opts.DataDir, opts.Storage)
	}

	session := opts.Session
	if session == nil {
		session = NewSession(store)
	}

	metrics := NewMetricsStore()
	hub := NewHub(session, metrics)
	go hub.Run()

	mux := http.NewServeMux()

	// requireMatchWrite checks that the user may mutate the active match.
	requireMatchWrite := func(w http.ResponseWriter, r *http.Request) bool {
		m := session.Current()
		if m == nil {
			// No active match: the handler reports ErrNoMatch itself.
			return true
		}
		if GetMatchAccess(getUserID(r), *m) < AccessWrite {
			http.Error(w, "Forbidden: You do not have write access to this match", http.StatusForbidden)
			return false
		}
		return true
	}

	mux.HandleFunc("/api/session/new", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			HomeTeam string `json:"homeTeam"`
			AwayTeam string `json:"awayTeam"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}
		if req.HomeTeam == "" || req.AwayTeam == "" {
			http.Error(w, "Bad Request: missing team names", http.StatusBadRequest)
			return
		}

		m, err := session.Create(req.HomeTeam, req.AwayTeam, getUserID(r))
		if err != nil {
			writeSessionError(w, err)
			return
		}
		hub.BroadcastUpdate(nil)
		writeJSON(w, r, m)
	})

	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		m := session.Current()
		if m == nil {
			http.Error(w, "Not Found: no active match", http.StatusNotFound)
			return
		}
		if GetMatchAccess(getUserID(r), *m) < AccessRead {
			http.Error(w, "Forbidden: You do not have access to this match", http.StatusForbidden)
			return
		}
		writeJSON(w, r, m)
	})

	mux.HandleFunc("/api/session/event", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		if !requireMatchWrite(w, r) {
			return
		}

		var req struct {
			Type    string  `json:"type"`
			X       float64 `json:"x"`
			Y       float64 `json:"y"`
			Outcome string  `json:"outcome"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}

		evt, err := session.AddEvent(req.Type, req.X, req.Y, req.Outcome)
		if err != nil {
			if errors.Is(err, ErrNoMatch) {
				writeSessionError(w, err)
			} else {
				http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			}
			return
		}
		metrics.RecordEvent()
		hub.BroadcastUpdate(evt)
		writeJSON(w, r, evt)
	})

	mux.HandleFunc("/api/session/undo", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		if !requireMatchWrite(w, r) {
			return
		}
		m, err := session.UndoLast()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		hub.BroadcastUpdate(nil)
		writeJSON(w, r, m)
	})

	mux.HandleFunc("/api/session/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		if !requireMatchWrite(w, r) {
			return
		}
		m, err := session.Clear()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		hub.BroadcastUpdate(nil)
		writeJSON(w, r, m)
	})

	mux.HandleFunc("/api/session/teams", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		if !requireMatchWrite(w, r) {
			return
		}

		var req struct {
			HomeTeam string `json:"homeTeam"`
			AwayTeam string `json:"awayTeam"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}
		if req.HomeTeam == "" && req.AwayTeam == "" {
			http.Error(w, "Bad Request: missing team names", http.StatusBadRequest)
			return
		}

		m, err := session.UpdateTeams(req.HomeTeam, req.AwayTeam)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		hub.BroadcastUpdate(nil)
		writeJSON(w, r, m)
	})

	mux.HandleFunc("/api/session/event/remove", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		if !requireMatchWrite(w, r) {
			return
		}

		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil || req.ID == "" {
			http.Error(w, "Bad Request: id is missing or invalid", http.StatusBadRequest)
			return
		}

		m, err := session.RemoveEvent(req.ID)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		hub.BroadcastUpdate(nil)
		writeJSON(w, r, m)
	})

	mux.HandleFunc("/api/session/event/update", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		if !requireMatchWrite(w, r) {
			return
		}

		var req struct {
			ID     string `json:"id"`
			Minute *int   `json:"minute"`
			Half   *int   `json:"half"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil || req.ID == "" {
			http.Error(w, "Bad Request: id is missing or invalid", http.StatusBadRequest)
			return
		}

		evt, err := session.UpdateEvent(req.ID, EventPatch{Minute: req.Minute, Half: req.Half})
		if err != nil {
			if errors.Is(err, ErrNoMatch) || errors.Is(err, ErrEventNotFound) {
				writeSessionError(w, err)
			} else {
				http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			}
			return
		}
		hub.BroadcastUpdate(nil)
		writeJSON(w, r, evt)
	})

	mux.HandleFunc("/api/session/load", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		// Match IDs are opaque strings: imports can carry IDs that are not
		// UUIDs and they must stay loadable.
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil || req.ID == "" {
			http.Error(w, "Bad Request: id is missing or invalid", http.StatusBadRequest)
			return
		}

		stored, err := store.GetMatch(req.ID)
		if err == nil && GetMatchAccess(getUserID(r), *stored) < AccessRead {
			http.Error(w, "Forbidden: You do not have access to this match", http.StatusForbidden)
			return
		}

		m, err := session.Load(req.ID)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		hub.BroadcastUpdate(nil)
		writeJSON(w, r, m)
	})

	mux.HandleFunc("/api/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 20*1048576))
		if err != nil {
			http.Error(w, "Bad Request: could not read body", http.StatusBadRequest)
			return
		}

		m, err := session.Import(payload)
		if err != nil {
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		hub.BroadcastUpdate(nil)
		writeJSON(w, r, m)
	})

	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		data, err := session.Export()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=\"match.json\"")
		w.Write(data)
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		stats, err := session.Stats()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, r, stats)
	})

	mux.HandleFunc("/api/stats.csv", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		stats, err := session.Stats()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		data, err := StatsToCSV(stats)
		if err != nil {
			log.Printf("Internal Server Error during CSV export: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=\"match_stats.csv\"")
		w.Write(data)
	})

	mux.HandleFunc("/api/list-matches", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, r, store.ListMatches())
	})

	mux.HandleFunc("/api/delete-match", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil || req.ID == "" {
			http.Error(w, "Bad Request: id is missing or invalid", http.StatusBadRequest)
			return
		}

		if m, err := store.GetMatch(req.ID); err == nil {
			if GetMatchAccess(getUserID(r), *m) < AccessAdmin {
				http.Error(w, "Forbidden: Only the owner can delete this match", http.StatusForbidden)
				return
			}
		}

		if err := session.Delete(req.ID); err != nil {
			log.Printf("Internal Server Error during DeleteMatch: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Match %s deleted successfully", req.ID)
	})

	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		userId := getUserID(r)
		if userId == "" || !isValidEmail(userId) {
			http.Error(w, "Unauthenticated", http.StatusForbidden)
			return
		}

		owned := 0
		for _, s := range store.ListMatches() {
			if normalizeEmail(s.OwnerID) == userId {
				owned++
			}
		}

		resp := map[string]interface{}{
			"id":           userId,
			"matchesOwned": owned,
			"version":      CurrentAppVersion,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(metrics.ToJSON())
	})

	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	})

	// Mock SSO endpoints for local development
	if opts.UseMockAuth {
		mux.HandleFunc("/.sso/{$}", ssoStatusHandler)
		mux.HandleFunc("/.sso/logout", ssoLogoutHandler)
	}

	handler := http.Handler(mux)
	if opts.UseMockAuth {
		handler = mockAuthMiddleware(handler)
	} else {
		handler = jwtAuthMiddleware(opts, handler)
	}
	handler = metricsMiddleware(metrics, handler)
	handler = loggingMiddleware(handler)
	handler = securityMiddleware(handler)
	handler = cacheControlMiddleware(handler)

	return handler, store, hub
}

// cacheControlMiddleware adds Cache-Control headers for API responses.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/.sso/") {
			w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=300, proxy-revalidate, no-transform")
		}
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware adds HTTP security headers to responses.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and latency. Websocket upgrades
// are excluded, their duration is the connection lifetime.
func metricsMiddleware(metrics *MetricsStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		metrics.RecordRequest(time.Since(start))
	})
}

// loggingMiddleware logs the method and URL path of every incoming HTTP request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// ssoStatusHandler returns the current user status.
func ssoStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	userId := getUserID(r)
	if userId == "" {
		w.Write([]byte("null\n"))
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"email": userId,
		"name":  "Test User",
	})
}

// ssoLogoutHandler logs the user out (clears cookie).
func ssoLogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:    "mock_auth_user",
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
	w.WriteHeader(http.StatusOK)
}
