// internal/httpserver/server.go
//
// HTTP wiring for the session broker.
// Responsibilities:
//   - Router + middleware (JSON, CORS, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - POST /verifyWord: batch word-validity lookups against the
//     external dictionary collaborator.
//   - GET /ws: websocket upgrade into the realtime protocol.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled.
//   - The websocket route is exempt from the request timeout; the
//     connection is long-lived by design.

package httpserver

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/wordgrid/server/internal/words"
)

// Server bundles the router, the dictionary verifier, and the websocket
// entry point.
type Server struct {
	r        *chi.Mux
	verifier *words.Verifier
}

// New constructs a Server, installs middleware, and registers routes.
// ws is the upgrade handler produced by the transport hub.
func New(verifier *words.Verifier, ws http.HandlerFunc) *Server {
	s := &Server{r: chi.NewRouter(), verifier: verifier}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(corsFromEnv)     // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"wordgrid","endpoints":["/health","POST /verifyWord","GET /ws"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Realtime protocol entry point; no timeout middleware here.
	s.r.Get("/ws", ws)

	// Dictionary collaborator, bounded per request.
	s.r.With(chimw.Timeout(30*time.Second), jsonContentType).
		Post("/verifyWord", s.handleVerifyWord)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:3000.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---------------------------- verifyWord -----------------------------------

// verifyWordReq is the inbound batch: a list of {word} objects.
type verifyWordReq struct {
	Words []struct {
		Word string `json:"word"`
	} `json:"words"`
}

// handleVerifyWord checks each word independently and returns
// word -> "true"/"false"/"unknown". A single lookup failure never
// aborts the batch.
func (s *Server) handleVerifyWord(w http.ResponseWriter, r *http.Request) {
	var req verifyWordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	list := make([]string, 0, len(req.Words))
	for _, item := range req.Words {
		if item.Word != "" {
			list = append(list, item.Word)
		}
	}
	results := s.verifier.Verify(r.Context(), list)
	log.Debug().Int("words", len(list)).Msg("verifyWord batch")
	_ = json.NewEncoder(w).Encode(results)
}
