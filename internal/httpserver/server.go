// internal/httpserver/server.go
//
// HTTP surface for the blockwords engine.
// Responsibilities:
//   - Router + middleware (request IDs, panic recovery, timeouts, JSON).
//   - Read endpoints for the rendering collaborator: rack state, scores,
//     possible/remaining words.
//   - The keyboard guess path (POST /guess) for play without cubes.
//   - Operator session control (POST /session/start, /session/stop),
//     JWT-protected.
//   - Live event feed over websocket (GET /ws).
//
// Notes:
//   - Game state lives on the bus consumer goroutine and is not safe for
//     concurrent access. Every handler that touches it goes through the
//     dispatcher, which runs the closure on that goroutine and waits.
//   - The history store is plain SQL and safe to hit directly.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/stephen5ng/blockwords/internal/cubes"
	"github.com/stephen5ng/blockwords/internal/game"
	"github.com/stephen5ng/blockwords/internal/history"
)

// Dispatcher schedules a closure onto the engine's event loop and blocks
// until it has run. All coordinator and controller access goes through it.
type Dispatcher func(func())

// Server bundles the router with the engine collaborators.
type Server struct {
	r        *chi.Mux
	coord    *game.Coordinator
	ctrl     *cubes.Controller
	store    *history.Store
	secret   []byte
	dispatch Dispatcher
	hub      *hub
}

// New constructs a Server, installs middleware, and registers routes.
func New(coord *game.Coordinator, ctrl *cubes.Controller, store *history.Store,
	secret string, dispatch Dispatcher) *Server {

	if dispatch == nil {
		// No event loop attached: run closures inline.
		dispatch = func(f func()) { f() }
	}
	s := &Server{
		r:        chi.NewRouter(),
		coord:    coord,
		ctrl:     ctrl,
		store:    store,
		secret:   []byte(secret),
		dispatch: dispatch,
		hub:      newHub(),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)

	// The event feed stays open as long as the client does, so the request
	// timeout applies only to the REST routes.
	s.r.Get("/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"service": "blockwords",
				"endpoints": []string{
					"/health", "GET /rack/{player}", "GET /scores",
					"GET /scores/top", "GET /words", "POST /guess",
					"POST /session/start", "POST /session/stop", "GET /ws",
				},
			})
		})
		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})

		// --- rendering collaborator ---
		r.Get("/rack/{player}", s.handleRack)
		r.Get("/scores", s.handleScores)
		r.Get("/scores/top", s.handleTopScores)
		r.Get("/words", s.handleWords)

		// --- keyboard play ---
		r.Post("/guess", s.handleGuess)

		// --- operator session control, JWT required ---
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/session/start", s.handleSessionStart)
			r.Post("/session/stop", s.handleSessionStop)
		})
	})

	return s
}

// Router exposes the chi mux for http.Server wiring and tests.
func (s *Server) Router() http.Handler { return s.r }

// Notify feeds an engine event to every websocket subscriber. It is called
// from the event loop and never blocks.
func (s *Server) Notify(e game.Event) { s.hub.broadcast(e) }

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleRack(w http.ResponseWriter, r *http.Request) {
	player, err := strconv.Atoi(chi.URLParam(r, "player"))
	if err != nil || player < 0 || player >= game.MaxPlayers {
		writeError(w, http.StatusBadRequest, "invalid player")
		return
	}
	var letters string
	var next byte
	var points int
	s.dispatch(func() {
		letters, next = s.coord.GetRack(player)
		points = s.coord.Points(player)
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"player":  player,
		"letters": letters,
		"next":    string(next),
		"points":  points,
	})
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	type playerScore struct {
		Player int `json:"player"`
		Points int `json:"points"`
	}
	var running bool
	var scores []playerScore
	var possible, remaining int
	s.dispatch(func() {
		running = s.coord.Running()
		for p := 0; p < game.MaxPlayers; p++ {
			scores = append(scores, playerScore{Player: p, Points: s.coord.Points(p)})
		}
		possible = len(s.coord.PossibleWords())
		remaining = len(s.coord.RemainingWords())
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"running":   running,
		"players":   scores,
		"possible":  possible,
		"remaining": remaining,
	})
}

func (s *Server) handleTopScores(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	top, err := s.store.TopWords(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("top words query failed")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"top": top})
}

func (s *Server) handleWords(w http.ResponseWriter, r *http.Request) {
	var possible, remaining []string
	s.dispatch(func() {
		possible = s.coord.PossibleWords()
		remaining = s.coord.RemainingWords()
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"possible":  possible,
		"remaining": remaining,
	})
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Word   string `json:"word"`
		Player int    `json:"player"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Word == "" {
		writeError(w, http.StatusBadRequest, "invalid guess body")
		return
	}
	if req.Player < 0 || req.Player >= game.MaxPlayers {
		writeError(w, http.StatusBadRequest, "invalid player")
		return
	}
	var outcome game.Outcome
	var points int
	s.dispatch(func() {
		outcome = s.coord.GuessWord(req.Word, req.Player)
		points = s.coord.Points(req.Player)
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"word":    req.Word,
		"outcome": outcome.String(),
		"points":  points,
	})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keyboard bool `json:"keyboard"`
	}
	// An empty body means a cube session.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	session, err := s.store.BeginSession(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("begin session failed")
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	s.dispatch(func() {
		if req.Keyboard {
			s.coord.StartKeyboardSession()
		} else {
			s.ctrl.StartSession()
		}
	})
	log.Info().Int64("session", session).Bool("keyboard", req.Keyboard).
		Msg("session start requested")
	writeJSON(w, http.StatusOK, map[string]any{"session": session, "keyboard": req.Keyboard})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	s.dispatch(func() { s.ctrl.StopSession() })
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe runs the server until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
