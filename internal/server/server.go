// Package server exposes the engine's HTTP control surface: a chi router
// with the CORS-enabled control/state API described in spec.md §6, plus
// a websocket push stream of BotState snapshots. Grounded on the
// teacher's internal/server/server.go (chi.NewRouter, middleware stack,
// cors.Handler, nested chi.Route groups).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/spotengine/internal/botstate"
)

// Config holds the server's construction-time dependencies.
type Config struct {
	Log     zerolog.Logger
	Port    int
	Store   *botstate.Store
	Queue   *botstate.Queue
	DevMode bool
}

// Server is the engine's HTTP control surface.
type Server struct {
	router         *chi.Mux
	http           *http.Server
	log            zerolog.Logger
	store          *botstate.Store
	queue          *botstate.Queue
	controlTimeout time.Duration
}

// New builds and wires a Server, ready for Start.
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		store:          cfg.Store,
		queue:          cfg.Queue,
		controlTimeout: 10 * time.Second,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the websocket stream is long-lived
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Route("/control", func(r chi.Router) {
			r.Post("/pause", s.handleControl(botstate.CmdPauseNewEntries))
			r.Post("/resume", s.handleControl(botstate.CmdResume))
			r.Post("/close-symbol", s.handleControl(botstate.CmdCloseSymbol))
			r.Post("/close-all", s.handleControl(botstate.CmdCloseAll))
			r.Post("/update-config", s.handleControl(botstate.CmdUpdateConfig))
			r.Post("/kill-switch", s.handleControl(botstate.CmdToggleKillSwitch))
		})
	})

	s.router.Get("/ws/state", s.handleStateWS)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Msg("request")
	})
}

// Start begins serving. Blocks until the listener stops or errors.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("control surface listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
