// Package server exposes the engine over HTTP: state, live events,
// effect triggers, transport control, pointer input and track loading.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/satindergrewal/liteshow/internal/engine"
	"github.com/satindergrewal/liteshow/internal/jamendo"
)

// Config holds server configuration.
type Config struct {
	Port           int
	MaxUploadBytes int64
}

// Streams are the long-lived handlers owned by the stream package. Nil
// handlers are not mounted.
type Streams struct {
	Events http.Handler // SSE snapshots
	Audio  http.Handler // MP3
	Offer  http.Handler // WebRTC
}

// Server is the HTTP server.
type Server struct {
	config  Config
	router  *chi.Mux
	loop    *engine.Loop
	loader  *engine.Loader
	jamendo *jamendo.Client
	streams Streams
}

// New creates a server around a running engine loop.
func New(cfg Config, loop *engine.Loop, loader *engine.Loader, jc *jamendo.Client, streams Streams) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		loop:    loop,
		loader:  loader,
		jamendo: jc,
		streams: streams,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		if s.streams.Events != nil {
			r.Handle("/events", s.streams.Events)
		}

		r.Post("/fx/{name}", s.handleEffect)

		r.Route("/transport", func(r chi.Router) {
			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.handlePause)
			r.Post("/toggle", s.handleToggle)
			r.Post("/seek", s.handleSeek)
			r.Post("/volume", s.handleVolume)
		})

		r.Post("/pointer", s.handlePointer)

		r.Post("/upload", s.handleUpload)
		r.Get("/tracks/featured", s.handleFeatured)
		r.Get("/search", s.handleSearch)
		r.Post("/tracks/{id}/load", s.handleLoadTrack)
	})

	if s.streams.Audio != nil {
		r.Handle("/stream", s.streams.Audio)
	}
	if s.streams.Offer != nil {
		r.Handle("/offer", s.streams.Offer)
	}
}

// ServeHTTP makes the server usable as a plain handler, e.g. in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: /stream and /api/events are open-ended. They end
		// with ctx instead.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
		}
	}()

	log.Printf("liteshow live on %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
