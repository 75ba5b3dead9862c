package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sunny-dsa/shiftcheck/internal/events"
	"github.com/sunny-dsa/shiftcheck/internal/tasks"
)

// Options wires the services the HTTP API exposes.
type Options struct {
	Instantiator *tasks.Instantiator
	Manager      *tasks.Manager
	Events       *events.Bus
	Auth         *Authenticator
	Logger       *slog.Logger
}

type Server struct {
	inst    *tasks.Instantiator
	mgr     *tasks.Manager
	bus     *events.Bus
	auth    *Authenticator
	logger  *slog.Logger
	handler http.Handler
	server  *http.Server
}

func NewServer(opts Options) *Server {
	s := &Server{
		inst:   opts.Instantiator,
		mgr:    opts.Manager,
		bus:    opts.Events,
		auth:   opts.Auth,
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/api/events", s.handleEvents)
		r.Post("/api/tasks", s.handleCreateTask)

		r.Route("/api/stores/{storeID}", func(r chi.Router) {
			r.Post("/ensure", s.handleEnsure)
			r.Get("/tasks", s.handleListTasks)
		})

		r.Route("/api/tasks/{taskID}", func(r chi.Router) {
			r.Get("/", s.handleGetTask)
			r.Get("/photos", s.handleListPhotos)
			r.Get("/transfers", s.handleListTransfers)
			r.Post("/publish", s.handlePublish)
			r.Post("/claim", s.handleClaim)
			r.Post("/start", s.handleStart)
			r.Post("/photos", s.handleUploadPhoto)
			r.Post("/complete", s.handleComplete)
			r.Post("/transfer", s.handleTransfer)
			r.Post("/cancel", s.handleCancel)
		})
	})

	return r
}

// Handler returns the routed API, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and blocks until the server is shut down.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
	}
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return s.server.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
