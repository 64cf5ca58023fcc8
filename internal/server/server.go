// Package server provides the HTTP server and routing for riskcore.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/riskcore/internal/di"
	portfoliohandlers "github.com/aristath/riskcore/internal/modules/portfolio/handlers"
	riskhandlers "github.com/aristath/riskcore/internal/modules/risk/handlers"
	universehandlers "github.com/aristath/riskcore/internal/modules/universe/handlers"
)

const (
	requestTimeout = 60 * time.Second
	readTimeout    = 15 * time.Second
	writeTimeout   = 15 * time.Second
	idleTimeout    = 60 * time.Second
)

type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	DataDir   string
	Container *di.Container
}

// Server serves the risk, portfolio, universe and system APIs plus the
// run event stream.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	container      *di.Container
	systemHandlers *SystemHandlers
}

func New(cfg Config) *Server {
	// A nil *Scheduler must not become a non-nil JobRunner.
	var jobs JobRunner
	if cfg.Container.Scheduler != nil {
		jobs = cfg.Container.Scheduler
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		port:           cfg.Port,
		container:      cfg.Container,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.DataDir, cfg.Container.Databases(), jobs),
	}

	s.router.Use(s.middlewares(cfg.DevMode)...)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// middlewares is the stack shared by every route. Compression is skipped in
// dev mode so responses stay readable with curl.
func (s *Server) middlewares(devMode bool) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		middleware.Recoverer,
		middleware.RequestID,
		middleware.RealIP,
		s.accessLog,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	}
	if !devMode {
		stack = append(stack, middleware.Compress(5, "application/json", "text/plain"))
	}
	return stack
}

// setupRoutes configures all routes. Everything except the event stream runs
// under a request timeout.
func (s *Server) setupRoutes() {
	timeout := middleware.Timeout(requestTimeout)

	s.router.With(timeout).Get("/health", s.handleHealth)

	if s.container.Registry != nil {
		s.router.With(timeout).Handle("/metrics", promhttp.HandlerFor(s.container.Registry, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api", func(r chi.Router) {
		if s.container.Events != nil {
			r.Get("/events/stream", NewEventsStreamHandler(s.container.Events, s.log).ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(timeout)
			s.setupAPIRoutes(r)
		})
	})
}

func (s *Server) setupAPIRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/health", s.systemHandlers.HandleSystemStatus)
		r.Get("/disk", s.systemHandlers.HandleDiskUsage)
		r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
		r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
		r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
	})

	riskHandler := riskhandlers.NewHandler(s.container.AnalysisService, s.container.LoadRiskConfig, s.log)
	riskHandler.RegisterRoutes(r)

	portfolioHandler := portfoliohandlers.NewHandler(s.container.PositionRepo, s.log)
	portfolioHandler.RegisterRoutes(r)

	universeHandler := universehandlers.NewUniverseHandlers(s.container.History, s.log)
	universeHandler.RegisterRoutes(r)
}

func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Draining connections")
	return s.server.Shutdown(ctx)
}

// accessLog writes one line per request. Server errors log at warn so they
// surface at the default server level.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ev := s.log.Debug()
		if ww.Status() >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", r.Method).
			Str("route", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
