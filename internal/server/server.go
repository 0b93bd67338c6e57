package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"submita/internal/config"
	"submita/internal/handlers"
	"submita/internal/metrics"
	"submita/internal/middleware"
	"submita/internal/views"
)

type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
	log    zerolog.Logger
	cfg    *config.AppConfig
}

// NewHTTPServer builds the portal engine. gate is the route guard and runs
// after the ambient middleware so that redirects are logged and counted.
func NewHTTPServer(cfg *config.AppConfig, log zerolog.Logger, m *metrics.Registry, gate gin.HandlerFunc, handlerSet handlers.HandlerSet) (*HTTPServer, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tmpl, err := views.Load()
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.RedirectTrailingSlash = true
	engine.RedirectFixedPath = true
	engine.SetHTMLTemplate(tmpl)

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.Metrics(m),
		middleware.CORS(cfg.AllowCORSOrigins),
		gate,
	)

	handlerSet.Register(engine)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &HTTPServer{
		engine: engine,
		server: srv,
		log:    log,
		cfg:    cfg,
	}, nil
}

// NewMetricsServer serves the Prometheus registry on http.metricsport so that
// scrapes never go through the public portal listener.
func NewMetricsServer(cfg *config.AppConfig, log zerolog.Logger, m *metrics.Registry) *HTTPServer {
	engine := gin.New()
	engine.Use(middleware.Recovery(log))
	engine.GET("/metrics", gin.WrapH(m.Handler()))

	return &HTTPServer{
		engine: engine,
		server: &http.Server{
			Addr:        cfg.MetricsAddr(),
			Handler:     engine,
			ReadTimeout: cfg.HTTP.ReadTimeout,
		},
		log: log.With().Str("listener", "metrics").Logger(),
		cfg: cfg,
	}
}

// Handler exposes the engine for in-process tests.
func (s *HTTPServer) Handler() http.Handler { return s.engine }

func (s *HTTPServer) Start() error {
	s.log.Info().
		Str("addr", s.server.Addr).
		Str("backend", s.cfg.API.BaseURL).
		Msg("http server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}
