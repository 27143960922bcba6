package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dcm-project/cloud-instance-manager/api/v1alpha1"
	"github.com/dcm-project/cloud-instance-manager/internal/config"
	"github.com/dcm-project/cloud-instance-manager/internal/handlers"
	"github.com/dcm-project/cloud-instance-manager/internal/logging"
	"github.com/dcm-project/cloud-instance-manager/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const gracefulShutdownTimeout = 5 * time.Second

type Server struct {
	cfg      *config.Config
	listener net.Listener
	handler  *handlers.Handler
}

func New(cfg *config.Config, listener net.Listener, handler *handlers.Handler) *Server {
	return &Server{
		cfg:      cfg,
		listener: listener,
		handler:  handler,
	}
}

// Router builds the HTTP routes: the API under the OpenAPI document's server
// URL, the document itself at openapi.yaml below it, and Prometheus metrics
// at /metrics.
func (s *Server) Router() (chi.Router, error) {
	swagger, err := v1alpha1.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("load OpenAPI spec: %w", err)
	}
	if len(swagger.Servers) == 0 {
		return nil, fmt.Errorf("OpenAPI spec missing servers configuration")
	}
	baseURL := swagger.Servers[0].URL

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.Middleware)
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)

	router.Route(baseURL, func(r chi.Router) {
		s.handler.Routes(r)
		r.Get("/openapi.yaml", serveDocument)
	})
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	return router, nil
}

func serveDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(v1alpha1.Document())
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	router, err := s.Router()
	if err != nil {
		return err
	}
	srv := http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("Shutting down HTTP server")
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
	}()

	zap.L().Info("Starting HTTP server", zap.String("address", s.listener.Addr().String()))
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
