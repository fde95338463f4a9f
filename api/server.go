package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gathergrid/gathergrid-backend/pkg/config"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
)

// Server wraps the HTTP listener with sane timeouts and graceful shutdown.
type Server struct {
	httpServer *http.Server
	logg       *logger.Logger
}

// NewServer binds the router to the configured port.
func NewServer(cfg *config.Config, handler http.Handler, logg *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.App.Port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logg: logg,
	}
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.logg != nil {
		s.logg.Info(shutdownCtx, "draining http server")
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
