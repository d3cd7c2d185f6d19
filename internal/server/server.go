package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cortexai/analytics/internal/catalog"
	"github.com/cortexai/analytics/internal/config"
	"github.com/cortexai/analytics/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const catalogRefreshTimeout = config.DefaultCatalogRefreshTimeout

type Server struct {
	cfg  *config.Config
	http *http.Server

	store    *catalog.Store
	watcher  *catalog.Watcher
	cron     *cron.Cron
	bqSvc    *service.BigQueryService
	runner   *service.PostgresRunner
	queryLog *service.QueryLogIndex
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	if err := s.setupServices(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("setup services: %w", err)
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.setupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Run(ctx context.Context) error {
	if s.watcher != nil {
		go s.watcher.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := s.http.Shutdown(shutdownCtx)
		s.close()
		return err
	case err := <-errCh:
		s.close()
		return err
	}
}

// close releases background jobs and backend clients
func (s *Server) close() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			log.Warn().Err(err).Msg("error stopping catalog watcher")
		}
	}
	if s.runner != nil {
		if err := s.runner.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing KPI database pool")
		}
	}
	if s.bqSvc != nil {
		if err := s.bqSvc.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing BigQuery client")
		} else {
			log.Info().Msg("BigQuery client closed")
		}
	}
}
