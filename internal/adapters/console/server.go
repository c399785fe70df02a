package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server runs the console router over HTTP.
type Server struct {
	http   *http.Server
	logger zerolog.Logger
}

// NewServer binds handler to addr with read, write and idle timeouts.
func NewServer(addr string, handler http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("console listening")
		serverErrors <- s.http.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("console server: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down console")
	}
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting connections and waits up to 10s for in-flight
// requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("console shutdown")
		return err
	}
	s.logger.Info().Msg("console stopped")
	return nil
}
