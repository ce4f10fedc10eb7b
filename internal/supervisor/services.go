// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// StartStopService adapts components with a Start/Stop lifecycle (the
// connectivity monitor) to suture's Serve pattern: start, block until the
// context is canceled, then stop.
type StartStopService struct {
	name string
	impl interface {
		Start(ctx context.Context) error
		Stop() error
	}
}

// NewStartStopService wraps a Start/Stop component as a supervised service.
func NewStartStopService(name string, impl interface {
	Start(ctx context.Context) error
	Stop() error
}) *StartStopService {
	return &StartStopService{name: name, impl: impl}
}

// Serve implements suture.Service.
func (s *StartStopService) Serve(ctx context.Context) error {
	if err := s.impl.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}
	<-ctx.Done()
	if err := s.impl.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", s.name, err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *StartStopService) String() string {
	return s.name
}

// HTTPService wraps an http.Server as a supervised service, translating the
// blocking ListenAndServe pattern into suture's context-aware Serve.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps the server with a graceful shutdown bound.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. http.ErrServerClosed is expected during
// shutdown and converted to the context error.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status api failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status api shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *HTTPService) String() string {
	return "status-api"
}
