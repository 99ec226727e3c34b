// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/liveline/internal/enrich"
	"github.com/tomtom215/liveline/internal/logging"
	"github.com/tomtom215/liveline/internal/queue"
	"github.com/tomtom215/liveline/internal/websocket"
)

// HTTPService runs an http.Server under supervision. Shutdown is
// graceful: in-flight requests get shutdownTimeout to finish.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps the server. A zero timeout defaults to 10s.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("http server listening")
		errs <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return ctx.Err()
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("http server shutdown incomplete")
		}
		return ctx.Err()
	}
}

// HubService runs the websocket hub's dispatch loop under supervision.
type HubService struct {
	hub *websocket.Hub
}

// NewHubService wraps the hub.
func NewHubService(hub *websocket.Hub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	logging.Info().Msg("websocket hub started")
	err := s.hub.RunWithContext(ctx)
	logging.Info().Msg("websocket hub stopped")
	return err
}

// RouterService runs the enrichment router under supervision.
type RouterService struct {
	router *enrich.Router
}

// NewRouterService wraps the router.
func NewRouterService(router *enrich.Router) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service.
func (s *RouterService) Serve(ctx context.Context) error {
	logging.Info().Msg("enrichment router started")
	if err := s.router.Run(ctx); err != nil {
		logging.Error().Err(err).Msg("enrichment router failed")
		return err
	}
	logging.Info().Msg("enrichment router stopped")
	return ctx.Err()
}

// QueueServerService keeps the embedded NATS server alive for the
// process lifetime and shuts it down when the tree stops. The server is
// started before supervision begins so its client URL is known during
// wiring; this wrapper only owns shutdown.
type QueueServerService struct {
	server          *queue.EmbeddedServer
	shutdownTimeout time.Duration
}

// NewQueueServerService wraps a started embedded server.
func NewQueueServerService(server *queue.EmbeddedServer, shutdownTimeout time.Duration) *QueueServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &QueueServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *QueueServerService) Serve(ctx context.Context) error {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("embedded queue server shutdown incomplete")
	}
	return ctx.Err()
}
