// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package api is the HTTP surface: event and update CRUD, reporter
// management, activity reads, the websocket endpoint, and the
// operational endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/liveline/internal/config"
	"github.com/tomtom215/liveline/internal/middleware"
)

// Router assembles the chi route tree around a Handler.
type Router struct {
	handler *Handler
	cfg     config.ServerConfig
}

// NewRouter creates the router.
func NewRouter(handler *Handler, cfg config.ServerConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup builds the full route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", rt.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	// promhttp negotiates its own encoding, so compression applies to
	// the API routes only.
	r.Route("/api/v1/events", func(r chi.Router) {
		r.Use(middleware.Compression)
		r.Use(rt.rateLimit())

		r.With(rt.writeLimit()).Post("/", rt.handler.CreateEvent)

		r.Route("/{eventID}", func(r chi.Router) {
			r.Use(rt.handler.TouchVisitor)

			r.Get("/", rt.handler.GetEvent)
			r.With(rt.writeLimit()).Post("/complete", rt.handler.CompleteEvent)

			r.Route("/updates", func(r chi.Router) {
				r.Get("/", rt.handler.ListUpdates)
				r.With(rt.writeLimit()).Post("/", rt.handler.AppendUpdate)

				r.Route("/{updateID}", func(r chi.Router) {
					r.Get("/", rt.handler.GetUpdate)
					r.With(rt.writeLimit()).Put("/", rt.handler.EditUpdate)
					r.With(rt.writeLimit()).Delete("/", rt.handler.DeleteUpdate)
					r.With(rt.writeLimit()).Post("/strike", rt.handler.StrikeUpdate)
				})
			})

			r.Route("/reporters/{userID}", func(r chi.Router) {
				r.With(rt.writeLimit()).Put("/", rt.handler.AddReporter)
				r.With(rt.writeLimit()).Delete("/", rt.handler.RemoveReporter)
			})

			r.Get("/activity", rt.handler.ActivityHistory)
			r.Get("/ws", rt.handler.WebSocket)
		})
	})

	return r
}

func (rt *Router) rateLimit() func(http.Handler) http.Handler {
	if rt.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	reqs, window := rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow
	if reqs <= 0 {
		reqs = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(reqs, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}

// writeLimit is a tighter limit for mutating endpoints.
func (rt *Router) writeLimit() func(http.Handler) http.Handler {
	if rt.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(30, time.Minute)
}
