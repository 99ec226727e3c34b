// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// RouterConfig tunes the consumer side of the pipeline.
type RouterConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
	}
}

// Router consumes parse-embeds jobs through a watermill router with
// panic recovery, exponential-backoff retry, and a poison queue for
// jobs that exhaust their retries.
type Router struct {
	router *message.Router
}

// NewRouter builds the consumer. poisonPub receives exhausted jobs;
// nil disables the poison queue (tests).
func NewRouter(
	cfg RouterConfig,
	subscriber message.Subscriber,
	poisonPub message.Publisher,
	worker *Worker,
	logger watermill.LoggerAdapter,
) (*Router, error) {
	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Middleware order is outer to inner: recover panics first, then
	// retry transient failures, then poison what remains.
	wmRouter.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)
	if poisonPub != nil {
		poison, err := middleware.PoisonQueue(poisonPub, TopicPoison)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	wmRouter.AddConsumerHandler(
		"enrich-parse-embeds",
		TopicParseEmbeds,
		subscriber,
		worker.Handle,
	)

	return &Router{router: wmRouter}, nil
}

// Run starts consuming and blocks until the context is canceled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running closes once the router is consuming. Tests use it to avoid
// publishing before the subscription exists.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight
// jobs.
func (r *Router) Close() error {
	return r.router.Close()
}
