// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package scraper resolves URLs found in update bodies to embeddable
// media objects.
//
// A Registry holds an ordered list of providers. The first provider
// whose pattern matches a URL owns it; URLs no provider claims resolve
// to "no usable media". Providers that go to the network share one
// rate limiter and one circuit breaker, so a failing third-party
// endpoint degrades to cached errors instead of hammering.
package scraper

import (
	"context"
	"time"

	"github.com/tomtom215/liveline/internal/logging"
	"github.com/tomtom215/liveline/internal/metrics"
	"github.com/tomtom215/liveline/internal/models"
)

// Params tune how a provider renders the embed it returns.
type Params struct {
	Autoplay bool
	MaxWidth int
}

// Provider resolves URLs it recognizes to media objects.
//
// Scrape returns (nil, nil) when the URL is recognized but carries no
// usable media; that outcome is cached like any other.
type Provider interface {
	Name() string
	Match(url string) bool
	Scrape(ctx context.Context, url string, params Params) (*models.MediaObject, error)
}

// Registry dispatches URLs to the first matching provider.
type Registry struct {
	providers []Provider
}

// NewRegistry builds a registry. Order matters: providers are tried in
// the order given, so specific patterns go before catch-alls.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Resolve scrapes a URL through its owning provider. An unclaimed URL
// yields (nil, nil).
func (r *Registry) Resolve(ctx context.Context, url string, params Params) (*models.MediaObject, error) {
	for _, p := range r.providers {
		if !p.Match(url) {
			continue
		}

		start := time.Now()
		media, err := p.Scrape(ctx, url, params)
		switch {
		case err != nil:
			metrics.RecordScrape(p.Name(), "error", start)
			logging.Warn().Err(err).
				Str("provider", p.Name()).
				Str("url", url).
				Msg("Scrape failed")
		case media == nil:
			metrics.RecordScrape(p.Name(), "empty", start)
		default:
			metrics.RecordScrape(p.Name(), "ok", start)
		}
		return media, err
	}
	return nil, nil
}
