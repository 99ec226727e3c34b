// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package scraper

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/liveline/internal/models"
)

// defaultOEmbedEndpoints maps domains to their discovery-free oEmbed
// endpoints. Config can extend or replace this set.
var defaultOEmbedEndpoints = map[string]string{
	"youtube.com": "https://www.youtube.com/oembed",
	"youtu.be":    "https://www.youtube.com/oembed",
	"vimeo.com":   "https://vimeo.com/api/oembed.json",
}

// OEmbedProvider resolves URLs for domains with a known oEmbed
// endpoint. It is the catch-all provider and registers last.
type OEmbedProvider struct {
	fetcher   *Fetcher
	endpoints map[string]string
}

// NewOEmbedProvider creates the provider. A nil endpoints map selects
// the built-in set.
func NewOEmbedProvider(fetcher *Fetcher, endpoints map[string]string) *OEmbedProvider {
	if endpoints == nil {
		endpoints = defaultOEmbedEndpoints
	}
	normalized := make(map[string]string, len(endpoints))
	for domain, endpoint := range endpoints {
		normalized[strings.ToLower(strings.TrimSpace(domain))] = endpoint
	}
	return &OEmbedProvider{fetcher: fetcher, endpoints: normalized}
}

func (p *OEmbedProvider) Name() string { return "oembed" }

func (p *OEmbedProvider) Match(rawURL string) bool {
	_, _, ok := p.endpoint(rawURL)
	return ok
}

func (p *OEmbedProvider) Scrape(ctx context.Context, rawURL string, params Params) (*models.MediaObject, error) {
	domain, endpoint, ok := p.endpoint(rawURL)
	if !ok {
		return nil, nil
	}

	q := url.Values{}
	q.Set("url", rawURL)
	q.Set("format", "json")
	if params.MaxWidth > 0 {
		q.Set("maxwidth", strconv.Itoa(params.MaxWidth))
	}
	if params.Autoplay {
		q.Set("autoplay", "1")
	}

	var resp models.OEmbed
	if err := p.fetcher.GetJSON(ctx, endpoint+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	// Photo and link responses have no renderable frame worth embedding
	// in a timeline.
	if resp.Type != "video" && resp.Type != "rich" {
		return nil, nil
	}
	// Same contract as the twitter provider: the embed keeps the body's
	// exact URL, not the endpoint's canonical form.
	resp.URL = rawURL
	return &models.MediaObject{Type: domain, OEmbed: &resp}, nil
}

// endpoint resolves the owning domain and oEmbed endpoint for a URL.
func (p *OEmbedProvider) endpoint(rawURL string) (string, string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	for domain, endpoint := range p.endpoints {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return domain, endpoint, true
		}
	}
	return "", "", false
}
