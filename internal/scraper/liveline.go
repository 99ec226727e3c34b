// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/tomtom215/liveline/internal/models"
)

// livelinePathPattern matches /live/<event-id> with optional trailing
// path segments.
var livelinePathPattern = regexp.MustCompile(`^/live/([a-z0-9]+)(/.*)?$`)

// LivelineProvider resolves links to this deployment's own event
// threads without going to the network. A thread linked from another
// thread embeds as a nested liveline viewer.
type LivelineProvider struct {
	hosts map[string]struct{}
}

// NewLivelineProvider creates the provider. hosts are the hostnames
// this deployment serves on; links to other hosts are not ours.
func NewLivelineProvider(hosts []string) *LivelineProvider {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		set[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return &LivelineProvider{hosts: set}
}

func (p *LivelineProvider) Name() string { return "liveline" }

func (p *LivelineProvider) Match(rawURL string) bool {
	return p.eventID(rawURL) != ""
}

func (p *LivelineProvider) Scrape(ctx context.Context, rawURL string, params Params) (*models.MediaObject, error) {
	id := p.eventID(rawURL)
	if id == "" {
		return nil, nil
	}
	return &models.MediaObject{Type: models.MediaTypeLiveline, EventID: id}, nil
}

func (p *LivelineProvider) eventID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if _, ok := p.hosts[strings.ToLower(u.Hostname())]; !ok {
		return ""
	}
	m := livelinePathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return m[1]
}
