// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package scraper

import (
	"net/url"
	"regexp"
	"strings"
)

// isolatedURLPattern matches a line whose entire trimmed content is a
// single http(s) URL, optionally wrapped in markdown autolink brackets.
var isolatedURLPattern = regexp.MustCompile(`^<?(https?://\S+?)>?$`)

// ExtractURLs pulls embed candidates out of an update body. Only
// isolated URLs count: a URL must stand alone on its own line. URLs
// embedded in prose are deliberately not candidates, so authors opt in
// to embeds by line placement.
//
// Results are deduplicated preserving first-seen order.
func ExtractURLs(body string) []string {
	var urls []string
	seen := make(map[string]struct{})

	for _, line := range strings.Split(body, "\n") {
		m := isolatedURLPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		candidate := m[1]
		if _, err := url.Parse(candidate); err != nil {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		urls = append(urls, candidate)
	}
	return urls
}

// DomainFilter restricts embed candidates to an allow-list of domains.
// An empty list allows everything.
type DomainFilter struct {
	allowed map[string]struct{}
}

// NewDomainFilter builds a filter from domain names. Matching is
// suffix-based, so "twitter.com" also allows "www.twitter.com".
func NewDomainFilter(domains []string) *DomainFilter {
	if len(domains) == 0 {
		return &DomainFilter{}
	}
	allowed := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		allowed[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return &DomainFilter{allowed: allowed}
}

// Allow reports whether the URL's host passes the filter.
func (f *DomainFilter) Allow(rawURL string) bool {
	if f.allowed == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for domain := range f.allowed {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Filter returns the candidates whose domains pass the filter.
func (f *DomainFilter) Filter(urls []string) []string {
	if f.allowed == nil {
		return urls
	}
	var out []string
	for _, u := range urls {
		if f.Allow(u) {
			out = append(out, u)
		}
	}
	return out
}
