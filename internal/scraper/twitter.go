// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strconv"

	"github.com/tomtom215/liveline/internal/models"
)

// twitterStatusPattern matches tweet permalinks. Usernames are capped
// at 20 word characters; both /status/ and the legacy /statuses/ path
// forms appear in the wild.
var twitterStatusPattern = regexp.MustCompile(`^https?://(www\.)?(twitter|x)\.com/\w{1,20}/status(es)?/\d+`)

const twitterOEmbedEndpoint = "https://publish.twitter.com/oembed"

// TwitterProvider resolves tweet permalinks through the publish
// oEmbed endpoint.
type TwitterProvider struct {
	fetcher  *Fetcher
	endpoint string
}

// NewTwitterProvider creates the provider. endpoint overrides the
// default oEmbed endpoint; pass "" for production.
func NewTwitterProvider(fetcher *Fetcher, endpoint string) *TwitterProvider {
	if endpoint == "" {
		endpoint = twitterOEmbedEndpoint
	}
	return &TwitterProvider{fetcher: fetcher, endpoint: endpoint}
}

func (p *TwitterProvider) Name() string { return "twitter" }

func (p *TwitterProvider) Match(rawURL string) bool {
	return twitterStatusPattern.MatchString(rawURL)
}

func (p *TwitterProvider) Scrape(ctx context.Context, rawURL string, params Params) (*models.MediaObject, error) {
	q := url.Values{}
	q.Set("url", rawURL)
	q.Set("omit_script", "true")
	if params.MaxWidth > 0 {
		q.Set("maxwidth", strconv.Itoa(params.MaxWidth))
	}

	var resp models.OEmbed
	if err := p.fetcher.GetJSON(ctx, p.endpoint+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	// Tweets come back as rich embeds; anything else means the endpoint
	// could not render the status.
	if resp.Type != "rich" && resp.Type != "video" {
		return nil, nil
	}
	// The embed carries the URL exactly as it appeared in the body, not
	// the endpoint's canonical form, so clients can match embeds back to
	// the text.
	resp.URL = rawURL
	return &models.MediaObject{Type: "twitter.com", OEmbed: &resp}, nil
}
