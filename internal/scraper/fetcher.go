// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/liveline/internal/logging"
)

const (
	userAgent       = "liveline-scraper/1.0"
	maxResponseSize = 1 << 20 // 1 MiB; oEmbed payloads are tiny
)

// FetchError is a failed outbound fetch. Status 0 means the request
// never got a response.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether retrying later could succeed: transport
// errors, rate limiting, and server-side failures. Client errors such
// as 404 are permanent and cache as errors until expiry.
func (e *FetchError) Temporary() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Fetcher is the shared HTTP layer for network-backed providers. One
// rate limiter and one circuit breaker cover all outbound scrapes.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewFetcher creates a fetcher. rps bounds outbound requests per
// second (burst 2x); zero values select 10 rps and a 10s timeout.
func NewFetcher(timeout time.Duration, rps float64) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rps <= 0 {
		rps = 10
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "scraper",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Scraper circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Permanent fetch errors (404 etc.) are upstream answers,
			// not endpoint health signals.
			var fe *FetchError
			if errors.As(err, &fe) {
				return !fe.Temporary()
			}
			return err == nil
		},
	})

	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps*2)),
		cb:      cb,
	}
}

// GetJSON fetches url and decodes the JSON response into out.
func (f *Fetcher) GetJSON(ctx context.Context, url string, out any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return &FetchError{URL: url, Err: err}
	}

	body, err := f.cb.Execute(func() ([]byte, error) {
		return f.get(ctx, url)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &FetchError{URL: url, Err: err}
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{URL: url, Status: http.StatusOK, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}
