// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package config holds the application configuration, loaded in layers:
// built-in defaults, then an optional YAML file, then environment
// variables. ENV > file > defaults. Config is immutable after Load and
// safe for concurrent reads.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full liveline configuration tree.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Queue    QueueConfig    `koanf:"queue"`
	Scraper  ScraperConfig  `koanf:"scraper"`
	Activity ActivityConfig `koanf:"activity"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// PublicHosts are the hostnames this deployment serves on. Links to
	// these hosts embed as nested liveline threads.
	PublicHosts []string `koanf:"public_hosts"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// StoreConfig holds the BadgerDB settings.
type StoreConfig struct {
	Path       string `koanf:"path" validate:"required"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`

	// MediaCacheTTL bounds how long scrape outcomes stay authoritative.
	MediaCacheTTL time.Duration `koanf:"media_cache_ttl"`
}

// QueueConfig selects and tunes the enrichment transport.
type QueueConfig struct {
	// Mode is "channel" for in-process delivery or "nats" for
	// JetStream.
	Mode string `koanf:"mode" validate:"oneof=channel nats"`

	URL              string        `koanf:"url"`
	Embedded         bool          `koanf:"embedded"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	QueueGroup       string        `koanf:"queue_group"`
	DurableName      string        `koanf:"durable_name"`
	SubscribersCount int           `koanf:"subscribers_count" validate:"min=1"`
	AckWait          time.Duration `koanf:"ack_wait"`
	MaxDeliver       int           `koanf:"max_deliver"`
	MaxAckPending    int           `koanf:"max_ack_pending"`

	RetryMaxRetries      int           `koanf:"retry_max_retries" validate:"min=0"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// ScraperConfig tunes URL-to-media resolution.
type ScraperConfig struct {
	Autoplay  bool `koanf:"autoplay"`
	MaxWidth  int  `koanf:"max_width" validate:"min=1"`
	MaxEmbeds int  `koanf:"max_embeds" validate:"min=1"`

	// AllowedDomains restricts embed candidates; empty allows all.
	AllowedDomains []string `koanf:"allowed_domains"`

	// OEmbedEndpoints maps extra domains to their oEmbed endpoints,
	// extending the built-in set.
	OEmbedEndpoints map[string]string `koanf:"oembed_endpoints"`

	FetchTimeout    time.Duration `koanf:"fetch_timeout"`
	FetchRatePerSec float64       `koanf:"fetch_rate_per_sec" validate:"min=0"`
	TwitterEndpoint string        `koanf:"twitter_endpoint"`
}

// ActivityConfig tunes visitor activity tracking.
type ActivityConfig struct {
	// TTL is the sliding window for counting a visitor as active.
	TTL time.Duration `koanf:"ttl"`

	// Interval is how often counts are sampled and published.
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks field constraints plus cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Queue.Mode == "nats" && !c.Queue.Embedded && c.Queue.URL == "" {
		return fmt.Errorf("queue.url is required when queue.mode=nats and queue.embedded=false")
	}
	return nil
}
