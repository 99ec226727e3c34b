// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/liveline/config.yaml",
	"/etc/liveline/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "LIVELINE_CONFIG"

// Default returns the built-in defaults: a single-node deployment with
// in-process queueing and everything stored under /data/liveline.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			PublicHosts:     []string{"localhost"},
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Store: StoreConfig{
			Path:          "/data/liveline",
			SyncWrites:    true,
			MediaCacheTTL: 30 * 24 * time.Hour,
		},
		Queue: QueueConfig{
			Mode:                 "channel",
			URL:                  "nats://127.0.0.1:4222",
			Embedded:             true,
			StoreDir:             "/data/liveline/nats",
			MaxMemory:            64 << 20,
			MaxStore:             1 << 30,
			QueueGroup:           "liveline-enrich",
			DurableName:          "liveline",
			SubscribersCount:     4,
			AckWait:              30 * time.Second,
			MaxDeliver:           5,
			MaxAckPending:        256,
			RetryMaxRetries:      5,
			RetryInitialInterval: time.Second,
			RetryMaxInterval:     time.Minute,
			CloseTimeout:         30 * time.Second,
		},
		Scraper: ScraperConfig{
			Autoplay:        false,
			MaxWidth:        485,
			MaxEmbeds:       15,
			FetchTimeout:    10 * time.Second,
			FetchRatePerSec: 10,
		},
		Activity: ActivityConfig{
			TTL:      15 * time.Minute,
			Interval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and LIVELINE_-prefixed environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("LIVELINE_", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings routes LIVELINE_* variables to config paths. An explicit
// table avoids guessing where the section name ends and the key's own
// underscores begin.
var envMappings = map[string]string{
	"server_host":                "server.host",
	"server_port":                "server.port",
	"server_timeout":             "server.timeout",
	"server_public_hosts":        "server.public_hosts",
	"server_cors_origins":        "server.cors_origins",
	"server_rate_limit_reqs":     "server.rate_limit_reqs",
	"server_rate_limit_window":   "server.rate_limit_window",
	"server_rate_limit_disabled": "server.rate_limit_disabled",

	"store_path":            "store.path",
	"store_in_memory":       "store.in_memory",
	"store_sync_writes":     "store.sync_writes",
	"store_media_cache_ttl": "store.media_cache_ttl",

	"queue_mode":                   "queue.mode",
	"queue_url":                    "queue.url",
	"queue_embedded":               "queue.embedded",
	"queue_store_dir":              "queue.store_dir",
	"queue_max_memory":             "queue.max_memory",
	"queue_max_store":              "queue.max_store",
	"queue_group":                  "queue.queue_group",
	"queue_durable_name":           "queue.durable_name",
	"queue_subscribers":            "queue.subscribers_count",
	"queue_ack_wait":               "queue.ack_wait",
	"queue_max_deliver":            "queue.max_deliver",
	"queue_max_ack_pending":        "queue.max_ack_pending",
	"queue_retry_max_retries":      "queue.retry_max_retries",
	"queue_retry_initial_interval": "queue.retry_initial_interval",
	"queue_retry_max_interval":     "queue.retry_max_interval",
	"queue_close_timeout":          "queue.close_timeout",

	"scraper_autoplay":         "scraper.autoplay",
	"scraper_max_width":        "scraper.max_width",
	"scraper_max_embeds":       "scraper.max_embeds",
	"scraper_allowed_domains":  "scraper.allowed_domains",
	"scraper_fetch_timeout":    "scraper.fetch_timeout",
	"scraper_fetch_rate":       "scraper.fetch_rate_per_sec",
	"scraper_twitter_endpoint": "scraper.twitter_endpoint",

	"activity_ttl":      "activity.ttl",
	"activity_interval": "activity.interval",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "LIVELINE_"))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	// Unmapped variables are dropped so unrelated environment noise
	// cannot reach the config tree.
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when they
// arrive via environment variables.
var sliceConfigPaths = []string{
	"server.public_hosts",
	"server.cors_origins",
	"scraper.allowed_domains",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
