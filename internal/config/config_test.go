// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Scraper.MaxWidth != 485 || cfg.Scraper.MaxEmbeds != 15 {
		t.Errorf("unexpected scraper defaults: %+v", cfg.Scraper)
	}
	if cfg.Queue.Mode != "channel" {
		t.Errorf("Queue.Mode = %q, want channel", cfg.Queue.Mode)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("LIVELINE_SERVER_PORT", "9000")
	t.Setenv("LIVELINE_LOG_LEVEL", "debug")
	t.Setenv("LIVELINE_SCRAPER_ALLOWED_DOMAINS", "twitter.com, youtube.com")
	t.Setenv("LIVELINE_ACTIVITY_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Scraper.AllowedDomains) != 2 || cfg.Scraper.AllowedDomains[1] != "youtube.com" {
		t.Errorf("AllowedDomains = %v", cfg.Scraper.AllowedDomains)
	}
	if cfg.Activity.TTL != 5*time.Minute {
		t.Errorf("Activity.TTL = %v, want 5m", cfg.Activity.TTL)
	}
}

func TestLoadIgnoresUnmappedEnv(t *testing.T) {
	t.Setenv("LIVELINE_NO_SUCH_KEY", "surprise")

	if _, err := Load(); err != nil {
		t.Fatalf("load with unmapped env var: %v", err)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7000\nscraper:\n  max_embeds: 3\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000 from file", cfg.Server.Port)
	}
	if cfg.Scraper.MaxEmbeds != 3 {
		t.Errorf("MaxEmbeds = %d, want 3 from file", cfg.Scraper.MaxEmbeds)
	}
	// File must not disturb untouched defaults.
	if cfg.Scraper.MaxWidth != 485 {
		t.Errorf("MaxWidth = %d, want default 485", cfg.Scraper.MaxWidth)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LIVELINE_SERVER_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want env override 9000", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"bad queue mode", func(c *Config) { c.Queue.Mode = "rabbit" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"zero max embeds", func(c *Config) { c.Scraper.MaxEmbeds = 0 }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"nats without url or embedded", func(c *Config) {
			c.Queue.Mode = "nats"
			c.Queue.Embedded = false
			c.Queue.URL = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
