// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package main is the entry point for the liveline server.
//
// Liveline hosts live event threads: per-event, time-ordered logs of
// short text updates. Appended updates flow through an asynchronous
// enrichment pipeline that resolves URLs in the body into media embeds
// (tweets, oEmbed providers, nested liveline threads) and announces the
// results to websocket subscribers.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: koanf v2 layered loading (defaults, YAML, env)
//  2. Storage: BadgerDB engine shared by events, updates, media cache,
//     and visitor activity
//  3. Queue: in-process channel transport, or NATS JetStream with an
//     optional embedded broker
//  4. Enrichment: scraper registry, media cache, watermill consumer
//  5. WebSocket hub: per-event broadcast namespaces
//  6. HTTP server: REST API plus the websocket endpoint
//
// Everything runs under a suture supervision tree; a crash in one layer
// restarts that layer without taking down the rest.
//
// # Configuration
//
// Settings are read from built-in defaults, then an optional config
// file (LIVELINE_CONFIG or ./config.yaml), then LIVELINE_-prefixed
// environment variables. Highest priority wins.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the enrichment router finishes or acks its
// current jobs, buffered activity touches are flushed, and the store is
// closed last.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/liveline/internal/activity"
	"github.com/tomtom215/liveline/internal/api"
	"github.com/tomtom215/liveline/internal/config"
	"github.com/tomtom215/liveline/internal/enrich"
	"github.com/tomtom215/liveline/internal/logging"
	"github.com/tomtom215/liveline/internal/mediacache"
	"github.com/tomtom215/liveline/internal/queue"
	"github.com/tomtom215/liveline/internal/scraper"
	"github.com/tomtom215/liveline/internal/store"
	"github.com/tomtom215/liveline/internal/supervisor"
	"github.com/tomtom215/liveline/internal/websocket"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println("liveline " + version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", version).Msg("starting liveline")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("liveline exited with error")
	}
	logging.Info().Msg("liveline stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage engine, shared by all stores.
	s, err := store.Open(store.Config{
		Path:       cfg.Store.Path,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: cfg.Store.SyncWrites,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("store close failed")
		}
	}()

	events := store.NewEventStore(s)
	updates := store.NewUpdateLog(s)
	activityStore := store.NewActivityStore(s, cfg.Activity.TTL)
	defer func() {
		if cerr := activityStore.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("activity flush failed")
		}
	}()

	cache := mediacache.New(s.DB(), cfg.Store.MediaCacheTTL)
	registry := buildRegistry(cfg)
	filter := scraper.NewDomainFilter(cfg.Scraper.AllowedDomains)

	// Queue transport.
	wmLogger := logging.NewWatermillAdapter()
	var (
		publisher  message.Publisher
		subscriber message.Subscriber
		natsServer *queue.EmbeddedServer
	)
	switch cfg.Queue.Mode {
	case "nats":
		natsCfg := queue.DefaultNATSConfig()
		natsCfg.URL = cfg.Queue.URL
		natsCfg.QueueGroup = cfg.Queue.QueueGroup
		natsCfg.DurableName = cfg.Queue.DurableName
		natsCfg.SubscribersCount = cfg.Queue.SubscribersCount
		natsCfg.AckWaitTimeout = cfg.Queue.AckWait
		natsCfg.MaxDeliver = cfg.Queue.MaxDeliver
		natsCfg.MaxAckPending = cfg.Queue.MaxAckPending
		natsCfg.CloseTimeout = cfg.Queue.CloseTimeout

		if cfg.Queue.Embedded {
			srvCfg := queue.DefaultServerConfig()
			srvCfg.StoreDir = cfg.Queue.StoreDir
			srvCfg.JetStreamMaxMem = cfg.Queue.MaxMemory
			srvCfg.JetStreamMaxStore = cfg.Queue.MaxStore
			natsServer, err = queue.NewEmbeddedServer(srvCfg)
			if err != nil {
				return fmt.Errorf("start embedded queue server: %w", err)
			}
			natsCfg.URL = natsServer.ClientURL()
			logging.Info().Str("url", natsCfg.URL).Msg("embedded queue server ready")
		}

		publisher, err = queue.NewNATSPublisher(natsCfg, wmLogger)
		if err != nil {
			return fmt.Errorf("create queue publisher: %w", err)
		}
		subscriber, err = queue.NewNATSSubscriber(natsCfg, wmLogger)
		if err != nil {
			return fmt.Errorf("create queue subscriber: %w", err)
		}
	default:
		ch := queue.NewGoChannel(wmLogger)
		publisher, subscriber = ch, ch
	}

	// Enrichment pipeline.
	updates.SetEnqueuer(enrich.NewEnqueuer(publisher))
	hub := websocket.NewHub()
	worker := enrich.NewWorker(events, updates, cache, registry, filter, hub, enrich.Options{
		Autoplay:  cfg.Scraper.Autoplay,
		MaxWidth:  cfg.Scraper.MaxWidth,
		MaxEmbeds: cfg.Scraper.MaxEmbeds,
	})
	router, err := enrich.NewRouter(enrich.RouterConfig{
		CloseTimeout:         cfg.Queue.CloseTimeout,
		RetryMaxRetries:      cfg.Queue.RetryMaxRetries,
		RetryInitialInterval: cfg.Queue.RetryInitialInterval,
		RetryMaxInterval:     cfg.Queue.RetryMaxInterval,
		RetryMultiplier:      2.0,
	}, subscriber, publisher, worker, wmLogger)
	if err != nil {
		return fmt.Errorf("create enrichment router: %w", err)
	}

	// HTTP surface.
	handler := api.NewHandler(events, updates, activityStore, hub)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server).Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	// Supervision tree.
	tree, err := supervisor.NewSupervisorTree(
		slog.New(logging.NewSlogHandler()),
		supervisor.DefaultTreeConfig(),
	)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	recorder := activity.NewRecorder(activityStore, events, s, cfg.Activity.Interval)
	tree.AddDataService(recorder)
	tree.AddMessagingService(supervisor.NewHubService(hub))
	tree.AddMessagingService(supervisor.NewRouterService(router))
	if natsServer != nil {
		tree.AddMessagingService(supervisor.NewQueueServerService(natsServer, 10*time.Second))
	}
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, 10*time.Second))

	logging.Info().
		Str("addr", httpServer.Addr).
		Str("queue_mode", cfg.Queue.Mode).
		Msg("liveline ready")
	return ignoreCanceled(tree.Serve(ctx))
}

// buildRegistry assembles the scraper providers. Order matters: the
// most specific matcher must claim its URLs before the generic oEmbed
// provider sees them.
func buildRegistry(cfg *config.Config) *scraper.Registry {
	fetcher := scraper.NewFetcher(cfg.Scraper.FetchTimeout, cfg.Scraper.FetchRatePerSec)

	providers := []scraper.Provider{
		scraper.NewLivelineProvider(cfg.Server.PublicHosts),
		scraper.NewTwitterProvider(fetcher, cfg.Scraper.TwitterEndpoint),
		scraper.NewOEmbedProvider(fetcher, cfg.Scraper.OEmbedEndpoints),
	}
	return scraper.NewRegistry(providers...)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
