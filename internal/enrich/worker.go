// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/liveline/internal/logging"
	"github.com/tomtom215/liveline/internal/mediacache"
	"github.com/tomtom215/liveline/internal/metrics"
	"github.com/tomtom215/liveline/internal/models"
	"github.com/tomtom215/liveline/internal/scraper"
	"github.com/tomtom215/liveline/internal/store"
)

// Enrichment defaults. MaxWidth matches the timeline column; MaxEmbeds
// caps how much third-party content one update can pull in.
const (
	DefaultMaxWidth  = 485
	DefaultMaxEmbeds = 15
)

// Options tune how the worker resolves and renders embeds.
type Options struct {
	Autoplay  bool
	MaxWidth  int
	MaxEmbeds int
}

// DefaultOptions returns production enrichment defaults.
func DefaultOptions() Options {
	return Options{MaxWidth: DefaultMaxWidth, MaxEmbeds: DefaultMaxEmbeds}
}

// Broadcaster announces ready embeds to an event's live subscribers.
type Broadcaster interface {
	Broadcast(namespace string, payload any)
}

// embedsReadyPayload is the broadcast body sent when an update gains
// embeds.
type embedsReadyPayload struct {
	UpdateID    string              `json:"liveupdate_id"`
	MediaEmbeds []models.MediaEmbed `json:"media_embeds"`
}

// broadcastEnvelope wraps broadcast payloads with their message type.
type broadcastEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Worker processes parse-embeds jobs.
//
// Outcome taxonomy: malformed payloads and vanished updates are
// dropped with an ack, fetch failures are cached per URL while the
// remaining URLs still resolve, and only store failures return an
// error so the transport redelivers.
type Worker struct {
	events      *store.EventStore
	updates     *store.UpdateLog
	cache       *mediacache.Cache
	registry    *scraper.Registry
	filter      *scraper.DomainFilter
	broadcaster Broadcaster
	opts        Options
}

// NewWorker wires the pipeline. filter and broadcaster may be nil:
// a nil filter allows all domains, a nil broadcaster drops
// announcements.
func NewWorker(
	events *store.EventStore,
	updates *store.UpdateLog,
	cache *mediacache.Cache,
	registry *scraper.Registry,
	filter *scraper.DomainFilter,
	broadcaster Broadcaster,
	opts Options,
) *Worker {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.MaxEmbeds <= 0 {
		opts.MaxEmbeds = DefaultMaxEmbeds
	}
	if filter == nil {
		filter = scraper.NewDomainFilter(nil)
	}
	return &Worker{
		events:      events,
		updates:     updates,
		cache:       cache,
		registry:    registry,
		filter:      filter,
		broadcaster: broadcaster,
		opts:        opts,
	}
}

// Handle is the watermill consumer entrypoint.
func (w *Worker) Handle(msg *message.Message) error {
	ctx := msg.Context()

	job, err := ParseJob(msg.Payload)
	if err != nil || job.Action != ActionParseEmbeds || job.EventID == "" || job.UpdateID == "" {
		metrics.RecordEnrichJob("malformed")
		logging.Warn().Err(err).
			Str("message_uuid", msg.UUID).
			Str("payload", string(msg.Payload)).
			Msg("Dropping malformed enrichment job")
		return nil
	}
	return w.process(ctx, job)
}

func (w *Worker) process(ctx context.Context, job Job) error {
	updateID, err := models.ParseUpdateID(job.UpdateID)
	if err != nil {
		metrics.RecordEnrichJob("malformed")
		logging.Warn().Err(err).Str("liveupdate_id", job.UpdateID).Msg("Dropping job with unparseable update ID")
		return nil
	}

	// The event or update may have been deleted between enqueue and
	// delivery. Stale jobs ack and vanish.
	if _, err := w.events.Get(ctx, job.EventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordEnrichJob("stale")
			logging.Debug().Str("event_id", job.EventID).Msg("Enrichment job for missing event")
			return nil
		}
		return fmt.Errorf("load event %s: %w", job.EventID, err)
	}
	update, err := w.updates.Get(ctx, job.EventID, updateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordEnrichJob("stale")
			logging.Debug().
				Str("event_id", job.EventID).
				Str("liveupdate_id", job.UpdateID).
				Msg("Enrichment job for missing update")
			return nil
		}
		return fmt.Errorf("load update %s: %w", job.UpdateID, err)
	}

	urls := w.filter.Filter(scraper.ExtractURLs(update.Body))
	if len(urls) > w.opts.MaxEmbeds {
		urls = urls[:w.opts.MaxEmbeds]
	}

	media, err := w.resolveAll(ctx, urls)
	if err != nil {
		metrics.RecordEnrichJob("failed")
		return err
	}

	// The media list is replaced wholesale so removed URLs drop their
	// embeds on re-enrichment.
	update.MediaObjects = media
	if err := w.persist(ctx, job.EventID, update); err != nil {
		metrics.RecordEnrichJob("failed")
		return err
	}

	if len(media) == 0 {
		metrics.RecordEnrichJob("empty")
		return nil
	}
	metrics.RecordEnrichJob("enriched")
	metrics.EnrichEmbedsPerUpdate.Observe(float64(len(media)))

	w.announce(job.EventID, update)
	return nil
}

// resolveAll turns URLs into media objects, consulting the cache
// before the scraper registry. A fetch failure never aborts the job:
// it caches as an error entry for that URL, which suppresses refetches
// until the entry expires, and the remaining URLs still resolve. Only
// cache I/O errors propagate.
func (w *Worker) resolveAll(ctx context.Context, urls []string) ([]models.MediaObject, error) {
	params := mediacache.Params{Autoplay: w.opts.Autoplay, MaxWidth: w.opts.MaxWidth}
	scrapeParams := scraper.Params{Autoplay: w.opts.Autoplay, MaxWidth: w.opts.MaxWidth}

	var media []models.MediaObject
	for _, url := range urls {
		entry, found, err := w.cache.Get(ctx, url, params)
		if err != nil {
			return nil, fmt.Errorf("media cache lookup %s: %w", url, err)
		}
		if found {
			if !entry.IsError() && entry.Media != nil {
				media = append(media, *entry.Media)
			}
			continue
		}

		obj, err := w.registry.Resolve(ctx, url, scrapeParams)
		if err != nil {
			var fe *scraper.FetchError
			if errors.As(err, &fe) {
				if cacheErr := w.cache.PutError(ctx, url, params, err.Error()); cacheErr != nil {
					logging.Warn().Err(cacheErr).Str("url", url).Msg("Failed to cache scrape error")
				}
				continue
			}
			return nil, fmt.Errorf("scrape %s: %w", url, err)
		}

		if err := w.cache.PutMedia(ctx, url, params, obj); err != nil {
			logging.Warn().Err(err).Str("url", url).Msg("Failed to cache scrape result")
		}
		if obj != nil {
			media = append(media, *obj)
		}
	}
	return media, nil
}

// persist writes the enriched update back. A concurrent edit between
// load and write surfaces as a revision conflict; the worker reloads
// once, reapplies the media list, and retries.
func (w *Worker) persist(ctx context.Context, eventID string, update *models.LiveUpdate) error {
	err := w.updates.Append(ctx, eventID, update, false)
	if !errors.Is(err, store.ErrRevisionConflict) {
		return err
	}

	fresh, err := w.updates.Get(ctx, eventID, update.ID)
	if err != nil {
		return fmt.Errorf("reload after revision conflict: %w", err)
	}
	fresh.MediaObjects = update.MediaObjects
	if err := w.updates.Append(ctx, eventID, fresh, false); err != nil {
		return fmt.Errorf("retry after revision conflict: %w", err)
	}
	*update = *fresh
	return nil
}

func (w *Worker) announce(eventID string, update *models.LiveUpdate) {
	if w.broadcaster == nil {
		return
	}
	embeds := update.Embeds()
	if len(embeds) == 0 {
		return
	}

	w.broadcaster.Broadcast("event:"+eventID, broadcastEnvelope{
		Type: "embeds_ready",
		Payload: embedsReadyPayload{
			UpdateID:    update.ID.String(),
			MediaEmbeds: embeds,
		},
	})
	metrics.RecordBroadcast()
}
