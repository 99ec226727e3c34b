// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package activity turns raw visitor touches into per-event visitor
// counts and a history time series.
package activity

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/liveline/internal/logging"
	"github.com/tomtom215/liveline/internal/store"
)

// DefaultInterval is how often the recorder samples activity.
const DefaultInterval = time.Minute

// GarbageCollector runs one round of storage garbage collection.
// Implemented by the store; the recorder tick doubles as the GC
// heartbeat.
type GarbageCollector interface {
	RunGC() error
}

// Recorder periodically flushes buffered touches, counts active
// visitors per event, publishes the counts onto the event records, and
// appends history samples. It runs as a supervised service.
type Recorder struct {
	activity *store.ActivityStore
	events   *store.EventStore
	gc       GarbageCollector
	interval time.Duration
}

// NewRecorder creates a recorder. gc may be nil; interval <= 0 selects
// DefaultInterval.
func NewRecorder(activity *store.ActivityStore, events *store.EventStore, gc GarbageCollector, interval time.Duration) *Recorder {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Recorder{activity: activity, events: events, gc: gc, interval: interval}
}

// Serve runs the sampling loop until the context is canceled. A final
// flush runs on the way out so buffered touches survive restarts.
func (r *Recorder) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := r.activity.Flush(); err != nil {
				logging.Warn().Err(err).Msg("Final activity flush failed")
			}
			return ctx.Err()
		case <-ticker.C:
			r.sample(ctx)
		}
	}
}

// sample runs one recording pass. Per-event failures are logged and
// skipped; one bad event must not starve the rest.
func (r *Recorder) sample(ctx context.Context) {
	if err := r.activity.Flush(); err != nil {
		logging.Warn().Err(err).Msg("Activity flush failed")
		return
	}

	eventIDs, err := r.activity.TrackedEvents(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Listing tracked events failed")
		return
	}

	for _, eventID := range eventIDs {
		count, err := r.activity.CountActive(ctx, eventID)
		if err != nil {
			logging.Warn().Err(err).Str("event_id", eventID).Msg("Counting active visitors failed")
			continue
		}

		if err := r.events.UpdateActiveVisitors(ctx, eventID, count); err != nil {
			// Touches can outlive a deleted event until their TTL runs
			// out; nothing to publish then.
			if !errors.Is(err, store.ErrNotFound) {
				logging.Warn().Err(err).Str("event_id", eventID).Msg("Publishing visitor count failed")
			}
			continue
		}
		if err := r.activity.RecordHistory(ctx, eventID, count); err != nil {
			logging.Warn().Err(err).Str("event_id", eventID).Msg("Recording activity history failed")
		}
	}

	if r.gc != nil {
		if err := r.gc.RunGC(); err != nil {
			logging.Warn().Err(err).Msg("Value log GC failed")
		}
	}
}
