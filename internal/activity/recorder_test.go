// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/liveline/internal/store"
)

func TestSamplePublishesCountsAndHistory(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	events := store.NewEventStore(s)
	activity := store.NewActivityStore(s, time.Minute)
	if _, err := events.Create(ctx, "ev", "title", store.EventProperties{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, visitor := range []string{"v1", "v2"} {
		if err := activity.Touch(ctx, "ev", visitor); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}

	r := NewRecorder(activity, events, nil, time.Minute)
	r.sample(ctx)

	got, err := events.Get(ctx, "ev")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ActiveVisitors != 2 {
		t.Errorf("ActiveVisitors = %d, want 2", got.ActiveVisitors)
	}

	samples, err := activity.History(ctx, "ev", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(samples) != 1 || samples[0].Count != 2 {
		t.Errorf("history = %+v, want one sample of 2", samples)
	}
}

func TestSampleSkipsDeletedEvents(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	events := store.NewEventStore(s)
	activity := store.NewActivityStore(s, time.Minute)

	// Touches for an event that no longer exists in the store.
	if err := activity.Touch(ctx, "ghost", "v1"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	r := NewRecorder(activity, events, nil, time.Minute)
	r.sample(ctx) // must not panic or record history for the ghost

	samples, err := activity.History(ctx, "ghost", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("history for missing event = %+v, want none", samples)
	}
}

type countingGC struct {
	calls int
	err   error
}

func (g *countingGC) RunGC() error {
	g.calls++
	return g.err
}

func TestSampleRunsGarbageCollection(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	gc := &countingGC{}
	r := NewRecorder(store.NewActivityStore(s, time.Minute), store.NewEventStore(s), gc, time.Minute)

	r.sample(ctx)
	r.sample(ctx)
	if gc.calls != 2 {
		t.Errorf("GC calls = %d, want one per sample", gc.calls)
	}

	// A GC error is logged, not fatal to the sampling pass.
	gc.err = errors.New("gc broke")
	r.sample(ctx)
	if gc.calls != 3 {
		t.Errorf("GC calls = %d, want 3", gc.calls)
	}

	// The real store's GC must be callable against this engine too.
	if err := s.RunGC(); err != nil {
		t.Errorf("RunGC: %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	r := NewRecorder(store.NewActivityStore(s, time.Minute), store.NewEventStore(s), nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
