// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package store

import (
	"context"
	"testing"
	"time"
)

func TestActivityTouchAndCount(t *testing.T) {
	ctx := context.Background()
	activity := NewActivityStore(newTestStore(t), time.Minute)

	for _, visitor := range []string{"v1", "v2", "v3", "v1"} {
		if err := activity.Touch(ctx, "ev", visitor); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}
	if err := activity.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	count, err := activity.CountActive(ctx, "ev")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	// Repeated touches from the same visitor count once.
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	other, err := activity.CountActive(ctx, "other")
	if err != nil {
		t.Fatalf("count other: %v", err)
	}
	if other != 0 {
		t.Errorf("count = %d, want 0 for untouched event", other)
	}
}

func TestActivityTouchInvisibleUntilFlush(t *testing.T) {
	ctx := context.Background()
	activity := NewActivityStore(newTestStore(t), time.Minute)

	if err := activity.Touch(ctx, "ev", "v1"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	count, err := activity.CountActive(ctx, "ev")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d before flush, want 0 (best-effort writes)", count)
	}
}

func TestTrackedEvents(t *testing.T) {
	ctx := context.Background()
	activity := NewActivityStore(newTestStore(t), time.Minute)

	for _, pair := range [][2]string{{"a", "v1"}, {"a", "v2"}, {"b", "v1"}} {
		if err := activity.Touch(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}
	if err := activity.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	ids, err := activity.TrackedEvents(ctx)
	if err != nil {
		t.Fatalf("tracked: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("tracked = %v, want 2 events", ids)
	}
}

func TestActivityHistory(t *testing.T) {
	ctx := context.Background()
	activity := NewActivityStore(newTestStore(t), time.Minute)

	for _, count := range []int64{5, 9, 7} {
		if err := activity.RecordHistory(ctx, "ev", count); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	samples, err := activity.History(ctx, "ev", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("len = %d, want 2", len(samples))
	}
	// Most recent first.
	if samples[0].Count != 7 || samples[1].Count != 9 {
		t.Errorf("samples = %+v, want [7 9]", samples)
	}
	if samples[0].At.Before(samples[1].At) {
		t.Errorf("samples out of order: %v before %v", samples[0].At, samples[1].At)
	}
}
