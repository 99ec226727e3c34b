// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package enrich

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Enqueuer publishes parse-embeds jobs. It satisfies the update log's
// enqueuer interface, so appends trigger enrichment without the store
// knowing about the transport.
type Enqueuer struct {
	pub message.Publisher
}

// NewEnqueuer wraps a watermill publisher.
func NewEnqueuer(pub message.Publisher) *Enqueuer {
	return &Enqueuer{pub: pub}
}

// EnqueueParseEmbeds queues one enrichment job for an update.
func (e *Enqueuer) EnqueueParseEmbeds(ctx context.Context, eventID, updateID string) error {
	payload, err := Job{
		Action:   ActionParseEmbeds,
		EventID:  eventID,
		UpdateID: updateID,
	}.Marshal()
	if err != nil {
		return fmt.Errorf("marshal parse-embeds job: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_id", eventID)
	msg.SetContext(ctx)

	if err := e.pub.Publish(TopicParseEmbeds, msg); err != nil {
		return fmt.Errorf("publish parse-embeds job: %w", err)
	}
	return nil
}
