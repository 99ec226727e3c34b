// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package queue provides the message transport behind the enrichment
// pipeline.
//
// Two transports are supported. The in-process gochannel transport
// serves single-binary deployments and tests. The NATS JetStream
// transport serves multi-instance deployments, with an optional
// embedded server so a single node still needs no external broker.
// Both sides speak watermill's Publisher/Subscriber interfaces, so the
// pipeline code is transport-agnostic.
package queue

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannel creates the in-process pub/sub. Messages are not
// persistent; a crash between append and enrichment loses the job,
// which is acceptable because enrichment is re-triggerable by editing
// the update.
func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	QueueGroup       string
	DurableName      string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
	MaxDeliver       int
	MaxAckPending    int
}

// DefaultNATSConfig returns production defaults for the JetStream
// transport.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:              "nats://127.0.0.1:4222",
		MaxReconnects:    -1, // retry forever
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024,
		QueueGroup:       "liveline-enrich",
		DurableName:      "liveline",
		SubscribersCount: 4,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    256,
	}
}
