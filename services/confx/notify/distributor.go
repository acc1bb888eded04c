// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify - asynchronous change-event dispatch.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/confx/services/confx/datatypes"
)

const (
	// HeartbeatInterval is how often keep-alive comments go out,
	// independent of publish activity. It must stay comfortably under
	// IdleTimeout so dead connections are detected and reaped first.
	HeartbeatInterval = 25 * time.Second

	// IdleTimeout is how long a subscriber connection may live before
	// the server closes it; clients are expected to silently reconnect.
	IdleTimeout = 30 * time.Minute

	// eventBuffer is the capacity of the write-path → distributor
	// channel. Enqueue never blocks the publish transaction; if the
	// buffer is full the event is dropped with a warning.
	eventBuffer = 256
)

// Distributor consumes change events enqueued by the write path and
// fans them out through the registry, decoupling publish latency from
// subscriber delivery. It also drives the periodic heartbeat.
type Distributor struct {
	registry *Registry
	events   chan datatypes.ChangeEvent
	logger   *slog.Logger

	heartbeat time.Duration

	// OnBroadcast, when set, observes each event type as it is fanned
	// out. Used to feed metrics without coupling to the registry.
	OnBroadcast func(eventType string)
}

// NewDistributor creates a distributor over the registry. logger may be
// nil.
func NewDistributor(registry *Registry, logger *slog.Logger) *Distributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{
		registry:  registry,
		events:    make(chan datatypes.ChangeEvent, eventBuffer),
		logger:    logger,
		heartbeat: HeartbeatInterval,
	}
}

// Registry returns the subscriber registry the distributor feeds.
func (d *Distributor) Registry() *Registry { return d.registry }

// Enqueue hands a change event to the distributor without blocking.
// Called from the write path after a successful publish or delete; the
// caller's response never waits on subscriber delivery.
func (d *Distributor) Enqueue(event datatypes.ChangeEvent) {
	select {
	case d.events <- event:
	default:
		d.logger.Warn("notification buffer full, dropping change event",
			"type", event.Type,
			"project_id", event.ProjectID)
	}
}

// Run consumes events and emits heartbeats until ctx is cancelled, then
// closes every remaining subscriber. Call in its own goroutine.
func (d *Distributor) Run(ctx context.Context) {
	ticker := time.NewTicker(d.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.registry.Close()
			return
		case event := <-d.events:
			d.logger.Debug("broadcasting change event",
				"type", event.Type,
				"project_id", event.ProjectID,
				"environment_id", event.EnvironmentID)
			d.registry.Broadcast(event.ProjectID, event.EnvironmentID, Message{
				Event:   event.Type,
				Payload: event.Payload,
			})
			if d.OnBroadcast != nil {
				d.OnBroadcast(event.Type)
			}
		case <-ticker.C:
			d.registry.Heartbeat()
		}
	}
}
