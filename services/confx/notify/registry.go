// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify distributes config change notifications to live
// subscribers.
//
// The Registry is the single owner of the subscriber map and its
// locking discipline; callers register, deregister, and broadcast
// through it and never touch the map. The Distributor (distributor.go)
// feeds the registry asynchronously from the write path and drives the
// heartbeat.
package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber message buffer. A subscriber
// that cannot drain this many pending messages is treated as dead and
// removed, so one stalled connection never blocks a broadcast.
const subscriberBuffer = 16

// Message is one unit on a subscriber's stream: either a named event
// with a payload or a keep-alive comment.
type Message struct {
	// Event is the SSE event name; empty for a keep-alive comment.
	Event   string
	Payload any
	Comment string
}

// Subscriber is one live listener on a (project, environment) stream.
//
// Consume messages from C until it is closed; the registry closes it
// when the subscriber is removed (deregistration, failed delivery, or
// registry shutdown).
type Subscriber struct {
	ID            string
	ProjectID     string
	EnvironmentID string
	C             <-chan Message

	ch chan Message

	// mu guards closed so a concurrent deregistration can never race a
	// send into a closed channel. Sends are non-blocking, so the lock
	// is only ever held momentarily.
	mu     sync.Mutex
	closed bool
}

// send attempts non-blocking delivery. It reports false if the
// subscriber is closed or its buffer is full.
func (s *Subscriber) send(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Registry is the concurrency-safe subscriber registry keyed by
// project+environment.
//
// Locking discipline: the lock guards only map membership. Delivery
// happens over buffered channels outside the lock, so a slow or failed
// send to one subscriber never blocks registration, other deliveries,
// or the heartbeat.
type Registry struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscriber // streamKey → subscriberID → sub
	logger *slog.Logger
}

// NewRegistry creates an empty registry. logger may be nil.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		subs:   make(map[string]map[string]*Subscriber),
		logger: logger,
	}
}

func streamKey(projectID, envID string) string {
	return projectID + ":" + envID
}

// Subscribe registers a new subscriber for the stream.
func (r *Registry) Subscribe(projectID, envID string) *Subscriber {
	sub := &Subscriber{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		EnvironmentID: envID,
		ch:            make(chan Message, subscriberBuffer),
	}
	sub.C = sub.ch

	key := streamKey(projectID, envID)
	r.mu.Lock()
	bucket, ok := r.subs[key]
	if !ok {
		bucket = make(map[string]*Subscriber)
		r.subs[key] = bucket
	}
	bucket[sub.ID] = sub
	count := len(bucket)
	r.mu.Unlock()

	r.logger.Info("subscriber registered",
		"project_id", projectID,
		"environment_id", envID,
		"subscriber_id", sub.ID,
		"stream_subscribers", count)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// more than once; later broadcasts skip the handle immediately.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	key := streamKey(sub.ProjectID, sub.EnvironmentID)
	r.mu.Lock()
	if bucket, ok := r.subs[key]; ok {
		if _, present := bucket[sub.ID]; present {
			delete(bucket, sub.ID)
			if len(bucket) == 0 {
				delete(r.subs, key)
			}
		}
	}
	r.mu.Unlock()
	sub.close()
}

// Broadcast delivers msg to every subscriber of (projectID, envID).
// An empty envID addresses every environment stream of the project.
//
// Delivery to each handle is non-blocking: a subscriber whose buffer is
// full is removed and its channel closed, and delivery to the remaining
// subscribers continues.
func (r *Registry) Broadcast(projectID, envID string, msg Message) {
	r.broadcast(r.snapshot(projectID, envID), msg)
}

// Heartbeat sends a keep-alive comment to every subscriber, reaping any
// whose buffer is full.
func (r *Registry) Heartbeat() {
	r.broadcast(r.snapshotAll(), Message{Comment: "ping"})
}

// Count returns the number of live subscribers across all streams.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, bucket := range r.subs {
		n += len(bucket)
	}
	return n
}

// Close removes every subscriber, closing their channels.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.subs
	r.subs = make(map[string]map[string]*Subscriber)
	r.mu.Unlock()
	for _, bucket := range all {
		for _, sub := range bucket {
			sub.close()
		}
	}
}

func (r *Registry) snapshot(projectID, envID string) []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Subscriber
	if envID != "" {
		for _, sub := range r.subs[streamKey(projectID, envID)] {
			out = append(out, sub)
		}
		return out
	}
	prefix := projectID + ":"
	for key, bucket := range r.subs {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			for _, sub := range bucket {
				out = append(out, sub)
			}
		}
	}
	return out
}

func (r *Registry) snapshotAll() []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Subscriber
	for _, bucket := range r.subs {
		for _, sub := range bucket {
			out = append(out, sub)
		}
	}
	return out
}

func (r *Registry) broadcast(targets []*Subscriber, msg Message) {
	var dead []*Subscriber
	for _, sub := range targets {
		if !sub.send(msg) {
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		r.logger.Warn("subscriber not draining, removing",
			"project_id", sub.ProjectID,
			"environment_id", sub.EnvironmentID,
			"subscriber_id", sub.ID)
		r.Unsubscribe(sub)
	}
}
