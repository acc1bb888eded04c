// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"testing"
)

func drainOne(t *testing.T, sub *Subscriber) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C:
		if !ok {
			t.Fatal("subscriber channel closed unexpectedly")
		}
		return msg
	default:
		t.Fatal("expected a pending message")
	}
	return Message{}
}

func TestBroadcast_TargetsOneStream(t *testing.T) {
	r := NewRegistry(nil)
	prodSub := r.Subscribe("proj-1", "env-prod")
	stageSub := r.Subscribe("proj-1", "env-stage")
	otherSub := r.Subscribe("proj-2", "env-prod")

	r.Broadcast("proj-1", "env-prod", Message{Event: "CONFIG_VERSION_UPDATED"})

	msg := drainOne(t, prodSub)
	if msg.Event != "CONFIG_VERSION_UPDATED" {
		t.Errorf("event = %q", msg.Event)
	}
	select {
	case <-stageSub.C:
		t.Error("staging subscriber must not receive a production event")
	default:
	}
	select {
	case <-otherSub.C:
		t.Error("other project's subscriber must not receive the event")
	default:
	}
}

func TestBroadcast_EmptyEnvironmentIsProjectWide(t *testing.T) {
	r := NewRegistry(nil)
	prodSub := r.Subscribe("proj-1", "env-prod")
	stageSub := r.Subscribe("proj-1", "env-stage")
	otherSub := r.Subscribe("proj-2", "env-prod")

	r.Broadcast("proj-1", "", Message{Event: "CONFIG_ITEM_DELETED"})

	drainOne(t, prodSub)
	drainOne(t, stageSub)
	select {
	case <-otherSub.C:
		t.Error("project-wide broadcast leaked into another project")
	default:
	}
}

func TestBroadcast_ReapsStalledSubscriber(t *testing.T) {
	r := NewRegistry(nil)
	stalled := r.Subscribe("proj-1", "env-1")
	healthy := r.Subscribe("proj-1", "env-1")

	// Fill the stalled subscriber's buffer; the healthy one drains.
	for i := 0; i <= subscriberBuffer; i++ {
		r.Broadcast("proj-1", "env-1", Message{Event: "CONFIG_VERSION_UPDATED"})
		drainOne(t, healthy)
	}

	if got := r.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1 after reaping", got)
	}

	// The stalled subscriber's channel is closed after its buffered
	// messages are drained.
	for i := 0; i < subscriberBuffer; i++ {
		<-stalled.C
	}
	if _, ok := <-stalled.C; ok {
		t.Error("stalled subscriber channel should be closed")
	}

	// The healthy subscriber keeps receiving.
	r.Broadcast("proj-1", "env-1", Message{Event: "CONFIG_VERSION_UPDATED"})
	drainOne(t, healthy)
}

func TestHeartbeat_ReachesEveryStream(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Subscribe("proj-1", "env-1")
	b := r.Subscribe("proj-2", "env-9")

	r.Heartbeat()

	for _, sub := range []*Subscriber{a, b} {
		msg := drainOne(t, sub)
		if msg.Event != "" || msg.Comment != "ping" {
			t.Errorf("heartbeat message = %+v", msg)
		}
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	r := NewRegistry(nil)
	sub := r.Subscribe("proj-1", "env-1")

	r.Unsubscribe(sub)
	r.Unsubscribe(sub)

	if got := r.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Broadcasting to an empty stream is a no-op.
	r.Broadcast("proj-1", "env-1", Message{Event: "CONFIG_VERSION_UPDATED"})
}

func TestClose_DropsEverySubscriber(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Subscribe("proj-1", "env-1")
	b := r.Subscribe("proj-2", "env-2")

	r.Close()

	if got := r.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	for _, sub := range []*Subscriber{a, b} {
		if _, ok := <-sub.C; ok {
			t.Error("channel should be closed after registry Close")
		}
	}
}
