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
	"context"
	"testing"
	"time"

	"github.com/AleutianAI/confx/services/confx/datatypes"
)

func TestDistributor_DeliversEnqueuedEvents(t *testing.T) {
	d := NewDistributor(NewRegistry(nil), nil)
	sub := d.Registry().Subscribe("proj-1", "env-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Enqueue(datatypes.ChangeEvent{
		Type:          datatypes.EventConfigVersionUpdated,
		ProjectID:     "proj-1",
		EnvironmentID: "env-1",
		Payload:       map[string]any{"version_number": 2},
	})

	select {
	case msg := <-sub.C:
		if msg.Event != datatypes.EventConfigVersionUpdated {
			t.Errorf("event = %q", msg.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the event")
	}

	// Cancellation closes every remaining subscriber.
	cancel()
	<-done
	select {
	case _, ok := <-sub.C:
		if ok {
			t.Error("expected the channel to be closed after shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the channel to close")
	}
}

func TestDistributor_Heartbeats(t *testing.T) {
	d := NewDistributor(NewRegistry(nil), nil)
	d.heartbeat = 10 * time.Millisecond
	sub := d.Registry().Subscribe("proj-1", "env-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	select {
	case msg := <-sub.C:
		if msg.Comment != "ping" {
			t.Errorf("expected heartbeat comment, got %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat arrived")
	}
}

func TestDistributor_EnqueueNeverBlocks(t *testing.T) {
	// No running consumer; Enqueue beyond the buffer must drop, not
	// block the caller.
	d := NewDistributor(NewRegistry(nil), nil)
	for i := 0; i < eventBuffer*2; i++ {
		d.Enqueue(datatypes.ChangeEvent{Type: datatypes.EventConfigVersionUpdated})
	}
}
