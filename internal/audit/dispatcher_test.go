package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher must be nil")
	}

	// A nil dispatcher is safe to use.
	d.Emit(context.Background(), Event{EventType: "x"})
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports zero drops")
	}
	d.Close()
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	received := 0
	for {
		select {
		case <-sink.Events():
			received++
			if received == 5 {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d events, want 5", received)
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A sink that blocks forever keeps the buffer occupied.
	blocked := make(chan struct{})
	sink := sinkFunc(func(context.Context, Event) { <-blocked })

	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer close(blocked)

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 {
		d.Emit(context.Background(), Event{EventType: "x"})
		if time.Now().After(deadline) {
			t.Fatal("expected drops once the buffer filled")
		}
	}
}

type sinkFunc func(ctx context.Context, event Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp:   time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		EventType:   "login_success",
		PrincipalID: "p1",
		Success:     true,
	})

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.EventType != "login_success" || decoded.PrincipalID != "p1" {
		t.Fatalf("roundtrip mismatch: %+v", decoded)
	}
}
