package datadog

import (
	"testing"

	"foodwatch/internal/metrics"
)

/*
TestNewBackend covers construction: the address is mandatory, and a fully
configured backend (namespace plus global tags) must build against a plain
UDP address without a live agent behind it.
*/
func TestNewBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected error for empty Addr")
	}

	b, err := NewBackend(Config{
		Addr:       "127.0.0.1:18125",
		Namespace:  "foodwatch.",
		GlobalTags: []string{"env:test", "service:foodwatch"},
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if b.client == nil {
		t.Fatal("backend built without a client")
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

// TestEmitAndFlush sends one of each observation kind through a real client
// pointed at an unused UDP port; none of the calls may error or panic.
func TestEmitAndFlush(t *testing.T) {
	t.Parallel()

	b, err := NewBackend(Config{Addr: "127.0.0.1:18126"})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter("foodwatch_rows_total", 3, metrics.Labels{"job": "test", "kind": "parsed"})
	b.ObserveHistogram("foodwatch_step_duration_seconds", 1.25, metrics.Labels{"job": "test", "step": "fetch"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

// TestNilClientGuards verifies a zero-value Backend is inert.
func TestNilClientGuards(t *testing.T) {
	t.Parallel()

	var b Backend
	b.IncCounter("foodwatch_rows_total", 1, nil)
	b.ObserveHistogram("foodwatch_step_duration_seconds", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush on zero-value backend: %v", err)
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %v, want nil", got)
	}

	tags := labelsToTags(metrics.Labels{"job": "ingest", "reason": "no_price"})
	if len(tags) != 2 {
		t.Fatalf("tags: %v, want 2 entries", tags)
	}
	seen := map[string]bool{}
	for _, tag := range tags {
		seen[tag] = true
	}
	if !seen["job:ingest"] || !seen["reason:no_price"] {
		t.Fatalf("tags: %v, want job:ingest and reason:no_price", tags)
	}
}
