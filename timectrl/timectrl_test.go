package timectrl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPlayerStopsAfterLimit(t *testing.T) {
	p := NewPlayer(5 * time.Millisecond)
	var last atomic.Int64
	p.AddListener(func(beat int) { last.Store(int64(beat)) })

	<-p.Start(context.Background(), 3)

	if got := p.Beats(); got != 3 {
		t.Fatalf("Beats() = %d, want 3", got)
	}
	if got := last.Load(); got != 3 {
		t.Fatalf("last beat = %d, want 3", got)
	}
}

func TestPlayerStopsOnCancel(t *testing.T) {
	p := NewPlayer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := p.Start(ctx, 0)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("player did not stop after cancel")
	}
	if got := p.Beats(); got != 0 {
		t.Fatalf("Beats() = %d, want 0", got)
	}
}

func TestNewPlayerDefaultsInterval(t *testing.T) {
	if got := NewPlayer(0).Interval; got != time.Second {
		t.Fatalf("Interval = %v, want 1s", got)
	}
}
