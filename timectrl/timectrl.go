// Package timectrl drives autoplay: a Player beats at a fixed interval and
// notifies listeners, which step the viewer to the next period.
package timectrl

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Player ticks at Interval and invokes listeners with the beat number,
// starting at 1.
type Player struct {
	mu       sync.RWMutex
	Interval time.Duration

	beats     int
	listeners []func(beat int)
}

// NewPlayer constructs a Player. A non-positive interval defaults to one
// second.
func NewPlayer(interval time.Duration) *Player {
	if interval <= 0 {
		interval = time.Second
	}
	return &Player{Interval: interval}
}

// AddListener registers a callback invoked on every beat.
func (p *Player) AddListener(fn func(beat int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Beats returns how many beats have fired.
func (p *Player) Beats() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.beats
}

// Start runs the player in a separate goroutine until ctx ends or, when
// limit is positive, limit beats have fired. It returns a channel that is
// closed when the player finishes.
func (p *Player) Start(ctx context.Context, limit int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		for {
			if limit > 0 && p.Beats() >= limit {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			p.mu.Lock()
			p.beats++
			beat := p.beats
			listeners := slices.Clone(p.listeners)
			p.mu.Unlock()

			for _, fn := range listeners {
				fn(beat)
			}
		}
	}()
	return done
}
