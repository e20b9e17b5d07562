// Package kb holds the periods of a simulation run in memory.
package kb

import (
	"context"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/model"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	// EventReloaded is published after every period was replaced.
	EventReloaded EventType = iota
)

// Event is emitted to subscribers when the stored periods change.
type Event struct {
	Type  EventType
	Range model.Range
}

// Store is an in-memory, thread-safe store of period snapshots.
type Store struct {
	mu sync.RWMutex

	periods []*model.Snapshot

	nextSub int
	subs    map[int]func(Event)
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(Event))}
}

// Load validates and replaces every period, then notifies subscribers.
// On error the previous periods are kept.
func (s *Store) Load(periods []*model.Snapshot) error {
	for i, p := range periods {
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "period %d", i)
		}
	}
	copied := make([]*model.Snapshot, len(periods))
	for i, p := range periods {
		copied[i] = p.Clone()
	}

	s.mu.Lock()
	s.periods = copied
	event := Event{Type: EventReloaded, Range: model.RangeOf(len(copied))}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// LoadFile reads a results document from path and loads its periods.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read results %s", path)
	}
	periods, err := model.DecodeResults(data)
	if err != nil {
		return errors.Wrapf(err, "results %s", path)
	}
	return s.Load(periods)
}

// Get returns a copy of the snapshot for period.
func (s *Store) Get(period int) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := model.RangeOf(len(s.periods)).Check(period); err != nil {
		return nil, err
	}
	return s.periods[period].Clone(), nil
}

// Range returns the periods currently held.
func (s *Store) Range() model.Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.RangeOf(len(s.periods))
}

// Periods satisfies datasource.Fetcher.
func (s *Store) Periods(context.Context) (model.Range, error) {
	return s.Range(), nil
}

// Fetch satisfies datasource.Fetcher.
func (s *Store) Fetch(ctx context.Context, period int) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Get(period)
}

// Subscribe registers a callback for store events. It returns an unsubscribe function.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) subscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}
