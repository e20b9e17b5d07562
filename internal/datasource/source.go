// Package datasource delivers period snapshots to a view asynchronously
// from a local store or a remote period server.
package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/model"
)

// Fetcher retrieves periods. kb.Store and periodrpc.Client satisfy it.
type Fetcher interface {
	Periods(ctx context.Context) (model.Range, error)
	Fetch(ctx context.Context, period int) (*model.Snapshot, error)
}

// Event is published to subscribers. It is either an EventSnapshot or an
// EventBusy.
type Event interface {
	isEvent()
}

// EventSnapshot carries the outcome of a period request. Snapshot is nil
// when the period is out of range or the fetch failed; Err says which.
// Cursor is the source's period after the request.
type EventSnapshot struct {
	Period   int
	Cursor   int
	Snapshot *model.Snapshot
	Err      error
}

// EventBusy reports that a request started or finished.
type EventBusy struct {
	Busy bool
}

func (EventSnapshot) isEvent() {}
func (EventBusy) isEvent()     {}

// Option customises Source construction.
type Option func(*Source)

// WithFetchTimeout bounds each fetch. Zero means no bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Source) {
		s.timeout = d
	}
}

// Source owns the period cursor and issues at most one fetch at a time.
// Requests made while a fetch is outstanding are dropped, except Refresh,
// which is deferred until the fetch completes.
type Source struct {
	mu sync.Mutex

	fetcher Fetcher
	log     logging.Logger
	timeout time.Duration

	ctx    context.Context
	rng    model.Range
	cursor int
	busy   bool
	// refresh is set when Refresh was called while busy.
	refresh bool

	nextSub int
	subs    map[int]func(Event)

	wg sync.WaitGroup
}

// New returns a Source over fetcher. Call Start before issuing requests.
func New(fetcher Fetcher, log logging.Logger, opts ...Option) *Source {
	s := &Source{
		fetcher: fetcher,
		log:     logging.OrNoop(log).With(logging.Component("datasource")),
		ctx:     context.Background(),
		rng:     model.EmptyRange,
		subs:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start discovers the period range and requests the first period. ctx bounds
// every later fetch.
func (s *Source) Start(ctx context.Context) error {
	rng, err := s.fetcher.Periods(ctx)
	if err != nil {
		return errors.Wrap(err, "discover periods")
	}

	s.mu.Lock()
	s.ctx = ctx
	s.rng = rng
	s.cursor = rng.First
	s.mu.Unlock()

	s.log.Info(ctx, "period range discovered", logging.String("range", rng.String()))
	if rng.Empty() {
		s.publish(EventSnapshot{Period: rng.First, Cursor: rng.First, Err: rng.Check(rng.First)})
		return nil
	}
	s.Load(rng.First)
	return nil
}

// RequestNext requests the period after the cursor.
func (s *Source) RequestNext() {
	s.mu.Lock()
	target := s.cursor + 1
	s.mu.Unlock()
	s.Load(target)
}

// RequestPrevious requests the period before the cursor.
func (s *Source) RequestPrevious() {
	s.mu.Lock()
	target := s.cursor - 1
	s.mu.Unlock()
	s.Load(target)
}

// Load requests period. It reports false when the request was dropped
// because another one is outstanding.
func (s *Source) Load(period int) bool {
	return s.request(period, false)
}

// Refresh re-discovers the range and re-delivers the cursor period, clamped
// into the new range. It is used after the underlying periods changed. When
// a fetch is outstanding it reports false and the refresh runs once that
// fetch completes.
func (s *Source) Refresh() bool {
	s.mu.Lock()
	if s.busy {
		s.refresh = true
		s.mu.Unlock()
		s.log.Debug(context.Background(), "refresh deferred while busy")
		return false
	}
	cursor := s.cursor
	s.mu.Unlock()
	if s.request(cursor, true) {
		return true
	}
	// Lost the race to another request; run after it.
	s.mu.Lock()
	s.refresh = true
	s.mu.Unlock()
	s.retryDeferred()
	return false
}

// Range returns the last discovered period range.
func (s *Source) Range() model.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng
}

// Busy reports whether a fetch is outstanding.
func (s *Source) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Cursor returns the period last delivered successfully.
func (s *Source) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Wait blocks until no fetch is outstanding.
func (s *Source) Wait() {
	s.wg.Wait()
}

// Subscribe registers a callback for source events. It returns an unsubscribe function.
func (s *Source) Subscribe(fn func(Event)) (unsubscribe func()) {
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

func (s *Source) request(period int, rediscover bool) bool {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.log.Debug(context.Background(), "request dropped while busy", logging.Period(period))
		return false
	}
	s.busy = true
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.publish(EventBusy{Busy: true})
		ev := s.fetch(ctx, period, rediscover)
		s.publish(ev)

		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		s.publish(EventBusy{Busy: false})
		s.retryDeferred()
	}()
	return true
}

// retryDeferred issues a deferred refresh if one is pending and the source
// is idle. A busy source retries when its current fetch completes.
func (s *Source) retryDeferred() {
	s.mu.Lock()
	if !s.refresh || s.busy {
		s.mu.Unlock()
		return
	}
	s.refresh = false
	s.mu.Unlock()
	s.Refresh()
}

func (s *Source) fetch(ctx context.Context, period int, rediscover bool) EventSnapshot {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if rediscover {
		rng, err := s.fetcher.Periods(ctx)
		if err != nil {
			return s.failed(ctx, period, errors.Wrap(err, "rediscover periods"))
		}
		if !rng.Empty() {
			period = min(max(period, rng.First), rng.Last)
		}
		s.mu.Lock()
		s.rng = rng
		s.mu.Unlock()
	}

	if err := s.Range().Check(period); err != nil {
		return s.failed(ctx, period, err)
	}
	snap, err := s.fetcher.Fetch(ctx, period)
	if err != nil {
		return s.failed(ctx, period, errors.Wrapf(err, "fetch period %d", period))
	}

	s.mu.Lock()
	s.cursor = period
	s.mu.Unlock()
	s.log.Debug(ctx, "period delivered", logging.Period(period), logging.Int("elements", snap.Len()))
	return EventSnapshot{Period: period, Cursor: period, Snapshot: snap}
}

func (s *Source) failed(ctx context.Context, period int, err error) EventSnapshot {
	if errors.Is(err, model.ErrPeriodOutOfRange) {
		s.log.Debug(ctx, "period out of range", logging.Period(period))
	} else {
		s.log.Warn(ctx, "period fetch failed", logging.Period(period), logging.Err(err))
	}
	return EventSnapshot{Period: period, Cursor: s.Cursor(), Err: err}
}

func (s *Source) publish(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(ev)
	}
}
