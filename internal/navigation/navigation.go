// Package navigation steps through simulation periods, one outstanding
// request at a time.
package navigation

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/model"
)

// ErrBusy is returned when a step is requested while a fetch is outstanding.
var ErrBusy = errors.New("navigation busy")

// Direction of a navigation step.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "prev"
	}
	return "next"
}

// Source issues period requests. datasource.Source satisfies it.
type Source interface {
	RequestNext()
	RequestPrevious()
	Range() model.Range
}

// MetricsRecorder captures navigation metrics.
type MetricsRecorder interface {
	RecordNavigation(direction, result string)
}

// Option customises Controller construction.
type Option func(*Controller)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// Controller tracks the current period index and the data source's busy
// flag.
type Controller struct {
	mu sync.Mutex

	source  Source
	log     logging.Logger
	metrics MetricsRecorder

	index int
	busy  bool
}

// New returns a controller positioned at start.
func New(source Source, start int, log logging.Logger, opts ...Option) *Controller {
	c := &Controller{
		source: source,
		index:  start,
		log:    logging.OrNoop(log).With(logging.Component("navigation")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Advance requests the next period.
func (c *Controller) Advance() error {
	return c.step(Forward)
}

// Retreat requests the previous period.
func (c *Controller) Retreat() error {
	return c.step(Backward)
}

// Step moves one period in dir.
func (c *Controller) Step(dir Direction) error {
	return c.step(dir)
}

func (c *Controller) step(dir Direction) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		c.record(dir, "busy")
		return ErrBusy
	}
	target := c.index + 1
	if dir == Backward {
		target = c.index - 1
	}
	if err := c.source.Range().Check(target); err != nil {
		c.mu.Unlock()
		c.record(dir, "out_of_range")
		return err
	}
	c.index = target
	c.busy = true
	c.mu.Unlock()

	c.record(dir, "accepted")
	c.log.Debug(context.Background(), "period requested",
		logging.String("direction", dir.String()),
		logging.Period(target),
	)
	// The source may publish busy events synchronously, so call it unlocked.
	if dir == Backward {
		c.source.RequestPrevious()
	} else {
		c.source.RequestNext()
	}
	return nil
}

// SetBusy mirrors the data source's busy flag.
func (c *Controller) SetBusy(busy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = busy
}

// Settle aligns the index with the period the source actually delivered.
func (c *Controller) Settle(period int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = period
}

// Index returns the current period index.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Busy reports whether a request is outstanding.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) record(dir Direction, result string) {
	if c.metrics != nil {
		c.metrics.RecordNavigation(dir.String(), result)
	}
}

// Range returns the source's period range.
func (c *Controller) Range() model.Range {
	return c.source.Range()
}
