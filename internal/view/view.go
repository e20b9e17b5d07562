// Package view runs the single event loop that ties the data source, graph
// synchronizer, overlay and navigation together. Every gesture and every
// delivered period is queued and handled on one goroutine.
package view

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/core"
	"github.com/signalsfoundry/flowview/internal/datasource"
	"github.com/signalsfoundry/flowview/internal/graphsync"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/internal/navigation"
	"github.com/signalsfoundry/flowview/internal/overlay"
	"github.com/signalsfoundry/flowview/model"
)

// DefaultQueueSize bounds the event queue.
const DefaultQueueSize = 64

// Source is the data source as seen by the view.
type Source interface {
	Subscribe(fn func(datasource.Event)) (unsubscribe func())
}

// Components are the collaborators a View coordinates. Presenter may be nil.
type Components struct {
	Source     Source
	Graph      *graphsync.Synchronizer
	Overlay    *overlay.Overlay
	Navigation *navigation.Controller
	Presenter  Presenter
}

// View owns the event queue.
type View struct {
	source    Source
	graph     *graphsync.Synchronizer
	overlay   *overlay.Overlay
	nav       *navigation.Controller
	presenter Presenter
	log       logging.Logger

	queue chan Event
	ready chan struct{}
	done  chan struct{}
}

// New returns a View with a queue of DefaultQueueSize events.
func New(c Components, log logging.Logger) *View {
	presenter := c.Presenter
	if presenter == nil {
		presenter = noopPresenter{}
	}
	return &View{
		source:    c.Source,
		graph:     c.Graph,
		overlay:   c.Overlay,
		nav:       c.Navigation,
		presenter: presenter,
		log:       logging.OrNoop(log).With(logging.Component("view")),
		queue:     make(chan Event, DefaultQueueSize),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run subscribes to the source and processes events until ctx ends. The
// subscription is released on return.
func (v *View) Run(ctx context.Context) error {
	defer close(v.done)
	unsubscribe := v.source.Subscribe(v.fromSource)
	defer unsubscribe()
	close(v.ready)

	v.log.Info(ctx, "view started")
	for {
		select {
		case <-ctx.Done():
			v.log.Info(ctx, "view stopped")
			return ctx.Err()
		case ev := <-v.queue:
			v.Handle(ctx, ev)
		}
	}
}

// Ready is closed once Run has subscribed to the source. Start the source
// after it so the first period is not missed.
func (v *View) Ready() <-chan struct{} { return v.ready }

// Post queues ev. It blocks while the queue is full and reports false once
// the view has stopped.
func (v *View) Post(ev Event) bool {
	select {
	case <-v.done:
		return false
	default:
	}
	select {
	case v.queue <- ev:
		return true
	case <-v.done:
		return false
	}
}

func (v *View) fromSource(ev datasource.Event) {
	switch e := ev.(type) {
	case datasource.EventSnapshot:
		v.Post(SnapshotArrived{Period: e.Period, Cursor: e.Cursor, Snapshot: e.Snapshot, Err: e.Err})
	case datasource.EventBusy:
		v.Post(BusyChanged{Busy: e.Busy})
	}
}

// Handle processes one event on the caller's goroutine. Run calls it for
// queued events; it must not be called concurrently with Run.
func (v *View) Handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case SnapshotArrived:
		v.snapshotArrived(ctx, e)
	case BusyChanged:
		v.log.Debug(ctx, "source busy changed", logging.Bool("busy", e.Busy))
		v.nav.SetBusy(e.Busy)
		v.presenter.NavigationChanged(v.navState())
	case OpenLabel:
		v.openLabel(ctx, e.NodeID)
	case PanStarted:
		v.overlay.PanStarted(ctx)
	case ViewportChanged:
		if err := v.overlay.Reposition(ctx); err != nil {
			v.log.Debug(ctx, "overlay reposition failed", logging.Err(err))
		}
	case Tap:
		v.tap(ctx, e.NodeID)
	case Navigate:
		if err := v.nav.Step(e.Direction); err != nil {
			v.log.Debug(ctx, "navigation refused",
				logging.String("direction", e.Direction.String()),
				logging.Err(err),
			)
		}
	default:
		v.log.Warn(ctx, "unknown view event", logging.Any("event", ev))
	}
}

func (v *View) snapshotArrived(ctx context.Context, e SnapshotArrived) {
	v.nav.Settle(e.Cursor)
	defer v.presenter.NavigationChanged(v.navState())

	if e.Snapshot == nil {
		if e.Err != nil && !errors.Is(e.Err, model.ErrPeriodOutOfRange) {
			v.log.Warn(ctx, "period unavailable", logging.Period(e.Period), logging.Err(e.Err))
		}
		return
	}

	if !v.graph.Initialized() {
		if err := v.graph.Initialize(ctx, e.Snapshot); err != nil {
			v.log.Error(ctx, "graph initialization failed", logging.Period(e.Period), logging.Err(err))
			return
		}
	} else {
		rep, err := v.graph.Apply(ctx, e.Snapshot)
		if err != nil {
			v.log.Warn(ctx, "snapshot not applied; keeping previous period",
				logging.Period(e.Period),
				logging.Err(err),
			)
			return
		}
		v.log.Debug(ctx, "period shown",
			logging.Period(e.Period),
			logging.Bool("changed", rep.Changed()),
			logging.Int("attributes_written", rep.Attributes),
		)
	}

	if st := v.overlay.State(); st.Visible() {
		v.showLabel(ctx, st.Anchor)
	}
}

func (v *View) openLabel(ctx context.Context, nodeID string) {
	d, err := core.Classify(v.graph.Current(), nodeID)
	if err != nil {
		v.log.Debug(ctx, "label not opened", logging.NodeID(nodeID), logging.Err(err))
		return
	}
	if err := v.overlay.Open(ctx, nodeID); err != nil {
		v.log.Debug(ctx, "overlay not opened", logging.NodeID(nodeID), logging.Err(err))
		return
	}
	v.presenter.ShowLabel(NewLabel(d))
}

// showLabel refreshes label content for the anchored node after a new
// period without moving the overlay.
func (v *View) showLabel(ctx context.Context, nodeID string) {
	d, err := core.Classify(v.graph.Current(), nodeID)
	if err != nil {
		v.log.Debug(ctx, "label not refreshed", logging.NodeID(nodeID), logging.Err(err))
		return
	}
	v.presenter.ShowLabel(NewLabel(d))
}

func (v *View) tap(ctx context.Context, nodeID string) {
	n, ok := v.graph.Current().Node(nodeID)
	if !ok {
		return
	}
	v.log.Debug(ctx, "node tapped", logging.NodeID(nodeID), logging.Float("demand", n.Demand))
}

func (v *View) navState() NavState {
	return NavState{Index: v.nav.Index(), Busy: v.nav.Busy(), Range: v.nav.Range()}
}
