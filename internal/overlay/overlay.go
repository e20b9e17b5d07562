// Package overlay anchors the flow label to a node of the rendered graph and
// keeps it placed under pan and zoom.
package overlay

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/core"
	"github.com/signalsfoundry/flowview/internal/logging"
)

// ErrInvalidViewport is returned when the viewport reports a zoom that
// cannot be used for projection.
var ErrInvalidViewport = errors.New("invalid viewport")

// Viewport exposes the render engine's pan/zoom state and element geometry.
type Viewport interface {
	Pan() core.Point
	Zoom() float64
	Size() core.Size
	Position(id string) (core.Point, bool)
	RenderedBox(id string) (core.Size, bool)
}

// ZoomLocker is implemented by viewports that can disable user zooming.
type ZoomLocker interface {
	SetUserZoomEnabled(enabled bool)
}

// Surface is the overlay element itself.
type Surface interface {
	Show()
	Hide()
	MoveTo(p core.Point)
	Measure() core.Size
}

// MetricsRecorder captures overlay metrics.
type MetricsRecorder interface {
	RecordOverlayOpen(result string)
}

// State is the overlay display state. An empty Anchor means hidden.
type State struct {
	X, Y   float64
	Anchor string
}

// Visible reports whether the overlay is anchored to a node.
func (s State) Visible() bool { return s.Anchor != "" }

// Option customises Overlay construction.
type Option func(*Overlay)

// WithPadding overrides core.DefaultPadding.
func WithPadding(p float64) Option {
	return func(o *Overlay) {
		o.padding = p
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *Overlay) {
		o.metrics = m
	}
}

// Overlay is a two-state machine, Hidden and Shown(nodeID).
type Overlay struct {
	mu sync.Mutex

	viewport Viewport
	surface  Surface
	padding  float64
	log      logging.Logger
	metrics  MetricsRecorder

	state State
}

// New returns a hidden overlay.
func New(viewport Viewport, surface Surface, log logging.Logger, opts ...Option) *Overlay {
	o := &Overlay{
		viewport: viewport,
		surface:  surface,
		padding:  core.DefaultPadding,
		log:      logging.OrNoop(log).With(logging.Component("overlay")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Open anchors the overlay to nodeID, from either state. On error the state
// is left as it was.
func (o *Overlay) Open(ctx context.Context, nodeID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	in, err := o.inputLocked(nodeID)
	if err != nil {
		o.record(err)
		return err
	}

	o.surface.Show()
	in.Overlay = o.surface.Measure()
	p := core.Place(in)
	o.surface.MoveTo(p)

	if !o.state.Visible() {
		if zl, ok := o.viewport.(ZoomLocker); ok {
			zl.SetUserZoomEnabled(false)
		}
	}
	o.state = State{X: p.X, Y: p.Y, Anchor: nodeID}
	o.record(nil)
	o.log.Debug(ctx, "overlay opened",
		logging.NodeID(nodeID),
		logging.Float("x", p.X),
		logging.Float("y", p.Y),
	)
	return nil
}

// Reposition recomputes placement for the anchored node after a zoom or
// viewport change. It does nothing while hidden.
func (o *Overlay) Reposition(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.Visible() {
		return nil
	}
	in, err := o.inputLocked(o.state.Anchor)
	if err != nil {
		return err
	}
	in.Overlay = o.surface.Measure()
	p := core.Place(in)
	o.surface.MoveTo(p)
	o.state.X, o.state.Y = p.X, p.Y
	return nil
}

// PanStarted hides the overlay and clears its anchor.
func (o *Overlay) PanStarted(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.Visible() {
		return
	}
	anchor := o.state.Anchor
	o.surface.Hide()
	o.state = State{}
	if zl, ok := o.viewport.(ZoomLocker); ok {
		zl.SetUserZoomEnabled(true)
	}
	o.log.Debug(ctx, "overlay closed on pan", logging.NodeID(anchor))
}

// State returns the current display state.
func (o *Overlay) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Visible reports whether the overlay is shown.
func (o *Overlay) Visible() bool {
	return o.State().Visible()
}

func (o *Overlay) inputLocked(nodeID string) (core.PlacementInput, error) {
	zoom := o.viewport.Zoom()
	if zoom <= 0 {
		return core.PlacementInput{}, errors.Wrapf(ErrInvalidViewport, "zoom %v", zoom)
	}
	pos, ok := o.viewport.Position(nodeID)
	if !ok {
		return core.PlacementInput{}, errors.Wrapf(core.ErrNodeNotFound, "position of %q", nodeID)
	}
	box, ok := o.viewport.RenderedBox(nodeID)
	if !ok {
		return core.PlacementInput{}, errors.Wrapf(core.ErrNodeNotFound, "bounding box of %q", nodeID)
	}
	return core.PlacementInput{
		Node:    pos,
		Pan:     o.viewport.Pan(),
		Zoom:    zoom,
		NodeBox: box,
		Canvas:  o.viewport.Size(),
		Padding: o.padding,
	}, nil
}

func (o *Overlay) record(err error) {
	if o.metrics == nil {
		return
	}
	switch {
	case err == nil:
		o.metrics.RecordOverlayOpen("shown")
	case errors.Is(err, core.ErrNodeNotFound):
		o.metrics.RecordOverlayOpen("not_found")
	default:
		o.metrics.RecordOverlayOpen("invalid_viewport")
	}
}
