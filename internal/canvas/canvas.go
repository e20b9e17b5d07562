// Package canvas is a headless render collaborator: an id-addressed element
// store with a deterministic layout and a pan/zoom viewport. The browser
// bridge mirrors it to real clients.
package canvas

import (
	"context"
	"maps"
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/core"
	"github.com/signalsfoundry/flowview/internal/graphsync"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/model"
)

// Default rendered sizes at zoom 1.
var (
	NodeSize  = core.Size{Width: 30, Height: 30}
	PlantSize = core.Size{Width: 16, Height: 16}
)

// ErrDuplicateElement is returned when an added element reuses an id.
var ErrDuplicateElement = errors.New("duplicate element id")

// EventType indicates what changed on the canvas.
type EventType int

const (
	EventElementsAdded EventType = iota
	EventAttributeChanged
	EventLayout
	EventViewport
)

// Event is emitted to subscribers when the canvas changes.
type Event struct {
	Type EventType

	Elements  []ElementState        // EventElementsAdded
	ID, Key   string                // EventAttributeChanged
	Value     any                   // EventAttributeChanged
	Positions map[string]core.Point // EventLayout
	View      ViewState             // EventViewport
}

// ElementState is a copy of one element.
type ElementState struct {
	ID       string
	Kind     model.ElementKind
	Data     map[string]any
	Position core.Point
}

// ViewState is the viewport's pan, zoom and size.
type ViewState struct {
	Pan  core.Point
	Zoom float64
	Size core.Size
}

// Canvas holds elements in insertion order.
type Canvas struct {
	mu sync.RWMutex

	log logging.Logger

	order    []*element
	elements map[string]*element

	pan         core.Point
	zoom        float64
	size        core.Size
	zoomEnabled bool

	nextSub int
	subs    map[int]func(Event)
}

var _ graphsync.Renderer = (*Canvas)(nil)

// New returns an empty canvas of the given size at zoom 1.
func New(size core.Size, log logging.Logger) *Canvas {
	return &Canvas{
		log:         logging.OrNoop(log).With(logging.Component("canvas")),
		elements:    make(map[string]*element),
		zoom:        1,
		size:        size,
		zoomEnabled: true,
		subs:        make(map[int]func(Event)),
	}
}

// AddElements adds nodes, plants and edges in that order and returns their
// handles in the same order. Nothing is added when an id is already taken.
func (c *Canvas) AddElements(ctx context.Context, nodes []model.Node, plants []model.Plant, edges []model.Edge) ([]graphsync.Element, error) {
	added := make([]*element, 0, len(nodes)+len(plants)+len(edges))
	for _, n := range nodes {
		added = append(added, &element{canvas: c, id: n.ID, kind: model.KindNode, data: n.Attributes(), size: NodeSize})
	}
	for _, p := range plants {
		added = append(added, &element{canvas: c, id: p.ID, kind: model.KindPlant, data: p.Attributes(), parent: p.Parent, size: PlantSize})
	}
	for _, e := range edges {
		added = append(added, &element{canvas: c, id: e.ID, kind: model.KindEdge, data: e.Attributes()})
	}

	c.mu.Lock()
	seen := make(map[string]struct{}, len(added))
	for _, el := range added {
		_, exists := c.elements[el.id]
		_, repeated := seen[el.id]
		if exists || repeated {
			c.mu.Unlock()
			return nil, errors.Wrapf(ErrDuplicateElement, "%s %q", el.kind, el.id)
		}
		seen[el.id] = struct{}{}
	}
	states := make([]ElementState, 0, len(added))
	handles := make([]graphsync.Element, 0, len(added))
	for _, el := range added {
		c.elements[el.id] = el
		c.order = append(c.order, el)
		states = append(states, el.stateLocked())
		handles = append(handles, el)
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.log.Debug(ctx, "elements added", logging.Int("count", len(added)))
	notify(subs, Event{Type: EventElementsAdded, Elements: states})
	return handles, nil
}

// RunLayout places top-level nodes on a ring around the canvas centre and
// plants on a small ring around their parent.
func (c *Canvas) RunLayout(ctx context.Context) {
	c.mu.Lock()
	var nodes []*element
	children := make(map[string][]*element)
	for _, el := range c.order {
		switch el.kind {
		case model.KindNode:
			nodes = append(nodes, el)
		case model.KindPlant:
			children[el.parent] = append(children[el.parent], el)
		}
	}

	centre := core.Point{X: c.size.Width / 2, Y: c.size.Height / 2}
	radius := math.Max(50, math.Min(c.size.Width, c.size.Height)/2-NodeSize.Width*2)
	positions := make(map[string]core.Point, len(c.order))
	ring(nodes, centre, radius, positions)
	for _, n := range nodes {
		ring(children[n.id], n.pos, NodeSize.Width, positions)
	}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.log.Debug(ctx, "layout ran", logging.Int("positioned", len(positions)))
	notify(subs, Event{Type: EventLayout, Positions: positions})
}

func ring(els []*element, centre core.Point, radius float64, out map[string]core.Point) {
	if len(els) == 1 {
		els[0].pos = centre
		out[els[0].id] = centre
		return
	}
	for i, el := range els {
		angle := 2 * math.Pi * float64(i) / float64(len(els))
		el.pos = core.Point{
			X: centre.X + radius*math.Cos(angle),
			Y: centre.Y + radius*math.Sin(angle),
		}
		out[el.id] = el.pos
	}
}

// Pan returns the viewport pan offset.
func (c *Canvas) Pan() core.Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pan
}

// Zoom returns the viewport zoom factor.
func (c *Canvas) Zoom() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zoom
}

// Size returns the visible canvas size.
func (c *Canvas) Size() core.Size {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Position returns an element's model position.
func (c *Canvas) Position(id string) (core.Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	el, ok := c.elements[id]
	if !ok {
		return core.Point{}, false
	}
	return el.pos, true
}

// RenderedBox returns an element's size on screen at the current zoom.
func (c *Canvas) RenderedBox(id string) (core.Size, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	el, ok := c.elements[id]
	if !ok {
		return core.Size{}, false
	}
	return core.Size{Width: el.size.Width * c.zoom, Height: el.size.Height * c.zoom}, true
}

// SetUserZoomEnabled toggles whether SetZoom with fromUser accepts changes.
func (c *Canvas) SetUserZoomEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoomEnabled = enabled
}

// UserZoomEnabled reports whether user zooming is allowed.
func (c *Canvas) UserZoomEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zoomEnabled
}

// SetPan moves the viewport.
func (c *Canvas) SetPan(p core.Point) {
	c.updateView(func() bool {
		c.pan = p
		return true
	})
}

// SetZoom changes the zoom factor. User gestures are ignored while user zoom
// is disabled; it reports whether the zoom was applied.
func (c *Canvas) SetZoom(zoom float64, fromUser bool) bool {
	return c.updateView(func() bool {
		if zoom <= 0 || (fromUser && !c.zoomEnabled) {
			return false
		}
		c.zoom = zoom
		return true
	})
}

// SetSize records the visible canvas size.
func (c *Canvas) SetSize(s core.Size) {
	c.updateView(func() bool {
		c.size = s
		return true
	})
}

// SetPositions records positions reported by a client, overriding the
// layout. Unknown ids are ignored.
func (c *Canvas) SetPositions(positions map[string]core.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range positions {
		if el, ok := c.elements[id]; ok {
			el.pos = p
		}
	}
}

// Elements returns copies of every element in insertion order.
func (c *Canvas) Elements() []ElementState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ElementState, 0, len(c.order))
	for _, el := range c.order {
		out = append(out, el.stateLocked())
	}
	return out
}

// Subscribe registers a callback for canvas events. It returns an unsubscribe function.
func (c *Canvas) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Canvas) updateView(apply func() bool) bool {
	c.mu.Lock()
	if !apply() {
		c.mu.Unlock()
		return false
	}
	view := ViewState{Pan: c.pan, Zoom: c.zoom, Size: c.size}
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, Event{Type: EventViewport, View: view})
	return true
}

func (c *Canvas) subscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

type element struct {
	canvas *Canvas
	id     string
	kind   model.ElementKind
	parent string
	data   map[string]any
	size   core.Size
	pos    core.Point
}

func (e *element) ID() string              { return e.id }
func (e *element) Kind() model.ElementKind { return e.kind }

func (e *element) Data(key string) (any, bool) {
	e.canvas.mu.RLock()
	defer e.canvas.mu.RUnlock()
	v, ok := e.data[key]
	return v, ok
}

func (e *element) SetData(key string, value any) {
	c := e.canvas
	c.mu.Lock()
	e.data[key] = value
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, Event{Type: EventAttributeChanged, ID: e.id, Key: key, Value: value})
}

func (e *element) stateLocked() ElementState {
	return ElementState{ID: e.id, Kind: e.kind, Data: maps.Clone(e.data), Position: e.pos}
}
