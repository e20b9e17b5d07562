// Package bridge mirrors the headless canvas to browser clients over
// websockets and feeds their gestures back into the view loop.
package bridge

import (
	"context"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/flowview/core"
	"github.com/signalsfoundry/flowview/internal/canvas"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/internal/navigation"
	"github.com/signalsfoundry/flowview/internal/view"
)

// Defaults for a Bridge.
const (
	DefaultEventsPerSecond = 30
	DefaultOverlayWidth    = 220
	DefaultOverlayHeight   = 160
)

// Canvas is the render collaborator the bridge mirrors.
type Canvas interface {
	Elements() []canvas.ElementState
	Subscribe(fn func(canvas.Event)) (unsubscribe func())
	SetPan(p core.Point)
	SetZoom(zoom float64, fromUser bool) bool
	SetSize(s core.Size)
	SetPositions(positions map[string]core.Point)
}

// Poster accepts view events; *view.View satisfies it.
type Poster interface {
	Post(ev view.Event) bool
}

// MetricsRecorder tracks connected clients.
type MetricsRecorder interface {
	SetBridgeClients(n int)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetricsRecorder reports the client count to m.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithEventsPerSecond limits inbound gestures per client.
func WithEventsPerSecond(n float64) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.eventsPerSecond = n
		}
	}
}

// WithOverlaySize sets the overlay size assumed until a client reports one.
func WithOverlaySize(s core.Size) Option {
	return func(b *Bridge) {
		if s.Width > 0 && s.Height > 0 {
			b.overlaySize = s
		}
	}
}

// Bridge is a websocket hub. It implements overlay.Surface and
// view.Presenter so the view's output reaches every client.
type Bridge struct {
	canvas  Canvas
	log     logging.Logger
	metrics MetricsRecorder

	upgrader        websocket.Upgrader
	eventsPerSecond float64
	unsubscribe     func()

	mu          sync.Mutex
	poster      Poster
	clients     map[*client]struct{}
	overlay     OverlayState
	overlaySize core.Size
	label       *view.Label
	nav         *view.NavState
	closed      bool
}

// New returns a Bridge mirroring c. Call Attach before serving so gestures
// have somewhere to go.
func New(c Canvas, log logging.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		canvas:          c,
		log:             logging.OrNoop(log).With(logging.Component("bridge")),
		eventsPerSecond: DefaultEventsPerSecond,
		clients:         make(map[*client]struct{}),
		overlaySize:     core.Size{Width: DefaultOverlayWidth, Height: DefaultOverlayHeight},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.unsubscribe = c.Subscribe(b.onCanvas)
	return b
}

// Attach sets the destination for client gestures.
func (b *Bridge) Attach(p Poster) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.poster = p
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	ctx, id := logging.EnsureSessionID(context.WithoutCancel(r.Context()))
	c := newClient(id, conn, b.limiter())
	if !b.register(ctx, c) {
		_ = conn.Close()
		return
	}

	go c.writePump(ctx, b.log)
	c.readPump(ctx, b.log, b.route)
	b.remove(ctx, c)
}

// Clients returns the number of connected clients.
func (b *Bridge) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client and stops mirroring the canvas.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[*client]struct{})
	b.mu.Unlock()

	b.unsubscribe()
	for _, c := range clients {
		c.close()
	}
	b.setClientsMetric(0)
}

// Show implements overlay.Surface.
func (b *Bridge) Show() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overlay.Visible = true
	b.broadcastLocked(b.overlayMessageLocked())
}

// Hide implements overlay.Surface.
func (b *Bridge) Hide() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overlay.Visible = false
	b.broadcastLocked(b.overlayMessageLocked())
}

// MoveTo implements overlay.Surface.
func (b *Bridge) MoveTo(p core.Point) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overlay.X, b.overlay.Y = p.X, p.Y
	b.broadcastLocked(b.overlayMessageLocked())
}

// Measure implements overlay.Surface with the size last reported by a client.
func (b *Bridge) Measure() core.Size {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overlaySize
}

// ShowLabel implements view.Presenter.
func (b *Bridge) ShowLabel(l view.Label) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.label = &l
	b.broadcastLocked(Outbound{Type: TypeLabel, Label: &l})
}

// NavigationChanged implements view.Presenter.
func (b *Bridge) NavigationChanged(s view.NavState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nav = &s
	b.broadcastLocked(Outbound{Type: TypeNav, Nav: &s})
}

func (b *Bridge) limiter() *rate.Limiter {
	burst := int(b.eventsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(b.eventsPerSecond), burst)
}

// register adds c and queues the current state for it. The canvas is read
// while holding the hub lock so no broadcast interleaves with the replay.
func (b *Bridge) register(ctx context.Context, c *client) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.clients[c] = struct{}{}
	n := len(b.clients)
	b.setClientsMetric(n)

	replay := []Outbound{{Type: TypeAdd, Elements: toElements(b.canvas.Elements())}}
	replay = append(replay, b.overlayMessageLocked())
	if b.label != nil {
		replay = append(replay, Outbound{Type: TypeLabel, Label: b.label})
	}
	if b.nav != nil {
		replay = append(replay, Outbound{Type: TypeNav, Nav: b.nav})
	}
	for _, msg := range replay {
		b.sendLocked(c, msg)
	}
	b.mu.Unlock()

	b.log.Info(ctx, "client connected", logging.Int("clients", n))
	return true
}

func (b *Bridge) remove(ctx context.Context, c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	delete(b.clients, c)
	n := len(b.clients)
	if ok {
		b.setClientsMetric(n)
	}
	b.mu.Unlock()

	c.close()
	if ok {
		b.log.Info(ctx, "client disconnected", logging.Int("clients", n))
	}
}

func (b *Bridge) onCanvas(ev canvas.Event) {
	msg, ok := fromCanvas(ev)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcastLocked(msg)
}

func (b *Bridge) overlayMessageLocked() Outbound {
	state := b.overlay
	return Outbound{Type: TypeOverlay, Overlay: &state}
}

func (b *Bridge) broadcastLocked(msg Outbound) {
	if len(b.clients) == 0 {
		return
	}
	for c := range b.clients {
		b.sendLocked(c, msg)
	}
}

// sendLocked never blocks; a client that cannot keep up is dropped.
func (b *Bridge) sendLocked(c *client, msg Outbound) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		b.log.Error(context.Background(), "encode message failed",
			logging.String("type", msg.Type), logging.Err(err))
		return
	}
	if !c.enqueue(data) {
		delete(b.clients, c)
		c.close()
		b.setClientsMetric(len(b.clients))
		b.log.Warn(context.Background(), "dropping slow client", logging.String("client_id", c.id))
	}
}

// route turns one client message into canvas updates and view events.
func (b *Bridge) route(ctx context.Context, msg Inbound) {
	log := b.log.With(logging.String("type", msg.Type))
	switch msg.Type {
	case TypeTap:
		b.post(ctx, view.Tap{NodeID: msg.ID})
	case TypeCxtTap:
		b.post(ctx, view.OpenLabel{NodeID: msg.ID})
	case TypePan:
		if msg.Pan != nil {
			b.canvas.SetPan(*msg.Pan)
		}
		b.post(ctx, view.PanStarted{})
	case TypeZoom:
		if msg.Pan != nil {
			b.canvas.SetPan(*msg.Pan)
		}
		if msg.Zoom > 0 && !b.canvas.SetZoom(msg.Zoom, true) {
			log.Debug(ctx, "zoom ignored", logging.Float("zoom", msg.Zoom))
		}
		b.post(ctx, view.ViewportChanged{})
	case TypeViewport:
		if msg.Size == nil || msg.Size.Width <= 0 || msg.Size.Height <= 0 {
			log.Debug(ctx, "invalid viewport size")
			return
		}
		b.canvas.SetSize(*msg.Size)
		b.post(ctx, view.ViewportChanged{})
	case TypePositions:
		b.canvas.SetPositions(msg.Positions)
		b.post(ctx, view.ViewportChanged{})
	case TypeOverlaySize:
		if msg.Size == nil || msg.Size.Width <= 0 || msg.Size.Height <= 0 {
			log.Debug(ctx, "invalid overlay size")
			return
		}
		b.mu.Lock()
		b.overlaySize = *msg.Size
		b.mu.Unlock()
		b.post(ctx, view.ViewportChanged{})
	case TypeNext:
		b.post(ctx, view.Navigate{Direction: navigation.Forward})
	case TypePrev:
		b.post(ctx, view.Navigate{Direction: navigation.Backward})
	default:
		log.Debug(ctx, "unknown message type")
	}
}

func (b *Bridge) post(ctx context.Context, ev view.Event) {
	b.mu.Lock()
	p := b.poster
	b.mu.Unlock()
	if p == nil {
		return
	}
	if !p.Post(ev) {
		b.log.Debug(ctx, "view not accepting events")
	}
}

func (b *Bridge) setClientsMetric(n int) {
	if b.metrics != nil {
		b.metrics.SetBridgeClients(n)
	}
}

// decode parses one inbound frame.
func decode(data []byte) (Inbound, error) {
	var msg Inbound
	err := sonic.Unmarshal(data, &msg)
	return msg, err
}
