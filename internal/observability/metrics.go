package observability

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles Prometheus metrics for the viewer: graph synchronization,
// navigation, overlay interaction, the browser bridge and the period RPC
// surface.
type Collector struct {
	gatherer prometheus.Gatherer

	ElementsCreated   *prometheus.CounterVec
	AttributesPatched *prometheus.CounterVec
	ApplyDuration     prometheus.Histogram
	SnapshotsRejected *prometheus.CounterVec
	GraphElements     *prometheus.GaugeVec

	NavigationRequests *prometheus.CounterVec
	OverlayOpens       *prometheus.CounterVec
	BridgeClients      prometheus.Gauge

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewCollector registers viewer metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.ElementsCreated, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowview_elements_created_total",
		Help: "Render elements created from the first snapshot, labeled by element kind.",
	}, []string{"kind"}), "flowview_elements_created_total"); err != nil {
		return nil, err
	}
	if c.AttributesPatched, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowview_attribute_patches_total",
		Help: "Attribute writes performed while applying snapshots, labeled by element kind and attribute.",
	}, []string{"kind", "attribute"}), "flowview_attribute_patches_total"); err != nil {
		return nil, err
	}
	if c.ApplyDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowview_snapshot_apply_duration_seconds",
		Help:    "Time spent patching a snapshot into the render collaborator.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "flowview_snapshot_apply_duration_seconds"); err != nil {
		return nil, err
	}
	if c.SnapshotsRejected, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowview_snapshots_rejected_total",
		Help: "Snapshots that were not applied, labeled by reason.",
	}, []string{"reason"}), "flowview_snapshots_rejected_total"); err != nil {
		return nil, err
	}
	if c.GraphElements, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowview_graph_elements",
		Help: "Elements held in the graph identity mapping, labeled by kind.",
	}, []string{"kind"}), "flowview_graph_elements"); err != nil {
		return nil, err
	}
	if c.NavigationRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowview_navigation_requests_total",
		Help: "Period navigation requests, labeled by direction and result.",
	}, []string{"direction", "result"}), "flowview_navigation_requests_total"); err != nil {
		return nil, err
	}
	if c.OverlayOpens, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowview_overlay_opens_total",
		Help: "Overlay label open requests, labeled by result.",
	}, []string{"result"}), "flowview_overlay_opens_total"); err != nil {
		return nil, err
	}
	if c.BridgeClients, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flowview_bridge_clients",
		Help: "Browser clients connected to the render bridge.",
	}), "flowview_bridge_clients"); err != nil {
		return nil, err
	}
	if c.RPCRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "period_rpc_requests_total",
		Help: "Total number of handled period RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "period_rpc_requests_total"); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "period_rpc_duration_seconds",
		Help:    "Period RPC latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"service", "method"}), "period_rpc_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordElementsCreated satisfies graphsync.MetricsRecorder.
func (c *Collector) RecordElementsCreated(kind string, n int) {
	if c == nil || c.ElementsCreated == nil {
		return
	}
	c.ElementsCreated.WithLabelValues(kind).Add(float64(n))
}

// RecordAttributePatched satisfies graphsync.MetricsRecorder.
func (c *Collector) RecordAttributePatched(kind, attribute string) {
	if c == nil || c.AttributesPatched == nil {
		return
	}
	c.AttributesPatched.WithLabelValues(kind, attribute).Inc()
}

// RecordSnapshotApplied satisfies graphsync.MetricsRecorder.
func (c *Collector) RecordSnapshotApplied(d time.Duration) {
	if c == nil || c.ApplyDuration == nil {
		return
	}
	c.ApplyDuration.Observe(d.Seconds())
}

// RecordSnapshotRejected satisfies graphsync.MetricsRecorder.
func (c *Collector) RecordSnapshotRejected(reason string) {
	if c == nil || c.SnapshotsRejected == nil {
		return
	}
	c.SnapshotsRejected.WithLabelValues(reason).Inc()
}

// SetGraphElements satisfies graphsync.MetricsRecorder.
func (c *Collector) SetGraphElements(nodes, edges, plants int) {
	if c == nil || c.GraphElements == nil {
		return
	}
	c.GraphElements.WithLabelValues("node").Set(float64(nodes))
	c.GraphElements.WithLabelValues("edge").Set(float64(edges))
	c.GraphElements.WithLabelValues("plant").Set(float64(plants))
}

// RecordNavigation satisfies navigation.MetricsRecorder.
func (c *Collector) RecordNavigation(direction, result string) {
	if c == nil || c.NavigationRequests == nil {
		return
	}
	c.NavigationRequests.WithLabelValues(direction, result).Inc()
}

// RecordOverlayOpen satisfies overlay.MetricsRecorder.
func (c *Collector) RecordOverlayOpen(result string) {
	if c == nil || c.OverlayOpens == nil {
		return
	}
	c.OverlayOpens.WithLabelValues(result).Inc()
}

// SetBridgeClients satisfies bridge.MetricsRecorder.
func (c *Collector) SetBridgeClients(n int) {
	if c == nil || c.BridgeClients == nil {
		return
	}
	c.BridgeClients.Set(float64(n))
}

// register adds col to reg, returning the already registered collector of
// the same type when one exists under that name.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, errors.Newf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
