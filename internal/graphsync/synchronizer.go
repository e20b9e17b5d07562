// Package graphsync keeps a rendered graph in step with successive
// simulation snapshots. The graph is built once from the first snapshot and
// afterwards only its attribute values are patched, so element identity and
// layout survive period changes.
package graphsync

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/internal/observability"
	"github.com/signalsfoundry/flowview/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Report summarises what an Apply changed.
type Report struct {
	Nodes      int // nodes with at least one attribute written
	Edges      int
	Plants     int
	Attributes int // total attribute writes
}

// Changed reports whether anything was written.
func (r Report) Changed() bool { return r.Attributes > 0 }

// Option customises Synchronizer construction.
type Option func(*Synchronizer)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// Synchronizer owns the id-keyed identity mapping between snapshot elements
// and render handles.
type Synchronizer struct {
	mu sync.Mutex

	renderer Renderer
	log      logging.Logger
	metrics  MetricsRecorder

	nodes  map[string]Element
	plants map[string]Element
	edges  map[string]Element

	current *model.Snapshot
}

// New returns a Synchronizer driving renderer.
func New(renderer Renderer, log logging.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		renderer: renderer,
		log:      logging.OrNoop(log).With(logging.Component("graphsync")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Initialize builds the graph from the first snapshot: one element per node,
// plant and edge, in that order, followed by a single layout pass.
func (s *Synchronizer) Initialize(ctx context.Context, snap *model.Snapshot) (err error) {
	ctx, span := observability.StartSpan(ctx, "graphsync.Initialize", "snapshot", "",
		attribute.Int("snapshot.elements", snap.Len()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initializedLocked() {
		return ErrAlreadyInitialized
	}
	if snap == nil {
		return ErrNoSnapshot
	}
	if err := snap.Validate(); err != nil {
		s.recordRejected(err)
		return err
	}

	handles, err := s.renderer.AddElements(ctx, snap.Nodes, snap.Plants, snap.Edges)
	if err != nil {
		return errors.Wrap(err, "add elements")
	}

	// Whatever the renderer added is tracked, so a short result leaves the
	// graph initialized with the handles it did return.
	nodes := make(map[string]Element, len(snap.Nodes))
	plants := make(map[string]Element, len(snap.Plants))
	edges := make(map[string]Element, len(snap.Edges))
	for _, h := range handles {
		switch h.Kind() {
		case model.KindNode:
			nodes[h.ID()] = h
		case model.KindPlant:
			plants[h.ID()] = h
		case model.KindEdge:
			edges[h.ID()] = h
		}
	}
	s.nodes, s.plants, s.edges = nodes, plants, edges
	s.current = snap.Clone()

	if len(handles) != snap.Len() {
		return errors.Newf("renderer returned %d elements for %d inputs", len(handles), snap.Len())
	}

	s.renderer.RunLayout(ctx)

	if s.metrics != nil {
		s.metrics.RecordElementsCreated(model.KindNode.String(), len(nodes))
		s.metrics.RecordElementsCreated(model.KindPlant.String(), len(plants))
		s.metrics.RecordElementsCreated(model.KindEdge.String(), len(edges))
		s.metrics.SetGraphElements(len(nodes), len(edges), len(plants))
	}
	s.log.Info(ctx, "graph initialized",
		logging.Int("nodes", len(nodes)),
		logging.Int("plants", len(plants)),
		logging.Int("edges", len(edges)),
	)
	return nil
}

// Apply patches the attribute values of snap onto the existing graph. The
// snapshot must carry exactly the ids the graph was built with; any
// difference is reported as a *MismatchError before anything is written.
// Values equal to the element's current value are not rewritten.
func (s *Synchronizer) Apply(ctx context.Context, snap *model.Snapshot) (rep Report, err error) {
	ctx, span := observability.StartSpan(ctx, "graphsync.Apply", "snapshot", "",
		attribute.Int("snapshot.elements", snap.Len()))
	start := time.Now()
	defer func() {
		if err != nil {
			s.recordRejected(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			if s.metrics != nil {
				s.metrics.RecordSnapshotApplied(time.Since(start))
			}
			span.SetAttributes(attribute.Int("graphsync.attributes_written", rep.Attributes))
		}
		span.End()
	}()

	if snap == nil {
		return Report{}, ErrNoSnapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initializedLocked() {
		return Report{}, ErrNotInitialized
	}
	if err := snap.Validate(); err != nil {
		return Report{}, err
	}
	if err := s.checkStructureLocked(snap); err != nil {
		return Report{}, err
	}

	for _, n := range snap.Nodes {
		el := s.nodes[n.ID]
		if w := s.patch(el, model.AttrDemand, n.Demand); w > 0 {
			rep.Nodes++
			rep.Attributes += w
		}
	}
	for _, p := range snap.Plants {
		el := s.plants[p.ID]
		w := s.patch(el, model.AttrValue, p.Value) + s.patch(el, model.AttrIsWorking, p.IsWorking)
		if w > 0 {
			rep.Plants++
			rep.Attributes += w
		}
	}
	for _, e := range snap.Edges {
		el := s.edges[e.ID]
		w := s.patch(el, model.AttrValue, e.Value) + s.patch(el, model.AttrPercentage, e.Percentage)
		if w > 0 {
			rep.Edges++
			rep.Attributes += w
		}
	}
	s.current = snap.Clone()

	s.log.Debug(ctx, "snapshot applied",
		logging.Int("nodes_changed", rep.Nodes),
		logging.Int("edges_changed", rep.Edges),
		logging.Int("plants_changed", rep.Plants),
		logging.Int("attributes_written", rep.Attributes),
	)
	return rep, nil
}

// Current returns a copy of the last snapshot successfully initialised or
// applied, or nil before Initialize.
func (s *Synchronizer) Current() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Initialized reports whether the identity mapping has been built.
func (s *Synchronizer) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializedLocked()
}

// Len returns the number of elements in the identity mapping.
func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes) + len(s.plants) + len(s.edges)
}

func (s *Synchronizer) initializedLocked() bool {
	return s.nodes != nil
}

func (s *Synchronizer) checkStructureLocked(snap *model.Snapshot) error {
	for _, k := range []struct {
		kind  model.ElementKind
		known map[string]Element
	}{
		{model.KindNode, s.nodes},
		{model.KindPlant, s.plants},
		{model.KindEdge, s.edges},
	} {
		if mm := diffIDs(k.kind, k.known, snap.IDs(k.kind)); mm != nil {
			return mm
		}
	}
	return nil
}

// diffIDs compares got against the known ids. Validate has already rejected
// duplicates, so equal lengths with no unexpected ids means equal sets.
func diffIDs(kind model.ElementKind, known map[string]Element, got []string) *MismatchError {
	seen := make(map[string]struct{}, len(got))
	var unexpected []string
	for _, id := range got {
		seen[id] = struct{}{}
		if _, ok := known[id]; !ok {
			unexpected = append(unexpected, id)
		}
	}
	if len(unexpected) == 0 && len(got) == len(known) {
		return nil
	}
	var missing []string
	for id := range known {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return &MismatchError{Kind: kind, Missing: missing, Unexpected: unexpected}
}

// patch writes value under key when it differs from the element's current
// value and returns the number of writes performed.
func (s *Synchronizer) patch(el Element, key string, value any) int {
	if cur, ok := el.Data(key); ok && sameValue(cur, value) {
		return 0
	}
	el.SetData(key, value)
	if s.metrics != nil {
		s.metrics.RecordAttributePatched(el.Kind().String(), key)
	}
	return 1
}

func sameValue(cur, next any) bool {
	switch v := next.(type) {
	case float64:
		c, ok := cur.(float64)
		return ok && c == v
	case bool:
		c, ok := cur.(bool)
		return ok && c == v
	case string:
		c, ok := cur.(string)
		return ok && c == v
	default:
		return false
	}
}

func (s *Synchronizer) recordRejected(err error) {
	if s.metrics != nil {
		s.metrics.RecordSnapshotRejected(rejectReason(err))
	}
}
