package graphsync

import (
	"context"
	"time"

	"github.com/signalsfoundry/flowview/model"
)

// Element is a render handle owned by the rendering collaborator and
// addressable by id.
type Element interface {
	ID() string
	Kind() model.ElementKind
	Data(key string) (any, bool)
	SetData(key string, value any)
}

// Renderer is the subset of the rendering engine the synchronizer drives.
// AddElements must return one handle per input element, nodes first, then
// plants, then edges. On error it must add nothing.
type Renderer interface {
	AddElements(ctx context.Context, nodes []model.Node, plants []model.Plant, edges []model.Edge) ([]Element, error)
	RunLayout(ctx context.Context)
}

// MetricsRecorder captures synchronizer metrics. *observability.Collector
// satisfies it.
type MetricsRecorder interface {
	RecordElementsCreated(kind string, n int)
	RecordAttributePatched(kind, attribute string)
	RecordSnapshotApplied(d time.Duration)
	RecordSnapshotRejected(reason string)
	SetGraphElements(nodes, edges, plants int)
}
