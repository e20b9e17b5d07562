package core

import (
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/model"
)

// ErrNodeNotFound is returned when a node id is absent from the current snapshot.
var ErrNodeNotFound = errors.New("node not found")

// Unit is appended to every power value shown in a label.
const Unit = "MW"

// FlowDirection tells whether an entry enters or leaves the node.
type FlowDirection int

const (
	Inflow FlowDirection = iota
	Outflow
)

// FlowEntry is one edge's contribution to a node. Magnitude is always the
// absolute edge value.
type FlowEntry struct {
	Label     string
	Magnitude float64
	Direction FlowDirection
}

// Signed returns the value shown in the label: positive for inflow,
// negative for outflow.
func (e FlowEntry) Signed() float64 {
	if e.Direction == Outflow {
		return -e.Magnitude
	}
	return e.Magnitude
}

// GenerationEntry is one plant nested under the node.
type GenerationEntry struct {
	Label     string
	Magnitude float64
	IsWorking bool
}

// Row is a label line: a description and a formatted value.
type Row struct {
	Description string `json:"description"`
	Value       string `json:"value"`
}

// Decomposition is the per-node flow breakdown behind the overlay label.
type Decomposition struct {
	NodeID       string
	NodeType     model.NodeType
	Demand       float64
	Inflow       []FlowEntry
	Outflow      []FlowEntry
	Generation   []GenerationEntry
	PlantBearing bool
}

// Classify derives the flow decomposition of nodeID from s.
//
// Incoming edges count as inflow when their value is non-negative and as
// outflow otherwise; outgoing edges count as outflow when non-negative and
// as inflow otherwise. Entries from incoming edges precede those from
// outgoing edges, each in edge order.
func Classify(s *model.Snapshot, nodeID string) (Decomposition, error) {
	node, ok := s.Node(nodeID)
	if !ok {
		return Decomposition{}, errors.Wrapf(ErrNodeNotFound, "classify %q", nodeID)
	}

	d := Decomposition{
		NodeID:   node.ID,
		NodeType: node.Type,
		Demand:   node.Demand,
	}

	for _, e := range s.Edges {
		if e.Target != nodeID {
			continue
		}
		if e.Value >= 0 {
			d.Inflow = append(d.Inflow, entry(e, Inflow))
		} else {
			d.Outflow = append(d.Outflow, entry(e, Outflow))
		}
	}
	for _, e := range s.Edges {
		if e.Source != nodeID {
			continue
		}
		if e.Value >= 0 {
			d.Outflow = append(d.Outflow, entry(e, Outflow))
		} else {
			d.Inflow = append(d.Inflow, entry(e, Inflow))
		}
	}

	for _, p := range s.Plants {
		if p.Parent != nodeID {
			continue
		}
		d.Generation = append(d.Generation, GenerationEntry{
			Label:     p.ID,
			Magnitude: p.Value,
			IsWorking: p.IsWorking,
		})
	}
	d.PlantBearing = len(d.Generation) > 0

	return d, nil
}

func entry(e model.Edge, dir FlowDirection) FlowEntry {
	return FlowEntry{Label: e.ID, Magnitude: math.Abs(e.Value), Direction: dir}
}

// Flows returns inflow entries followed by outflow entries.
func (d Decomposition) Flows() []FlowEntry {
	out := make([]FlowEntry, 0, len(d.Inflow)+len(d.Outflow))
	out = append(out, d.Inflow...)
	return append(out, d.Outflow...)
}

// NodeRows returns the label's node summary lines.
func (d Decomposition) NodeRows() []Row {
	return []Row{
		{Description: "Node Name", Value: d.NodeID},
		{Description: "Demand", Value: FormatMW(d.Demand)},
		{Description: "Type", Value: string(d.NodeType)},
	}
}

// FlowRows returns the label's flow lines, outflow values negated.
func (d Decomposition) FlowRows() []Row {
	flows := d.Flows()
	rows := make([]Row, 0, len(flows))
	for _, f := range flows {
		rows = append(rows, Row{Description: f.Label, Value: FormatMW(f.Signed())})
	}
	return rows
}

// GenerationRows returns one line per nested plant.
func (d Decomposition) GenerationRows() []Row {
	rows := make([]Row, 0, len(d.Generation))
	for _, g := range d.Generation {
		rows = append(rows, Row{Description: g.Label, Value: FormatMW(g.Magnitude)})
	}
	return rows
}

// FormatMW renders v with the shortest exact decimal form, e.g. "12.5 MW".
func FormatMW(v float64) string {
	if v == 0 {
		v = 0 // drop negative zero
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + Unit
}
