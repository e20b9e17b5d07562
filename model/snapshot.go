package model

import (
	"github.com/cockroachdb/errors"
)

// ErrInvalidSnapshot marks snapshots that break the reference or uniqueness
// invariants checked by Validate.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// NodeType is the category reported for a node. Values other than the
// predefined constants are preserved verbatim.
type NodeType string

const (
	NodeTypeBlock NodeType = "block"
	NodeTypeNode  NodeType = "node"
)

// ElementKind distinguishes the three element families of a snapshot.
type ElementKind int

const (
	KindNode ElementKind = iota
	KindPlant
	KindEdge
)

func (k ElementKind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindPlant:
		return "plant"
	case KindEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// Attribute keys shared with render collaborators.
const (
	AttrID         = "id"
	AttrType       = "type"
	AttrDemand     = "demand"
	AttrParent     = "parent"
	AttrValue      = "value"
	AttrIsWorking  = "isWorking"
	AttrSource     = "source"
	AttrTarget     = "target"
	AttrPercentage = "percentage"
)

// Node is a demand/transfer point in the network.
type Node struct {
	ID     string
	Type   NodeType
	Demand float64 // MW
}

// Attributes returns the node's render attributes.
func (n Node) Attributes() map[string]any {
	return map[string]any{
		AttrID:     n.ID,
		AttrType:   string(n.Type),
		AttrDemand: n.Demand,
	}
}

// Plant is a generation unit visually nested under a node. It does not take
// part in flow classification as a vertex.
type Plant struct {
	ID        string
	Parent    string
	Value     float64 // MW
	IsWorking bool
}

// Attributes returns the plant's render attributes.
func (p Plant) Attributes() map[string]any {
	return map[string]any{
		AttrID:        p.ID,
		AttrParent:    p.Parent,
		AttrValue:     p.Value,
		AttrIsWorking: p.IsWorking,
	}
}

// Edge is a directed, signed flow between two nodes.
type Edge struct {
	ID         string
	Source     string
	Target     string
	Value      float64 // MW, sign gives direction relative to Source->Target
	Percentage float64 // share of line capacity in use
}

// Attributes returns the edge's render attributes.
func (e Edge) Attributes() map[string]any {
	return map[string]any{
		AttrID:         e.ID,
		AttrSource:     e.Source,
		AttrTarget:     e.Target,
		AttrValue:      e.Value,
		AttrPercentage: e.Percentage,
	}
}

// Snapshot is one period of simulation output.
type Snapshot struct {
	Nodes  []Node
	Edges  []Edge
	Plants []Plant
}

// Len returns the total number of elements in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Nodes) + len(s.Edges) + len(s.Plants)
}

// Node looks up a node by id.
func (s *Snapshot) Node(id string) (Node, bool) {
	if s == nil {
		return Node{}, false
	}
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		Nodes:  append([]Node(nil), s.Nodes...),
		Edges:  append([]Edge(nil), s.Edges...),
		Plants: append([]Plant(nil), s.Plants...),
	}
}

// IDs returns the element ids of the given kind in snapshot order.
func (s *Snapshot) IDs(kind ElementKind) []string {
	if s == nil {
		return nil
	}
	var ids []string
	switch kind {
	case KindNode:
		ids = make([]string, 0, len(s.Nodes))
		for _, n := range s.Nodes {
			ids = append(ids, n.ID)
		}
	case KindPlant:
		ids = make([]string, 0, len(s.Plants))
		for _, p := range s.Plants {
			ids = append(ids, p.ID)
		}
	case KindEdge:
		ids = make([]string, 0, len(s.Edges))
		for _, e := range s.Edges {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// Validate checks that ids are non-empty and unique across the snapshot and
// that every edge endpoint and plant parent references a node.
func (s *Snapshot) Validate() error {
	if s == nil {
		return errors.Mark(errors.New("snapshot is nil"), ErrInvalidSnapshot)
	}

	seen := make(map[string]ElementKind, s.Len())
	claim := func(kind ElementKind, id string) error {
		if id == "" {
			return errors.Mark(errors.Newf("%s with empty id", kind), ErrInvalidSnapshot)
		}
		if prev, dup := seen[id]; dup {
			return errors.Mark(errors.Newf("%s id %q already used by a %s", kind, id, prev), ErrInvalidSnapshot)
		}
		seen[id] = kind
		return nil
	}

	nodes := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if err := claim(KindNode, n.ID); err != nil {
			return err
		}
		nodes[n.ID] = struct{}{}
	}
	for _, p := range s.Plants {
		if err := claim(KindPlant, p.ID); err != nil {
			return err
		}
		if _, ok := nodes[p.Parent]; !ok {
			return errors.Mark(errors.Newf("plant %q: parent node %q not found", p.ID, p.Parent), ErrInvalidSnapshot)
		}
	}
	for _, e := range s.Edges {
		if err := claim(KindEdge, e.ID); err != nil {
			return err
		}
		if _, ok := nodes[e.Source]; !ok {
			return errors.Mark(errors.Newf("edge %q: source node %q not found", e.ID, e.Source), ErrInvalidSnapshot)
		}
		if _, ok := nodes[e.Target]; !ok {
			return errors.Mark(errors.Newf("edge %q: target node %q not found", e.ID, e.Target), ErrInvalidSnapshot)
		}
	}
	return nil
}
