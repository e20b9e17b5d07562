package model

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
)

// Element groups used by the render engine's element objects.
const (
	GroupNodes = "nodes"
	GroupEdges = "edges"
)

// element is the render-engine element object the backend exports:
// {"group": "nodes", "data": {...}}.
type element[T any] struct {
	Group string `json:"group,omitempty"`
	Data  T      `json:"data"`
}

type nodeData struct {
	ID     string  `json:"id"`
	Type   string  `json:"type,omitempty"`
	Demand float64 `json:"demand"`
}

type plantData struct {
	ID        string  `json:"id"`
	Parent    string  `json:"parent"`
	Type      string  `json:"type,omitempty"`
	Value     float64 `json:"value"`
	IsWorking Flag    `json:"isWorking"`
}

type edgeData struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

type snapshotJSON struct {
	Nodes  []element[nodeData]  `json:"nodes"`
	Edges  []element[edgeData]  `json:"edges"`
	Plants []element[plantData] `json:"plants"`
}

type resultsJSON struct {
	Periods []snapshotJSON `json:"periods"`
}

// Flag is a boolean the backend writes as 0 or 1.
type Flag bool

// MarshalJSON encodes the flag as 0 or 1.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 0/1 numbers and JSON booleans.
func (f *Flag) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "1", "1.0", "true":
		*f = true
	case "0", "0.0", "false", "null":
		*f = false
	default:
		return errors.Newf("invalid flag value %s", b)
	}
	return nil
}

// DecodeSnapshot parses one snapshot document. The result is not validated.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var payload snapshotJSON
	if err := sonic.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return payload.toModel()
}

// EncodeSnapshot renders s as a snapshot document.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, errors.New("encode snapshot: nil snapshot")
	}
	data, err := sonic.Marshal(fromModel(s))
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot")
	}
	return data, nil
}

// DecodeResults parses a results file holding every period of a run.
func DecodeResults(data []byte) ([]*Snapshot, error) {
	var payload resultsJSON
	if err := sonic.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, "decode results")
	}
	out := make([]*Snapshot, 0, len(payload.Periods))
	for i, p := range payload.Periods {
		s, err := p.toModel()
		if err != nil {
			return nil, errors.Wrapf(err, "period %d", i)
		}
		out = append(out, s)
	}
	return out, nil
}

// EncodeResults renders periods as a results file.
func EncodeResults(periods []*Snapshot) ([]byte, error) {
	payload := resultsJSON{Periods: make([]snapshotJSON, 0, len(periods))}
	for i, s := range periods {
		if s == nil {
			return nil, errors.Newf("encode results: period %d is nil", i)
		}
		payload.Periods = append(payload.Periods, fromModel(s))
	}
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode results")
	}
	return data, nil
}

func (p snapshotJSON) toModel() (*Snapshot, error) {
	s := &Snapshot{
		Nodes:  make([]Node, 0, len(p.Nodes)),
		Edges:  make([]Edge, 0, len(p.Edges)),
		Plants: make([]Plant, 0, len(p.Plants)),
	}
	for _, el := range p.Nodes {
		if err := checkGroup(el.Group, GroupNodes, el.Data.ID); err != nil {
			return nil, err
		}
		s.Nodes = append(s.Nodes, Node{
			ID:     el.Data.ID,
			Type:   NodeType(el.Data.Type),
			Demand: el.Data.Demand,
		})
	}
	for _, el := range p.Plants {
		if err := checkGroup(el.Group, GroupNodes, el.Data.ID); err != nil {
			return nil, err
		}
		s.Plants = append(s.Plants, Plant{
			ID:        el.Data.ID,
			Parent:    el.Data.Parent,
			Value:     el.Data.Value,
			IsWorking: bool(el.Data.IsWorking),
		})
	}
	for _, el := range p.Edges {
		if err := checkGroup(el.Group, GroupEdges, el.Data.ID); err != nil {
			return nil, err
		}
		s.Edges = append(s.Edges, Edge{
			ID:         el.Data.ID,
			Source:     el.Data.Source,
			Target:     el.Data.Target,
			Value:      el.Data.Value,
			Percentage: el.Data.Percentage,
		})
	}
	return s, nil
}

func fromModel(s *Snapshot) snapshotJSON {
	out := snapshotJSON{
		Nodes:  make([]element[nodeData], 0, len(s.Nodes)),
		Edges:  make([]element[edgeData], 0, len(s.Edges)),
		Plants: make([]element[plantData], 0, len(s.Plants)),
	}
	for _, n := range s.Nodes {
		out.Nodes = append(out.Nodes, element[nodeData]{
			Group: GroupNodes,
			Data:  nodeData{ID: n.ID, Type: string(n.Type), Demand: n.Demand},
		})
	}
	for _, p := range s.Plants {
		out.Plants = append(out.Plants, element[plantData]{
			Group: GroupNodes,
			Data: plantData{
				ID:        p.ID,
				Parent:    p.Parent,
				Type:      string(NodeTypeNode),
				Value:     p.Value,
				IsWorking: Flag(p.IsWorking),
			},
		})
	}
	for _, e := range s.Edges {
		out.Edges = append(out.Edges, element[edgeData]{
			Group: GroupEdges,
			Data: edgeData{
				ID:         e.ID,
				Source:     e.Source,
				Target:     e.Target,
				Value:      e.Value,
				Percentage: e.Percentage,
			},
		})
	}
	return out
}

func checkGroup(got, want, id string) error {
	if got == "" || got == want {
		return nil
	}
	return errors.Mark(errors.Newf("element %q: group %q, want %q", id, got, want), ErrInvalidSnapshot)
}
