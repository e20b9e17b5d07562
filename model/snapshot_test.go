package model

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Nodes: []Node{
			{ID: "A", Type: NodeTypeBlock, Demand: 10},
			{ID: "B", Type: NodeTypeNode, Demand: 5},
		},
		Edges: []Edge{
			{ID: "AB", Source: "A", Target: "B", Value: 3, Percentage: 30},
		},
		Plants: []Plant{
			{ID: "A-1", Parent: "A", Value: 13, IsWorking: true},
		},
	}
}

func TestValidateAcceptsConsistentSnapshot(t *testing.T) {
	if err := sampleSnapshot().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBrokenReferences(t *testing.T) {
	cases := map[string]func(s *Snapshot){
		"edge source":   func(s *Snapshot) { s.Edges[0].Source = "missing" },
		"edge target":   func(s *Snapshot) { s.Edges[0].Target = "missing" },
		"plant parent":  func(s *Snapshot) { s.Plants[0].Parent = "missing" },
		"plant as edge": func(s *Snapshot) { s.Edges[0].Target = "A-1" },
		"empty id":      func(s *Snapshot) { s.Nodes[1].ID = "" },
		"duplicate id":  func(s *Snapshot) { s.Plants[0].ID = "AB" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := sampleSnapshot()
			mutate(s)
			err := s.Validate()
			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Fatalf("Validate() = %v, want ErrInvalidSnapshot", err)
			}
		})
	}
}

func TestValidateNilSnapshot(t *testing.T) {
	var s *Snapshot
	if err := s.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("Validate(nil) = %v, want ErrInvalidSnapshot", err)
	}
}

func TestSnapshotLookupAndIDs(t *testing.T) {
	s := sampleSnapshot()
	n, ok := s.Node("B")
	if !ok || n.Demand != 5 {
		t.Fatalf("Node(B) = %+v, %v", n, ok)
	}
	if _, ok := s.Node("Z"); ok {
		t.Fatalf("Node(Z) found, want miss")
	}
	if got := s.IDs(KindEdge); len(got) != 1 || got[0] != "AB" {
		t.Fatalf("IDs(edge) = %v, want [AB]", got)
	}
	if got := s.Len(); got != 4 {
		t.Fatalf("Len() = %d, want 4", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := sampleSnapshot()
	c := s.Clone()
	c.Nodes[0].Demand = 99
	if s.Nodes[0].Demand != 10 {
		t.Fatalf("Clone shares node storage with original")
	}
}

func TestRange(t *testing.T) {
	r := RangeOf(3)
	if r.First != 0 || r.Last != 2 || r.Len() != 3 {
		t.Fatalf("RangeOf(3) = %+v", r)
	}
	if !r.Contains(2) || r.Contains(3) || r.Contains(-1) {
		t.Fatalf("Contains mismatch for %s", r)
	}
	if err := r.Check(5); !errors.Is(err, ErrPeriodOutOfRange) {
		t.Fatalf("Check(5) = %v, want ErrPeriodOutOfRange", err)
	}
	if !RangeOf(0).Empty() || RangeOf(0).Contains(0) {
		t.Fatalf("RangeOf(0) should be empty")
	}
}
