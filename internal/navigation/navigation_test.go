package navigation

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/flowview/internal/observability"
	"github.com/signalsfoundry/flowview/model"
)

type fakeSource struct {
	rng        model.Range
	next, prev int
}

func (s *fakeSource) RequestNext()       { s.next++ }
func (s *fakeSource) RequestPrevious()   { s.prev++ }
func (s *fakeSource) Range() model.Range { return s.rng }

func TestAdvanceRequestsAndMarksBusy(t *testing.T) {
	src := &fakeSource{rng: model.RangeOf(3)}
	c := New(src, 0, nil)

	if err := c.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if src.next != 1 || c.Index() != 1 || !c.Busy() {
		t.Fatalf("after Advance: next=%d index=%d busy=%v, want 1 1 true", src.next, c.Index(), c.Busy())
	}
}

func TestAdvanceWhileBusyIsNoop(t *testing.T) {
	src := &fakeSource{rng: model.RangeOf(5)}
	c := New(src, 0, nil)
	c.SetBusy(true)

	for i := 0; i < 3; i++ {
		if err := c.Advance(); !errors.Is(err, ErrBusy) {
			t.Fatalf("Advance while busy err = %v, want ErrBusy", err)
		}
	}
	if err := c.Retreat(); !errors.Is(err, ErrBusy) {
		t.Fatalf("Retreat while busy err = %v, want ErrBusy", err)
	}
	if src.next != 0 || src.prev != 0 || c.Index() != 0 {
		t.Fatalf("requests issued while busy: next=%d prev=%d index=%d", src.next, src.prev, c.Index())
	}
}

func TestSecondAdvanceBeforeDeliveryIsRefused(t *testing.T) {
	src := &fakeSource{rng: model.RangeOf(5)}
	c := New(src, 0, nil)

	if err := c.Advance(); err != nil {
		t.Fatalf("first Advance: %v", err)
	}
	if err := c.Advance(); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Advance err = %v, want ErrBusy", err)
	}
	if src.next != 1 {
		t.Fatalf("RequestNext calls = %d, want 1", src.next)
	}

	c.SetBusy(false)
	if err := c.Advance(); err != nil {
		t.Fatalf("Advance after idle: %v", err)
	}
	if src.next != 2 || c.Index() != 2 {
		t.Fatalf("next=%d index=%d, want 2 2", src.next, c.Index())
	}
}

func TestOutOfRangeIsRejectedBeforeRequest(t *testing.T) {
	src := &fakeSource{rng: model.RangeOf(2)}
	c := New(src, 1, nil)

	if err := c.Advance(); !errors.Is(err, model.ErrPeriodOutOfRange) {
		t.Fatalf("Advance past last err = %v, want ErrPeriodOutOfRange", err)
	}
	c.Settle(0)
	if err := c.Retreat(); !errors.Is(err, model.ErrPeriodOutOfRange) {
		t.Fatalf("Retreat before first err = %v, want ErrPeriodOutOfRange", err)
	}
	if src.next != 0 || src.prev != 0 || c.Busy() {
		t.Fatalf("out of range issued request: next=%d prev=%d busy=%v", src.next, src.prev, c.Busy())
	}
}

func TestEmptyRangeRejectsBothDirections(t *testing.T) {
	c := New(&fakeSource{rng: model.EmptyRange}, 0, nil)
	if err := c.Step(Forward); !errors.Is(err, model.ErrPeriodOutOfRange) {
		t.Fatalf("Step forward on empty range err = %v", err)
	}
	if err := c.Step(Backward); !errors.Is(err, model.ErrPeriodOutOfRange) {
		t.Fatalf("Step backward on empty range err = %v", err)
	}
}

func TestSettleResyncsIndex(t *testing.T) {
	src := &fakeSource{rng: model.RangeOf(4)}
	c := New(src, 2, nil)
	if err := c.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	if src.prev != 1 || c.Index() != 1 {
		t.Fatalf("prev=%d index=%d, want 1 1", src.prev, c.Index())
	}
	// the fetch failed and the source stayed on 2
	c.Settle(2)
	c.SetBusy(false)
	if c.Index() != 2 || c.Busy() {
		t.Fatalf("index=%d busy=%v, want 2 false", c.Index(), c.Busy())
	}
}

func TestNavigationMetrics(t *testing.T) {
	collector, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c := New(&fakeSource{rng: model.RangeOf(2)}, 0, nil, WithMetricsRecorder(collector))
	_ = c.Advance()
	_ = c.Advance()
	c.SetBusy(false)
	_ = c.Advance()

	for _, tc := range []struct {
		result string
		want   float64
	}{
		{"accepted", 1},
		{"busy", 1},
		{"out_of_range", 1},
	} {
		if got := testutil.ToFloat64(collector.NavigationRequests.WithLabelValues("next", tc.result)); got != tc.want {
			t.Fatalf("navigation_requests{next,%s} = %v, want %v", tc.result, got, tc.want)
		}
	}
}
