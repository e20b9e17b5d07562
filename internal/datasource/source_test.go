package datasource

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/signalsfoundry/flowview/kb"
	"github.com/signalsfoundry/flowview/model"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func periodSnapshot(demand float64) *model.Snapshot {
	return &model.Snapshot{
		Nodes: []model.Node{{ID: "A", Type: model.NodeTypeNode, Demand: demand}},
	}
}

func newStore(t *testing.T, n int) *kb.Store {
	t.Helper()
	periods := make([]*model.Snapshot, n)
	for i := range periods {
		periods[i] = periodSnapshot(float64(i * 10))
	}
	store := kb.NewStore()
	if err := store.Load(periods); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return store
}

func demandOf(t *testing.T, ev Event) float64 {
	t.Helper()
	snap, ok := ev.(EventSnapshot)
	if !ok || snap.Snapshot == nil {
		t.Fatalf("event %#v is not a delivered snapshot", ev)
	}
	n, _ := snap.Snapshot.Node("A")
	return n.Demand
}

func TestStartDeliversFirstPeriodInOrder(t *testing.T) {
	src := New(newStore(t, 3), nil)
	rec := &recorder{}
	src.Subscribe(rec.add)

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Wait()

	events := rec.snapshot()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %#v", len(events), events)
	}
	if b, ok := events[0].(EventBusy); !ok || !b.Busy {
		t.Fatalf("first event = %#v, want busy true", events[0])
	}
	if got := demandOf(t, events[1]); got != 0 {
		t.Fatalf("first period demand = %v, want 0", got)
	}
	if b, ok := events[2].(EventBusy); !ok || b.Busy {
		t.Fatalf("last event = %#v, want busy false", events[2])
	}
	if src.Range() != model.RangeOf(3) || src.Cursor() != 0 || src.Busy() {
		t.Fatalf("range=%v cursor=%d busy=%v", src.Range(), src.Cursor(), src.Busy())
	}
}

func TestRequestNextAndPrevious(t *testing.T) {
	src := New(newStore(t, 3), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Wait()
	rec := &recorder{}
	src.Subscribe(rec.add)

	src.RequestNext()
	src.Wait()
	src.RequestNext()
	src.Wait()
	src.RequestPrevious()
	src.Wait()

	if src.Cursor() != 1 {
		t.Fatalf("cursor = %d, want 1", src.Cursor())
	}
	events := rec.snapshot()
	want := []float64{10, 20, 10}
	var got []float64
	for _, ev := range events {
		if _, ok := ev.(EventSnapshot); ok {
			got = append(got, demandOf(t, ev))
		}
	}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered %v, want %v", got, want)
		}
	}
}

func TestOutOfRangeDeliversNilSnapshot(t *testing.T) {
	src := New(newStore(t, 2), nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Wait()
	rec := &recorder{}
	src.Subscribe(rec.add)

	src.RequestPrevious()
	src.Wait()

	events := rec.snapshot()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	ev, ok := events[1].(EventSnapshot)
	if !ok || ev.Snapshot != nil || !errors.Is(ev.Err, model.ErrPeriodOutOfRange) {
		t.Fatalf("event = %#v, want nil snapshot with ErrPeriodOutOfRange", events[1])
	}
	if ev.Period != -1 || ev.Cursor != 0 || src.Cursor() != 0 {
		t.Fatalf("period=%d cursor=%d source cursor=%d, want -1 0 0", ev.Period, ev.Cursor, src.Cursor())
	}
}

type gatedFetcher struct {
	Fetcher
	gate  chan struct{}
	calls int
	mu    sync.Mutex
}

func (g *gatedFetcher) Fetch(ctx context.Context, period int) (*model.Snapshot, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	<-g.gate
	return g.Fetcher.Fetch(ctx, period)
}

func TestOverlappingRequestsAreDropped(t *testing.T) {
	gf := &gatedFetcher{Fetcher: newStore(t, 5), gate: make(chan struct{})}
	src := New(gf, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !src.Busy() {
		t.Fatalf("source not busy during first fetch")
	}
	if src.Load(3) {
		t.Fatalf("Load accepted while busy")
	}
	src.RequestNext()
	close(gf.gate)
	src.Wait()

	gf.mu.Lock()
	calls := gf.calls
	gf.mu.Unlock()
	if calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls)
	}
	if src.Cursor() != 0 {
		t.Fatalf("cursor = %d, want 0", src.Cursor())
	}
}

type failingFetcher struct {
	Fetcher
}

func (failingFetcher) Fetch(context.Context, int) (*model.Snapshot, error) {
	return nil, errors.New("backend unavailable")
}

func TestFetchFailureKeepsCursor(t *testing.T) {
	src := New(failingFetcher{Fetcher: newStore(t, 2)}, nil)
	rec := &recorder{}
	src.Subscribe(rec.add)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Wait()

	ev, ok := rec.snapshot()[1].(EventSnapshot)
	if !ok || ev.Err == nil || ev.Snapshot != nil {
		t.Fatalf("event = %#v, want failed fetch", ev)
	}
	if errors.Is(ev.Err, model.ErrPeriodOutOfRange) {
		t.Fatalf("fetch failure reported as out of range: %v", ev.Err)
	}
	if src.Busy() {
		t.Fatalf("source still busy after failure")
	}
}

func TestRefreshClampsIntoShrunkRange(t *testing.T) {
	store := newStore(t, 4)
	src := New(store, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Wait()
	if !src.Load(3) {
		t.Fatalf("Load(3) dropped")
	}
	src.Wait()

	if err := store.Load([]*model.Snapshot{periodSnapshot(1), periodSnapshot(2)}); err != nil {
		t.Fatalf("reload store: %v", err)
	}
	rec := &recorder{}
	src.Subscribe(rec.add)
	src.Refresh()
	src.Wait()

	if src.Range() != model.RangeOf(2) || src.Cursor() != 1 {
		t.Fatalf("range=%v cursor=%d, want [0, 1] 1", src.Range(), src.Cursor())
	}
	if got := demandOf(t, rec.snapshot()[1]); got != 2 {
		t.Fatalf("refreshed demand = %v, want 2", got)
	}
}

func TestRefreshWhileBusyRunsAfterFetch(t *testing.T) {
	store := newStore(t, 4)
	gf := &gatedFetcher{Fetcher: store, gate: make(chan struct{})}
	src := New(gf, nil)
	rec := &recorder{}
	src.Subscribe(rec.add)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := store.Load([]*model.Snapshot{periodSnapshot(7), periodSnapshot(8)}); err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if src.Refresh() {
		t.Fatalf("Refresh ran while busy")
	}
	close(gf.gate)
	src.Wait()

	gf.mu.Lock()
	calls := gf.calls
	gf.mu.Unlock()
	if calls != 2 {
		t.Fatalf("fetch calls = %d, want 2", calls)
	}
	if src.Range() != model.RangeOf(2) {
		t.Fatalf("range = %v, want [0, 1]", src.Range())
	}
	events := rec.snapshot()
	if len(events) != 6 {
		t.Fatalf("got %d events, want 6: %#v", len(events), events)
	}
	if got := demandOf(t, events[4]); got != 7 {
		t.Fatalf("refreshed demand = %v, want 7", got)
	}
	if _, ok := events[5].(EventBusy); !ok || src.Busy() {
		t.Fatalf("source busy after deferred refresh")
	}
}

func TestStartOnEmptyRange(t *testing.T) {
	src := New(kb.NewStore(), nil)
	rec := &recorder{}
	src.Subscribe(rec.add)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := rec.snapshot()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if ev, ok := events[0].(EventSnapshot); !ok || ev.Snapshot != nil || !errors.Is(ev.Err, model.ErrPeriodOutOfRange) {
		t.Fatalf("event = %#v, want empty-range notice", events[0])
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	src := New(newStore(t, 2), nil)
	rec := &recorder{}
	unsubscribe := src.Subscribe(rec.add)
	unsubscribe()
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Wait()
	if n := len(rec.snapshot()); n != 0 {
		t.Fatalf("got %d events after unsubscribe", n)
	}
}
