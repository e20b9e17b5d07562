package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"

	"github.com/signalsfoundry/flowview/internal/bridge"
	"github.com/signalsfoundry/flowview/internal/config"
	"github.com/signalsfoundry/flowview/internal/datasource"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/kb"
	"github.com/signalsfoundry/flowview/model"
)

func init() {
	color.NoColor = true
	pterm.DisableStyling()
}

func writeResults(t *testing.T) string {
	t.Helper()
	periods := []*model.Snapshot{
		{
			Nodes:  []model.Node{{ID: "A", Type: model.NodeTypeNode, Demand: 10}, {ID: "B", Type: model.NodeTypeNode, Demand: 5}},
			Edges:  []model.Edge{{ID: "A-B", Source: "A", Target: "B", Value: 3}},
			Plants: []model.Plant{{ID: "P1", Parent: "A", Value: 7, IsWorking: true}},
		},
		{
			Nodes:  []model.Node{{ID: "A", Type: model.NodeTypeNode, Demand: 12}, {ID: "B", Type: model.NodeTypeNode, Demand: 5}},
			Edges:  []model.Edge{{ID: "A-B", Source: "A", Target: "B", Value: -4}},
			Plants: []model.Plant{{ID: "P1", Parent: "A", Value: 8, IsWorking: true}},
		},
	}
	data, err := model.EncodeResults(periods)
	if err != nil {
		t.Fatalf("EncodeResults: %v", err)
	}
	path := filepath.Join(t.TempDir(), "results.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write results: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(config.NewViper(), "")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	return lis
}

func testLogger() logging.Logger {
	return logging.New(logging.Config{Level: "warn", Output: io.Discard})
}

func TestInspectPrintsLabel(t *testing.T) {
	path := writeResults(t)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"inspect", path, "--period", "1", "--node", "B"})
	if err := root.Execute(); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	got := out.String()
	// A-B carries -4 into B: an inbound negative value is outflow.
	for _, want := range []string{"B", "Demand", "5 MW", "A-B", "-4 MW"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Generation") {
		t.Fatalf("generation rendered for B:\n%s", got)
	}
}

func TestInspectListsNodes(t *testing.T) {
	path := writeResults(t)

	var out bytes.Buffer
	if err := runInspect(&out, path, 0, ""); err != nil {
		t.Fatalf("runInspect: %v", err)
	}
	got := out.String()
	for _, want := range []string{"period 0", "[0, 1]", "A", "10 MW", "B"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestInspectErrors(t *testing.T) {
	path := writeResults(t)

	if err := runInspect(io.Discard, path, 5, "A"); !errors.Is(err, model.ErrPeriodOutOfRange) {
		t.Fatalf("period 5 err = %v, want ErrPeriodOutOfRange", err)
	}
	if err := runInspect(io.Discard, filepath.Join(t.TempDir(), "missing.json"), 0, ""); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestViewOverGRPCSource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log := testLogger()

	serveCfg := testConfig(t)
	serveCfg.Source.Path = writeResults(t)
	grpcLis := listen(t)
	serveErr := make(chan error, 1)
	go func() { serveErr <- runServe(ctx, serveCfg, log, grpcLis) }()

	viewCfg := testConfig(t)
	viewCfg.Source.Kind = config.SourceGRPC
	viewCfg.Source.Address = grpcLis.Addr().String()
	httpLis := listen(t)
	viewErr := make(chan error, 1)
	go func() { viewErr <- runView(ctx, viewCfg, log, httpLis) }()

	url := "ws://" + httpLis.Addr().String() + "/ws"
	var conn *websocket.Conn
	deadline := time.Now().Add(5 * time.Second)
	for {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			conn = c
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Dial: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	defer conn.Close()

	// The first period may still be in flight; wait for its elements.
	seen := 0
	for seen == 0 {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		var msg bridge.Outbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type == bridge.TypeAdd {
			seen = len(msg.Elements)
		}
	}
	if seen != 4 {
		t.Fatalf("added %d elements, want 4", seen)
	}

	resp, err := http.Get("http://" + httpLis.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "flowview_bridge_clients 1") {
		t.Fatalf("metrics missing bridge client gauge:\n%s", body)
	}

	cancel()
	for name, errc := range map[string]chan error{"serve": serveErr, "view": viewErr} {
		select {
		case err := <-errc:
			if err != nil {
				t.Fatalf("%s returned %v", name, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s did not stop", name)
		}
	}
}

func TestReloadRefreshesSource(t *testing.T) {
	ctx := context.Background()
	store := kb.NewStore()
	if err := store.LoadFile(writeResults(t)); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	source := datasource.New(store, testLogger())
	unsubscribe := refreshOnReload(ctx, store, source, testLogger())
	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	source.Wait()
	if !source.Load(1) {
		t.Fatalf("Load(1) dropped")
	}
	source.Wait()

	one := &model.Snapshot{Nodes: []model.Node{{ID: "A", Type: model.NodeTypeNode, Demand: 1}}}
	if err := store.Load([]*model.Snapshot{one}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	source.Wait()
	if got := source.Range(); got != model.RangeOf(1) {
		t.Fatalf("range after reload = %v, want [0, 0]", got)
	}
	if got := source.Cursor(); got != 0 {
		t.Fatalf("cursor after reload = %d, want 0", got)
	}

	unsubscribe()
	if err := store.Load([]*model.Snapshot{one, one, one}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	source.Wait()
	if got := source.Range(); got != model.RangeOf(1) {
		t.Fatalf("range after unsubscribe = %v, want [0, 0]", got)
	}
}

func TestViewRejectsUnknownConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"view", "--source", "kafka"})
	err := root.Execute()
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("view --source kafka = %v, want ErrInvalidConfig", err)
	}
}
