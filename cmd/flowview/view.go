package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/flowview/core"
	"github.com/signalsfoundry/flowview/internal/bridge"
	"github.com/signalsfoundry/flowview/internal/canvas"
	"github.com/signalsfoundry/flowview/internal/config"
	"github.com/signalsfoundry/flowview/internal/datasource"
	"github.com/signalsfoundry/flowview/internal/graphsync"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/internal/navigation"
	"github.com/signalsfoundry/flowview/internal/observability"
	"github.com/signalsfoundry/flowview/internal/overlay"
	"github.com/signalsfoundry/flowview/internal/periodrpc"
	"github.com/signalsfoundry/flowview/internal/view"
	"github.com/signalsfoundry/flowview/kb"
	"github.com/signalsfoundry/flowview/timectrl"
)

func newViewCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Run the headless viewer and its browser bridge",
		Long: `view keeps a headless canvas in sync with the period source and mirrors it
to browser clients connected on /ws. Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd, map[string]string{
				"source.kind":         "source",
				"source.path":         "results",
				"source.address":      "source-addr",
				"source.watch":        "watch",
				"view.listen_address": "listen",
				"view.autoplay":       "autoplay",
			})
			if err != nil {
				return err
			}
			lis, err := net.Listen("tcp", cfg.View.ListenAddress)
			if err != nil {
				return errors.Wrapf(err, "listen %s", cfg.View.ListenAddress)
			}
			return runView(cmd.Context(), cfg, log, lis)
		},
	}
	flags := cmd.Flags()
	flags.String("source", "", "period source: file or grpc")
	flags.String("results", "", "results file for the file source")
	flags.String("source-addr", "", "period gRPC server for the grpc source")
	flags.Bool("watch", false, "reload the results file when it changes")
	flags.String("listen", "", "HTTP address for /ws and /metrics")
	flags.Duration("autoplay", 0, "advance one period per interval; 0 disables")
	return cmd
}

// openFetcher returns the configured period source and a release hook.
func openFetcher(ctx context.Context, cfg *config.Config, log logging.Logger) (datasource.Fetcher, func(), error) {
	switch cfg.Source.Kind {
	case config.SourceGRPC:
		client, err := periodrpc.Dial(cfg.Source.Address)
		if err != nil {
			return nil, nil, err
		}
		log.Info(ctx, "using period gRPC source", logging.String("addr", cfg.Source.Address))
		return client, func() { _ = client.Close() }, nil
	default:
		store := kb.NewStore()
		if err := store.LoadFile(cfg.Source.Path); err != nil {
			return nil, nil, err
		}
		log.Info(ctx, "using results file",
			logging.String("path", cfg.Source.Path),
			logging.String("range", store.Range().String()),
		)
		return store, func() {}, nil
	}
}

// refreshOnReload re-delivers the current period whenever store is
// reloaded. It returns the unsubscribe hook.
func refreshOnReload(ctx context.Context, store *kb.Store, source *datasource.Source, log logging.Logger) func() {
	return store.Subscribe(func(ev kb.Event) {
		if ev.Type != kb.EventReloaded {
			return
		}
		if !source.Refresh() {
			log.Debug(ctx, "refresh deferred until the current period loads",
				logging.String("range", ev.Range.String()))
		}
	})
}

// runView wires the viewer and serves the bridge on lis until ctx ends.
func runView(ctx context.Context, cfg *config.Config, log logging.Logger, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopTracing, err := startTracing(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTracing()

	src, release, err := openFetcher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer release()

	collector, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return errors.Wrap(err, "init metrics")
	}

	cv := canvas.New(core.Size{Width: cfg.View.CanvasWidth, Height: cfg.View.CanvasHeight}, log)
	br := bridge.New(cv, log,
		bridge.WithMetricsRecorder(collector),
		bridge.WithEventsPerSecond(cfg.View.EventsPerSecond),
		bridge.WithOverlaySize(core.Size{Width: cfg.View.OverlayWidth, Height: cfg.View.OverlayHeight}),
	)
	defer br.Close()

	source := datasource.New(src, log, datasource.WithFetchTimeout(cfg.Source.FetchTimeout))
	defer source.Wait()

	v := view.New(view.Components{
		Source:     source,
		Graph:      graphsync.New(cv, log, graphsync.WithMetricsRecorder(collector)),
		Overlay:    overlay.New(cv, br, log, overlay.WithPadding(cfg.View.OverlayPadding), overlay.WithMetricsRecorder(collector)),
		Navigation: navigation.New(source, 0, log, navigation.WithMetricsRecorder(collector)),
		Presenter:  br,
	}, log)
	br.Attach(v)

	viewDone := make(chan error, 1)
	go func() { viewDone <- v.Run(ctx) }()
	<-v.Ready()

	if err := source.Start(ctx); err != nil {
		return err
	}

	if store, ok := src.(*kb.Store); ok {
		defer refreshOnReload(ctx, store, source, log)()
		if cfg.Source.Watch {
			w, err := datasource.WatchFile(ctx, cfg.Source.Path, func(context.Context) error {
				return store.LoadFile(cfg.Source.Path)
			}, datasource.DefaultDebounce, log)
			if err != nil {
				return err
			}
			defer w.Close()
		}
	}

	if cfg.View.Autoplay > 0 {
		player := timectrl.NewPlayer(cfg.View.Autoplay)
		player.AddListener(func(int) { v.Post(view.Navigate{Direction: navigation.Forward}) })
		player.Start(ctx, 0)
		log.Info(ctx, "autoplay enabled", logging.Duration("interval", cfg.View.Autoplay))
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", br)
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(lis) }()
	log.Info(ctx, "viewer listening", logging.String("addr", lis.Addr().String()))

	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			cancel()
			<-viewDone
			return errors.Wrap(err, "http server exited")
		}
	}

	shutdownHTTP(srv, log)
	cancel()
	<-viewDone
	log.Info(context.Background(), "viewer stopped")
	return nil
}
