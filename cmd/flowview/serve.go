package main

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/flowview/internal/config"
	"github.com/signalsfoundry/flowview/internal/datasource"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/internal/observability"
	"github.com/signalsfoundry/flowview/internal/periodrpc"
	"github.com/signalsfoundry/flowview/kb"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a results file over the period gRPC API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd, map[string]string{
				"source.path":         "results",
				"server.grpc_address": "grpc-addr",
				"metrics.address":     "metrics-addr",
				"source.watch":        "watch",
			})
			if err != nil {
				return err
			}
			lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
			if err != nil {
				return errors.Wrapf(err, "listen %s", cfg.Server.GRPCAddress)
			}
			return runServe(cmd.Context(), cfg, log, lis)
		},
	}
	flags := cmd.Flags()
	flags.String("results", "", "results file holding every period")
	flags.String("grpc-addr", "", "TCP address the period gRPC server listens on")
	flags.String("metrics-addr", "", "HTTP address for Prometheus /metrics")
	flags.Bool("watch", false, "reload the results file when it changes")
	return cmd
}

// runServe serves cfg.Source.Path on lis until ctx ends.
func runServe(ctx context.Context, cfg *config.Config, log logging.Logger, lis net.Listener) error {
	stopTracing, err := startTracing(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopTracing()

	store := kb.NewStore()
	if err := store.LoadFile(cfg.Source.Path); err != nil {
		return err
	}
	log.Info(ctx, "loaded results",
		logging.String("path", cfg.Source.Path),
		logging.String("range", store.Range().String()),
	)

	if cfg.Source.Watch {
		w, err := datasource.WatchFile(ctx, cfg.Source.Path, func(context.Context) error {
			return store.LoadFile(cfg.Source.Path)
		}, datasource.DefaultDebounce, log)
		if err != nil {
			return err
		}
		defer w.Close()
	}

	collector, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return errors.Wrap(err, "init metrics")
	}
	metricsSrv := serveMetrics(cfg.Metrics.Address, collector, log)
	defer shutdownHTTP(metricsSrv, log)

	server := periodrpc.NewGRPCServer(log, collector)
	periodrpc.RegisterPeriodServiceServer(server, periodrpc.NewServer(store, log))

	log.Info(ctx, "starting period gRPC server", logging.String("addr", lis.Addr().String()))
	errc := make(chan error, 1)
	go func() { errc <- server.Serve(lis) }()

	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down period server")
		server.GracefulStop()
		return nil
	case err := <-errc:
		return errors.Wrap(err, "grpc server exited")
	}
}
