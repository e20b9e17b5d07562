package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/flowview/internal/config"
	"github.com/signalsfoundry/flowview/internal/logging"
	"github.com/signalsfoundry/flowview/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "flowview",
		Short: "Energy-network flow viewer",
		Long: `flowview keeps a rendered energy-network graph in sync with successive
simulation periods and explains per-node flows on demand.

Commands:
  serve    - serve a results file over the period gRPC API
  view     - run the headless viewer with its browser bridge
  inspect  - print the label of one node for one period`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (yaml, toml or json)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	_ = opts.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = opts.v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(newServeCmd(opts), newViewCmd(opts), newInspectCmd(opts))
	return root
}

// load binds the command's flags to config keys, resolves the configuration
// and builds the logger for cmd. Commands share keys, so binding happens per
// run.
func (o *rootOptions) load(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, logging.Logger, error) {
	for key, name := range flagKeys {
		if err := o.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, nil, errors.Wrapf(err, "bind --%s", name)
		}
	}
	cfg, err := config.Load(o.v, o.configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, log, nil
}

// startTracing initialises tracing and returns its shutdown hook.
func startTracing(ctx context.Context, cfg *config.Config, log logging.Logger) (func(), error) {
	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return nil, errors.Wrap(err, "init tracing")
	}
	return func() { observability.ShutdownWithTimeout(context.Background(), shutdown, log) }, nil
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func shutdownHTTP(srv *http.Server, log logging.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn(ctx, "http shutdown failed", logging.Err(err))
	}
}
