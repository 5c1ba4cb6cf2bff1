package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vnykmshr/volqos/pkg/metrics"
	"github.com/vnykmshr/volqos/pkg/qos"
	"github.com/vnykmshr/volqos/pkg/volume"
)

// watchCmd holds gates for volumes, keeps them in step with published
// changes and serves their metrics.
type watchCmd struct {
	rt *runtime

	listen string
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "follow limit changes of volumes and serve metrics" }
func (*watchCmd) Usage() string    { return "watch [-listen addr] <volume>...\n" }

func (w *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&w.listen, "listen", "", "metrics listen address (default from config)")
}

func (w *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(w.rt.out, "no volume provided.")
		return subcommands.ExitUsageError
	}
	for _, name := range f.Args() {
		if err := qos.ValidateVolumeName(name); err != nil {
			fmt.Fprintln(w.rt.out, err)
			return subcommands.ExitUsageError
		}
	}
	if err := w.run(ctx, f.Args()); err != nil {
		w.rt.log().Error("watch failed", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (w *watchCmd) run(ctx context.Context, names []string) error {
	cfg, err := w.rt.config()
	if err != nil {
		return err
	}
	nc, err := w.rt.natsConn()
	if err != nil {
		return err
	}
	if nc == nil {
		return errors.New("watch needs a NATS server: set [nats] url in the config")
	}
	coord, err := w.rt.coordinator(ctx)
	if err != nil {
		return err
	}

	logger := w.rt.log()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := metrics.DefaultConfig()
	mc.Registry = reg

	watcher := qos.NewWatcher(nc, qos.WatcherConfig{
		Subject: cfg.NATS.Subject,
		Origin:  coord.Origin(),
		Logger:  logger,
	})
	var gates []*volume.Gate
	defer func() {
		_ = watcher.Close()
		for _, g := range gates {
			_ = g.Close()
		}
	}()

	for _, name := range names {
		gate, err := volume.NewWithConfig(volume.Config{Name: name, Metrics: &mc, Logger: logger})
		if err != nil {
			return err
		}
		gates = append(gates, gate)

		l, err := coord.Load(ctx, name, gate)
		if err != nil {
			return err
		}
		logger.Info("volume loaded", "volume", name, "limits", l.String())
		coord.Attach(name, gate)
		watcher.Watch(name, gate)
	}
	if err := watcher.Start(); err != nil {
		return err
	}

	addr := w.listen
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-done:
		return err
	}
}
