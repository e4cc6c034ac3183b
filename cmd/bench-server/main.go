package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/lensworks/raybench/internal/api"
	"github.com/lensworks/raybench/internal/archive"
	"github.com/lensworks/raybench/internal/logging"
	"github.com/lensworks/raybench/internal/observability"
	"github.com/lensworks/raybench/internal/scenario"
	"github.com/lensworks/raybench/internal/state"
	"github.com/lensworks/raybench/optics"
)

func main() {
	addr := flag.String("addr", ":8080", "TCP address the bench HTTP API listens on")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics")
	dbPath := flag.String("db", "bench.db", "Path to the SQLite trace archive; empty disables archiving")
	authToken := flag.String("auth-token", os.Getenv("RAYBENCH_AUTH_TOKEN"), "Bearer token for mutating endpoints; empty disables them")
	scenarioPath := flag.String("scenario", "", "Path to a JSON bench description to preload")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	collector, err := observability.NewBenchCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}

	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	sys := loadSystem(ctx, log, *scenarioPath)

	opts := []state.Option{
		state.WithLogger(log),
		state.WithMetricsRecorder(collector),
	}

	var store *archive.Store
	if *dbPath != "" {
		store, err = archive.Open(*dbPath)
		if err != nil {
			log.Error(ctx, "failed to open trace archive", logging.String("path", *dbPath), logging.Err(err))
			os.Exit(1)
		}
		defer store.Close()
		opts = append(opts, state.WithArchive(store))
	}

	bench, err := state.NewBenchState(sys, opts...)
	if err != nil {
		log.Error(ctx, "failed to initialise bench state", logging.Err(err))
		os.Exit(1)
	}

	srv, err := api.NewServer(api.Config{
		Bench:     bench,
		Store:     store,
		Metrics:   collector,
		Log:       log,
		AuthToken: *authToken,
	})
	if err != nil {
		log.Error(ctx, "failed to build API server", logging.Err(err))
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:    *addr,
		Handler: srv.Handler(),
	}

	log.Info(ctx, "starting bench HTTP server",
		logging.String("addr", *addr),
		logging.String("system", sys.Label()),
		logging.Any("auth", *authToken != ""),
		logging.Any("archive", store != nil),
	)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server exited", logging.Err(err))
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down bench server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

// loadSystem builds the starting bench: the scenario file when one is
// given, otherwise an empty bench ready for API mutation.
func loadSystem(ctx context.Context, log logging.Logger, path string) *optics.OpticalSystem {
	if path == "" {
		src, err := optics.NewSource(100, []float64{0})
		if err != nil {
			log.Error(ctx, "failed to build default source", logging.Err(err))
			os.Exit(1)
		}
		scr, err := optics.NewScreen(0)
		if err != nil {
			log.Error(ctx, "failed to build default screen", logging.Err(err))
			os.Exit(1)
		}
		sys, err := optics.NewOpticalSystem(src, nil, scr, "bench")
		if err != nil {
			log.Error(ctx, "failed to build default bench", logging.Err(err))
			os.Exit(1)
		}
		return sys
	}

	f, err := os.Open(path)
	if err != nil {
		log.Error(ctx, "failed to open bench scenario", logging.String("path", path), logging.Err(err))
		os.Exit(1)
	}
	defer f.Close()

	sys, sum, err := scenario.LoadBench(f)
	if err != nil {
		log.Error(ctx, "failed to load bench scenario", logging.String("path", path), logging.Err(err))
		os.Exit(1)
	}
	log.Info(ctx, "loaded bench scenario",
		logging.String("path", path),
		logging.String("label", sum.Label),
		logging.Int("elements", len(sum.Elements)),
		logging.Int("operators", sum.Operators),
	)
	return sys
}

func serveMetrics(addr string, collector *observability.BenchCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
