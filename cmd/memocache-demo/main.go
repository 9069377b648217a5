// Command memocache-demo runs a few memoized calls through a cache.Service
// and serves its metrics and health over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/memocache/cache"
	"github.com/jonwraymond/memocache/health"
	"github.com/jonwraymond/memocache/observe"
	"github.com/jonwraymond/memocache/observe/exporters"
)

// Order is a reconcilable argument: Process marks it done, and cached calls
// replay that onto the caller's order.
type Order struct {
	ID     int      `cache:"id"`
	Status string   `cache:",reconcile"`
	Events []string `cache:",reconcile"`
}

type config struct {
	addr       string
	logLevel   string
	pretty     bool
	ttl        time.Duration
	tracing    string
	maxEntries int
	serve      bool
}

func loadConfig() (config, error) {
	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", "60s"))
	if err != nil {
		return config{}, fmt.Errorf("CACHE_TTL: %w", err)
	}
	maxEntries, err := strconv.Atoi(getEnv("CACHE_MAX_ENTRIES", "10000"))
	if err != nil {
		return config{}, fmt.Errorf("CACHE_MAX_ENTRIES: %w", err)
	}
	serve, err := strconv.ParseBool(getEnv("SERVE", "true"))
	if err != nil {
		return config{}, fmt.Errorf("SERVE: %w", err)
	}

	return config{
		addr:       getEnv("ADDR", ":8080"),
		logLevel:   getEnv("LOG_LEVEL", "info"),
		pretty:     getEnv("LOG_PRETTY", "false") == "true",
		ttl:        ttl,
		tracing:    getEnv("TRACING_EXPORTER", "none"),
		maxEntries: maxEntries,
		serve:      serve,
	}, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "memocache-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := promclient.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: "memocache-demo",
		Version:     "0.1.0",
		Tracing:     observe.TracingConfig{Enabled: cfg.tracing != "none", Exporter: cfg.tracing, SamplePct: 1},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
		Logging:     observe.LoggingConfig{Enabled: true, Level: cfg.logLevel, Pretty: cfg.pretty},
		Exporters:   exporters.Options{Registerer: reg},
	})
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()
	logger := obs.Logger()

	inst, err := observe.InstrumentationFromObserver(obs)
	if err != nil {
		return fmt.Errorf("instrumentation: %w", err)
	}

	reconcilers := cache.NewReconcilers()
	if err := cache.Register(reconcilers, cache.TaggedMembers[Order]()...); err != nil {
		return fmt.Errorf("register Order: %w", err)
	}

	memory := cache.NewMemoryStore()
	store := cache.NewGuardedStore(memory, cache.GuardConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
		OpTimeout:    100 * time.Millisecond,
		OnStateChange: func(from, to cache.BreakerState) {
			logger.Warn(context.Background(), "store circuit changed",
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})

	svc, err := cache.NewService(store,
		cache.WithPolicy(cache.Policy{TTL: cfg.ttl}),
		cache.WithReconcilers(reconcilers),
		cache.WithInstrumentation(inst),
	)
	if err != nil {
		return fmt.Errorf("cache service: %w", err)
	}

	if err := runScenarios(ctx, svc, logger); err != nil {
		return err
	}
	if !cfg.serve {
		return nil
	}

	agg := health.NewAggregator(health.AggregatorConfig{Timeout: 5 * time.Second})
	agg.Register("store", health.NewStoreChecker(store, ""))
	agg.Register("hit_ratio", health.NewHitRatioChecker(svc, health.HitRatioConfig{}))
	agg.Register("store_size", health.NewSizeChecker(memory, health.SizeCheckerConfig{MaxEntries: cfg.maxEntries}))

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", health.StatsHandler(svc))

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "listening", observe.Field{Key: "addr", Value: cfg.addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runScenarios(ctx context.Context, svc *cache.Service, logger observe.Logger) error {
	add := cache.Wrap2(svc.Bind("Add", cache.WithGroup("math")), func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	})

	process := cache.Wrap1(svc.Bind("Process", cache.WithGroup("orders"), cache.WithProperties("id")),
		func(_ context.Context, o *Order) (bool, error) {
			o.Status = "Done"
			o.Events = append(o.Events, "processed")
			return true, nil
		})

	// Warm the adder for small inputs before reporting.
	if err := cache.Warm(ctx, 4, []int{1, 2, 3, 4}, func(ctx context.Context, n int) error {
		_, err := add(ctx, n, n)
		return err
	}); err != nil {
		return fmt.Errorf("warm: %w", err)
	}

	for i := 0; i < 2; i++ {
		sum, err := add(ctx, 2, 3)
		if err != nil {
			return err
		}
		logger.Info(ctx, "add", observe.Field{Key: "sum", Value: sum})
	}

	for i := 0; i < 2; i++ {
		o := &Order{ID: 42, Status: "New"}
		if _, err := process(ctx, o); err != nil {
			return err
		}
		logger.Info(ctx, "process",
			observe.Field{Key: "order", Value: o.ID},
			observe.Field{Key: "status", Value: o.Status},
			observe.Field{Key: "events", Value: o.Events},
		)
	}

	s := svc.Stats()
	logger.Info(ctx, "scenarios done",
		observe.Field{Key: "hits", Value: s.Hits},
		observe.Field{Key: "misses", Value: s.Misses},
		observe.Field{Key: "reconciled", Value: s.Reconciled},
	)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
