// Command kvserver runs the cache-fronted key-value HTTP service.
//
// The bounded LRU cache sits in front of a pluggable persistent store
// (PostgreSQL, bbolt or Redis). Flags fall back to environment variables;
// the PostgreSQL backend additionally honors the standard PG* variables
// when no conninfo is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Ankit-Rajput1112/DECS-Project/cache"
	"github.com/Ankit-Rajput1112/DECS-Project/httpapi"
	"github.com/Ankit-Rajput1112/DECS-Project/kv"
	"github.com/Ankit-Rajput1112/DECS-Project/metrics"
	"github.com/Ankit-Rajput1112/DECS-Project/ratelimit"
	"github.com/Ankit-Rajput1112/DECS-Project/store"
	"github.com/Ankit-Rajput1112/DECS-Project/tracing"
)

func main() {
	var (
		port     = flag.Int("port", envInt("KV_PORT", 8080), "listen port")
		capacity = flag.Int("cache-capacity", envInt("KV_CACHE_CAPACITY", 1000), "maximum number of cached entries")
		backend  = flag.String("store", envString("KV_STORE", "postgres"), "store backend: postgres, bolt or redis")

		pgConninfo = flag.String("pg-conninfo", os.Getenv("KV_PG_CONNINFO"), "PostgreSQL conninfo (empty: PG* environment)")
		boltPath   = flag.String("bolt-path", envString("KV_BOLT_PATH", "kv.db"), "bbolt database file")
		redisAddr  = flag.String("redis-addr", envString("KV_REDIS_ADDR", "127.0.0.1:6379"), "Redis address")
		redisPass  = flag.String("redis-password", os.Getenv("KV_REDIS_PASSWORD"), "Redis password")
		redisDB    = flag.Int("redis-db", envInt("KV_REDIS_DB", 0), "Redis database number")

		rateRPS   = flag.Float64("rate-limit", 0, "global requests per second (0: unlimited)")
		rateBurst = flag.Int("rate-burst", 100, "rate limiter burst size")
		trace     = flag.Bool("trace", false, "emit OpenTelemetry spans to stdout")
	)
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lru, err := cache.New(*capacity)
	if err != nil {
		log.Fatal("invalid cache capacity", zap.Int("capacity", *capacity), zap.Error(err))
	}

	// Store initialization failure is fatal: the service must not serve
	// traffic without its source of truth.
	st, err := openStore(ctx, *backend, *pgConninfo, *boltPath, *redisAddr, *redisPass, *redisDB)
	if err != nil {
		log.Fatal("open store", zap.String("backend", *backend), zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	reg := metrics.NewRegistry()
	svc := kv.NewService(lru, st, reg, log)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(reg.Collector())

	cfg := httpapi.Config{
		PromHandler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
	}
	if *rateRPS > 0 {
		cfg.RateLimit = ratelimit.NewLimiter(*rateRPS, *rateBurst)
	}
	if *trace {
		tp, err := tracing.NewStdoutProvider()
		if err != nil {
			log.Fatal("init tracing", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
		cfg.Tracing = &tracing.Config{TracerProvider: tp}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           httpapi.NewHandler(svc, reg, log, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("kvserver listening",
			zap.Int("port", *port),
			zap.String("store", *backend),
			zap.Int("cache_capacity", *capacity))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, backend, pgConninfo, boltPath, redisAddr, redisPass string, redisDB int) (store.Store, error) {
	switch backend {
	case "postgres":
		return store.OpenPostgres(ctx, pgConninfo)
	case "bolt":
		return store.OpenBolt(boltPath)
	case "redis":
		return store.OpenRedis(ctx, redisAddr, redisPass, redisDB)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
