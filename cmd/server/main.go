package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/rs/zerolog/log"

    "ratecalc/internal/app"
    "ratecalc/internal/config"
    "ratecalc/internal/logging"
    "ratecalc/internal/metrics"
)

func main() {
    // Config
    cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
    if err != nil {
        logging.Setup("info", "console")
        log.Fatal().Err(err).Msg("config")
    }
    logging.Setup(cfg.Log.Level, cfg.Log.Format)

    reg := prometheus.NewRegistry()
    reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    m := metrics.NewRateMetrics(reg)

    a, err := app.New(cfg, m)
    if err != nil { log.Fatal().Err(err).Msg("wiring") }

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    snapshots, closer, err := a.NewCache(ctx)
    if err != nil { log.Fatal().Err(err).Msg("cache") }
    defer closer.Close()

    h := &handler{
        snapshots: snapshots,
        engine:    a.Engine,
        metrics:   m,
        maxAge:    cfg.Cache.MaxAge(),
        swr:       cfg.Cache.StaleWhileRevalidate(),
    }

    root := http.NewServeMux()
    root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
    root.Handle("/", withRequestID(withJSONHeaders(withGzip(recoverPanic(limitBody(maxBodyBytes)(h.routes()))))))

    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           root,
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        WriteTimeout:      cfg.Server.AggregateTimeout() + 5*time.Second,
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        log.Info().Str("addr", srv.Addr).Strs("platforms", a.Engine.Platforms().IDs()).Strs("sources", a.Aggregator.Keys()).Msg("server listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal().Err(err).Msg("server")
        }
    }()

    // graceful shutdown
    <-ctx.Done()
    log.Info().Msg("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        log.Error().Err(err).Msg("shutdown")
    }
    snapshots.Wait()
}
