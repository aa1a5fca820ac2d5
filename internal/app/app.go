// Package app wires configuration into the rate sources, the aggregator,
// the pricing engine and the snapshot cache shared by the binaries.
package app

import (
    "context"
    "fmt"
    "io"

    "ratecalc/internal/aggregate"
    "ratecalc/internal/cache"
    "ratecalc/internal/config"
    "ratecalc/internal/httpx"
    "ratecalc/internal/metrics"
    "ratecalc/internal/pricing"
    "ratecalc/internal/provider"
    "ratecalc/internal/provider/binance"
    "ratecalc/internal/provider/binancep2p"
    "ratecalc/internal/provider/dolarapi"
    "ratecalc/internal/provider/ratelimit"
)

type App struct {
    Config     config.Config
    HTTP       *httpx.Client
    Pools      []*binancep2p.Adapter
    Providers  []provider.Provider
    Aggregator *aggregate.Aggregator
    Engine     *pricing.Engine
    Metrics    *metrics.RateMetrics
}

// New builds every component from cfg. m may be nil.
func New(cfg config.Config, m *metrics.RateMetrics) (*App, error) {
    if err := cfg.Validate(); err != nil { return nil, err }

    hc := httpx.New(cfg.Server.RequestTimeout())
    a := &App{Config: cfg, HTTP: hc, Metrics: m}

    a.Providers = append(a.Providers, dolarapi.New(dolarapi.Config{Key: cfg.Official.Key, URL: cfg.Official.URL}, hc))
    if cfg.Auxiliary.Enabled {
        a.Providers = append(a.Providers, dolarapi.New(dolarapi.Config{Key: cfg.Auxiliary.Key, URL: cfg.Auxiliary.URL}, hc))
    }

    client := binance.NewP2PClient(binance.WithBaseURL(cfg.P2P.Endpoint), binance.WithHTTPClient(hc))
    var pools []provider.Provider
    for _, p := range cfg.P2P.Pools {
        ad := binancep2p.New(binancep2p.Config{
            Key:           p.Key,
            Fiat:          p.Fiat,
            PayTypes:      p.PayTypes,
            Asset:         cfg.P2P.Asset,
            TradeType:     cfg.P2P.TradeType,
            Rows:          cfg.P2P.Rows,
            PublisherType: cfg.P2P.PublisherType,
            Classifies:    cfg.P2P.Classifies,
        }, client)
        a.Pools = append(a.Pools, ad)
        pools = append(pools, ad)
    }
    // All pools hit the same upstream, so they share one bucket.
    lim := ratelimit.NewLimiter(float64(cfg.P2P.MaxRequestsPerMinute), cfg.P2P.Burst)
    a.Providers = append(a.Providers, ratelimit.Wrap(lim, pools...)...)

    agg, err := aggregate.New(a.Providers, aggregate.WithMetrics(m))
    if err != nil { return nil, err }
    a.Aggregator = agg

    reg, err := pricing.NewRegistry(cfg.Pricing.Platforms)
    if err != nil { return nil, fmt.Errorf("platforms: %w", err) }
    a.Engine = pricing.NewEngine(reg, cfg.Fees())
    return a, nil
}

// NewCache builds the snapshot cache on the configured backend. The
// returned closer releases the backend.
func (a *App) NewCache(ctx context.Context) (*cache.Cache, io.Closer, error) {
    cc := a.Config.Cache
    var (
        store  cache.Store = cache.NewMemoryStore()
        closer io.Closer   = nopCloser{}
    )
    if cc.Backend == "redis" {
        client := cache.NewRedisClient(cache.RedisConfig{Addr: cc.Redis.Addr, Password: cc.Redis.Password, DB: cc.Redis.DB})
        rs := cache.NewRedisStore(client, cc.Redis.Key)
        if err := rs.Ping(ctx); err != nil {
            _ = client.Close()
            return nil, nil, fmt.Errorf("redis %s: %w", cc.Redis.Addr, err)
        }
        store, closer = rs, client
    }
    c := cache.New(a.Aggregator, store, cache.Config{
        MaxAge:               cc.MaxAge(),
        StaleWhileRevalidate: cc.StaleWhileRevalidate(),
        RefreshTimeout:       a.Config.Server.AggregateTimeout(),
    }, cache.WithMetrics(a.Metrics))
    return c, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
