// Package cache serves rate snapshots with a max-age plus
// stale-while-revalidate policy in front of the aggregator.
package cache

import (
    "context"
    "sync"
    "sync/atomic"
    "time"

    "github.com/rs/zerolog/log"
    "golang.org/x/sync/singleflight"

    "ratecalc/internal/metrics"
    "ratecalc/internal/rates"
)

type Status string

const (
    StatusHit   Status = "HIT"
    StatusStale Status = "STALE"
    StatusMiss  Status = "MISS"
)

const (
    DefaultMaxAge               = 1200 * time.Second
    DefaultStaleWhileRevalidate = 600 * time.Second
    DefaultRefreshTimeout       = 15 * time.Second
)

// Source produces a fresh snapshot. *aggregate.Aggregator satisfies it.
type Source interface {
    Aggregate(ctx context.Context) (rates.Snapshot, error)
}

type Config struct {
    MaxAge               time.Duration
    StaleWhileRevalidate time.Duration
    // RefreshTimeout bounds every refresh, detached from the caller.
    RefreshTimeout time.Duration
}

type Option func(*Cache)

func WithMetrics(m *metrics.RateMetrics) Option { return func(c *Cache) { c.metrics = m } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

type Cache struct {
    src     Source
    store   Store
    cfg     Config
    metrics *metrics.RateMetrics
    now     func() time.Time

    group      singleflight.Group
    bg         sync.WaitGroup
    refreshing atomic.Bool
}

func New(src Source, store Store, cfg Config, opts ...Option) *Cache {
    if cfg.MaxAge <= 0 { cfg.MaxAge = DefaultMaxAge }
    if cfg.StaleWhileRevalidate < 0 { cfg.StaleWhileRevalidate = 0 }
    if cfg.RefreshTimeout <= 0 { cfg.RefreshTimeout = DefaultRefreshTimeout }
    if store == nil { store = NewMemoryStore() }
    c := &Cache{src: src, store: store, cfg: cfg, now: time.Now}
    for _, opt := range opts { opt(c) }
    return c
}

func (c *Cache) Config() Config { return c.cfg }

// Get returns the cached snapshot when it is younger than MaxAge (HIT).
// Within the grace window the stored snapshot is returned (STALE) and one
// background refresh is started. Otherwise the caller waits for a refresh
// (MISS); concurrent callers share it. A failed refresh never yields a
// snapshot older than MaxAge plus the grace window.
func (c *Cache) Get(ctx context.Context) (rates.Snapshot, Status, error) {
    e, ok, err := c.store.Get(ctx)
    if err != nil {
        log.Warn().Err(err).Msg("cache store read failed")
        ok = false
    }
    if ok {
        age := c.now().Sub(e.StoredAt)
        switch {
        case age < c.cfg.MaxAge:
            c.metrics.RecordCacheLookup(string(StatusHit))
            return e.Snapshot, StatusHit, nil
        case age < c.cfg.MaxAge+c.cfg.StaleWhileRevalidate:
            c.metrics.RecordCacheLookup(string(StatusStale))
            c.revalidate()
            return e.Snapshot, StatusStale, nil
        }
    }

    c.metrics.RecordCacheLookup(string(StatusMiss))
    ch := c.group.DoChan("refresh", func() (any, error) { return c.refresh("sync") })
    select {
    case <-ctx.Done():
        return rates.Snapshot{}, StatusMiss, ctx.Err()
    case res := <-ch:
        if res.Err != nil { return rates.Snapshot{}, StatusMiss, res.Err }
        return res.Val.(rates.Snapshot), StatusMiss, nil
    }
}

// Refresh forces a synchronous refresh and stores the result.
func (c *Cache) Refresh(ctx context.Context) (rates.Snapshot, error) {
    ch := c.group.DoChan("refresh", func() (any, error) { return c.refresh("sync") })
    select {
    case <-ctx.Done():
        return rates.Snapshot{}, ctx.Err()
    case res := <-ch:
        if res.Err != nil { return rates.Snapshot{}, res.Err }
        return res.Val.(rates.Snapshot), nil
    }
}

// Wait blocks until background refreshes have finished.
func (c *Cache) Wait() { c.bg.Wait() }

// revalidate starts at most one background refresh at a time.
func (c *Cache) revalidate() {
    if !c.refreshing.CompareAndSwap(false, true) { return }
    c.bg.Add(1)
    go func() {
        defer c.bg.Done()
        defer c.refreshing.Store(false)
        _, _, _ = c.group.Do("refresh", func() (any, error) { return c.refresh("background") })
    }()
}

func (c *Cache) refresh(mode string) (rates.Snapshot, error) {
    ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RefreshTimeout)
    defer cancel()

    snap, err := c.src.Aggregate(ctx)
    c.metrics.RecordCacheRefresh(mode, err)
    if err != nil {
        log.Warn().Str("mode", mode).Err(err).Msg("snapshot refresh failed")
        return rates.Snapshot{}, err
    }
    ttl := c.cfg.MaxAge + c.cfg.StaleWhileRevalidate
    if err := c.store.Set(ctx, Entry{Snapshot: snap, StoredAt: c.now()}, ttl); err != nil {
        log.Warn().Err(err).Msg("cache store write failed")
    }
    log.Debug().Str("mode", mode).Time("fetched_at", snap.FetchedAt()).Msg("snapshot refreshed")
    return snap, nil
}
