// Package aggregate collects one quote per configured source concurrently
// and assembles them into a single rates.Snapshot. The join is
// all-or-nothing: one failed source fails the whole cycle.
package aggregate

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/rs/zerolog/log"
    "golang.org/x/sync/errgroup"

    "ratecalc/internal/metrics"
    "ratecalc/internal/provider"
    "ratecalc/internal/rates"
)

var ErrNoProviders = errors.New("aggregate: no providers configured")

// AggregationError reports every source that failed in one cycle.
type AggregationError struct {
    Total int
    Errs  []error
}

func (e *AggregationError) Error() string {
    msgs := make([]string, 0, len(e.Errs))
    for _, err := range e.Errs { msgs = append(msgs, err.Error()) }
    return fmt.Sprintf("aggregate: %d of %d sources failed: %s", len(e.Errs), e.Total, strings.Join(msgs, "; "))
}

func (e *AggregationError) Unwrap() []error { return e.Errs }

// Sources lists the names of the failed sources in configuration order.
func (e *AggregationError) Sources() []string {
    out := make([]string, 0, len(e.Errs))
    for _, err := range e.Errs {
        var fe *provider.FetchError
        if errors.As(err, &fe) {
            out = append(out, fe.Source)
        }
    }
    return out
}

type Option func(*Aggregator)

// WithMetrics records per-source and per-cycle metrics.
func WithMetrics(m *metrics.RateMetrics) Option {
    return func(a *Aggregator) { a.metrics = m }
}

// WithClock replaces time.Now for the snapshot timestamp.
func WithClock(now func() time.Time) Option {
    return func(a *Aggregator) { a.now = now }
}

// Aggregator holds configuration only; nothing is shared between cycles.
type Aggregator struct {
    providers []provider.Provider
    metrics   *metrics.RateMetrics
    now       func() time.Time
}

// New checks that every provider fills a distinct, non-empty snapshot key.
func New(providers []provider.Provider, opts ...Option) (*Aggregator, error) {
    if len(providers) == 0 { return nil, ErrNoProviders }
    seen := make(map[string]string, len(providers))
    for _, p := range providers {
        k := p.Key()
        if k == "" || k == rates.KeyFetchedAt {
            return nil, fmt.Errorf("aggregate: provider %s: invalid key %q", p.Name(), k)
        }
        if other, dup := seen[k]; dup {
            return nil, fmt.Errorf("aggregate: providers %s and %s both fill %q", other, p.Name(), k)
        }
        seen[k] = p.Name()
    }
    a := &Aggregator{providers: append([]provider.Provider(nil), providers...), now: time.Now}
    for _, opt := range opts { opt(a) }
    return a, nil
}

// Keys returns the snapshot fields this aggregator fills, in provider order.
func (a *Aggregator) Keys() []string {
    out := make([]string, 0, len(a.providers))
    for _, p := range a.providers { out = append(out, p.Key()) }
    return out
}

// FetchQuote issues one fetch against p. Any failure is a *provider.FetchError.
func (a *Aggregator) FetchQuote(ctx context.Context, p provider.Provider) (provider.Quote, error) {
    start := time.Now()
    q, err := p.Fetch(ctx)
    elapsed := time.Since(start)
    a.metrics.RecordUpstream(p.Name(), elapsed.Seconds(), err)
    if err != nil {
        err = provider.Fail(p.Name(), err)
        log.Warn().Str("source", p.Name()).Dur("elapsed", elapsed).Err(err).Msg("quote fetch failed")
        return provider.Quote{}, err
    }
    if q.Key == "" { q.Key = p.Key() }
    if q.Key != p.Key() {
        return provider.Quote{}, &provider.FetchError{Source: p.Name(), Err: fmt.Errorf("%w: quote for %q, want %q", provider.ErrMalformedPayload, q.Key, p.Key())}
    }
    log.Debug().Str("source", p.Name()).Str("key", q.Key).Float64("rate", q.Rate).Dur("elapsed", elapsed).Msg("quote fetched")
    return q, nil
}

// Aggregate fetches every source concurrently and waits for all of them to
// settle. The snapshot is built only when every fetch succeeded; otherwise
// an *AggregationError listing each failure is returned. No cancellation is
// added here; callers bound the whole call through ctx.
func (a *Aggregator) Aggregate(ctx context.Context) (rates.Snapshot, error) {
    start := time.Now()
    quotes := make([]provider.Quote, len(a.providers))
    errs := make([]error, len(a.providers))

    // Failures are kept per slot so every source settles and gets reported.
    var g errgroup.Group
    for i, p := range a.providers {
        g.Go(func() error {
            quotes[i], errs[i] = a.FetchQuote(ctx, p)
            return nil
        })
    }
    _ = g.Wait() // closures never fail

    var failed []error
    for _, err := range errs {
        if err != nil { failed = append(failed, err) }
    }
    if len(failed) > 0 {
        err := &AggregationError{Total: len(a.providers), Errs: failed}
        a.metrics.RecordAggregation(time.Since(start).Seconds(), nil, 0, err)
        log.Error().Strs("sources", err.Sources()).Int("failed", len(failed)).Int("total", err.Total).Msg("aggregation failed")
        return rates.Snapshot{}, err
    }

    fields := make(map[string]float64, len(quotes))
    for _, q := range quotes { fields[q.Key] = q.Rate }
    snap, err := rates.New(fields, a.now())
    if err != nil {
        err = &AggregationError{Total: len(a.providers), Errs: []error{err}}
        a.metrics.RecordAggregation(time.Since(start).Seconds(), nil, 0, err)
        return rates.Snapshot{}, err
    }

    a.metrics.RecordAggregation(time.Since(start).Seconds(), snap.Fields(), float64(snap.FetchedAt().UnixNano())/1e9, nil)
    log.Info().Int("sources", len(quotes)).Dur("elapsed", time.Since(start)).Msg("snapshot aggregated")
    return snap, nil
}
