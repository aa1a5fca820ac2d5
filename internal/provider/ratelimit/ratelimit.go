package ratelimit

import (
    "context"
    "time"

    "golang.org/x/time/rate"

    "ratecalc/internal/provider"
)

// Limited wraps a provider and gates every Fetch on a token bucket. Several
// providers hitting the same upstream should share one limiter.
type Limited struct {
    P provider.Provider
    L *rate.Limiter
}

// NewLimiter builds a bucket refilled perMinute times per minute. A
// non-positive perMinute disables limiting.
func NewLimiter(perMinute float64, burst int) *rate.Limiter {
    if perMinute <= 0 { return rate.NewLimiter(rate.Inf, 0) }
    if burst <= 0 { burst = 1 }
    return rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMinute)), burst)
}

// Wrap gates each provider on the shared limiter l.
func Wrap(l *rate.Limiter, ps ...provider.Provider) []provider.Provider {
    out := make([]provider.Provider, 0, len(ps))
    for _, p := range ps {
        out = append(out, &Limited{P: p, L: l})
    }
    return out
}

func (l *Limited) Name() string { return l.P.Name() }

func (l *Limited) Key() string { return l.P.Key() }

// Fetch waits for a token or returns early if ctx is done.
func (l *Limited) Fetch(ctx context.Context) (provider.Quote, error) {
    if l.L != nil {
        if err := l.L.Wait(ctx); err != nil { return provider.Quote{}, provider.Fail(l.P.Name(), err) }
    }
    return l.P.Fetch(ctx)
}
