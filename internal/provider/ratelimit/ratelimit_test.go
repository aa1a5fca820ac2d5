package ratelimit

import (
    "context"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
    "golang.org/x/time/rate"

    "ratecalc/internal/provider"
)

type countingProvider struct {
    calls atomic.Int32
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Key() string { return "binanceVes" }

func (c *countingProvider) Fetch(context.Context) (provider.Quote, error) {
    c.calls.Add(1)
    return provider.Quote{Key: "binanceVes", Rate: 36.5}, nil
}

func TestLimited_PassesThrough(t *testing.T) {
    t.Parallel()

    p := &countingProvider{}
    l := &Limited{P: p, L: NewLimiter(0, 0)}
    require.Equal(t, "counting", l.Name())
    require.Equal(t, "binanceVes", l.Key())

    for range 10 {
        q, err := l.Fetch(t.Context())
        require.NoError(t, err)
        require.Equal(t, 36.5, q.Rate)
    }
    require.EqualValues(t, 10, p.calls.Load())
}

func TestLimited_WaitHonorsContext(t *testing.T) {
    t.Parallel()

    // Arrange: one token, refilled once per hour
    p := &countingProvider{}
    lim := rate.NewLimiter(rate.Every(time.Hour), 1)
    wrapped := Wrap(lim, p)
    require.Len(t, wrapped, 1)

    _, err := wrapped[0].Fetch(t.Context())
    require.NoError(t, err)

    // Act: the bucket is empty now
    ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
    defer cancel()
    _, err = wrapped[0].Fetch(ctx)

    // Assert: the limiter refuses instead of calling upstream
    var fe *provider.FetchError
    require.ErrorAs(t, err, &fe)
    require.Equal(t, "counting", fe.Source)
    require.EqualValues(t, 1, p.calls.Load())
}

func TestNewLimiter(t *testing.T) {
    t.Parallel()

    l := NewLimiter(120, 4)
    require.Equal(t, 4, l.Burst())
    require.InDelta(t, 2.0, float64(l.Limit()), 1e-9)

    require.Equal(t, rate.Inf, NewLimiter(-1, 3).Limit())
}
