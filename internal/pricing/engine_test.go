package pricing

import (
    "math"
    "reflect"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "ratecalc/internal/rates"
)

var fetchedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newEngine(t *testing.T) *Engine {
    t.Helper()
    reg, err := NewRegistry(DefaultPlatforms())
    require.NoError(t, err)
    return NewEngine(reg, DefaultFees())
}

func snapshot(fields map[string]float64) rates.Snapshot {
    return rates.MustNew(fields, fetchedAt)
}

func TestCalculate_EndToEndExample(t *testing.T) {
    t.Parallel()

    p := Platform{ID: "zinli", CommissionRate: 0.0375, TaxRate: 0.07, TaxApplicable: true, QuoteKey: "binanceZinli"}
    snap := snapshot(map[string]float64{
        rates.KeyOfficial: 36.50,
        rates.KeyPeer:     40.00,
        "binanceZinli":    40.00,
    })

    r := Calculate(100, p, snap, Fees{CardCommissionRate: 0.028, SpreadFee: 0.05})

    const eps = 1e-9
    require.InDelta(t, 3.75, r.PlatformCommission, eps)
    require.InDelta(t, 0.2625, r.Tax, eps)
    require.InDelta(t, 2.91235, r.CardCommission, eps)
    require.InDelta(t, 106.92485, r.TotalCost, eps)
    require.InDelta(t, 2.45, r.NetProceedsForeign, eps)
    require.InDelta(t, 0.0229, r.YieldRatio, 0.0001)
    require.InDelta(t, 2.29, r.YieldPercent, 0.01)
    require.InDelta(t, 40*r.YieldRatio-36.5, r.SpreadVsOfficial, eps)
    require.InDelta(t, 97.95, r.NetProceedsLocal, eps)
    require.InDelta(t, 97.95/36.5, r.OfficialEquivalent, eps)
    require.InDelta(t, 3650, r.OfficialCostLocal, eps)
    require.InDelta(t, 3650/(97.95/100), r.ComparisonAmount, 1e-6)
    require.InDelta(t, 91.3, r.ComparisonNet, eps)
    require.False(t, r.HasAuxiliary)
    require.Zero(t, r.AuxiliaryCostLocal)
}

func TestCalculate_TotalCostNeverBelowAmount(t *testing.T) {
    t.Parallel()

    e := newEngine(t)
    snap := snapshot(map[string]float64{rates.KeyOfficial: 36.5, rates.KeyPeer: 40, "binanceWally": 1.01, "binanceZinli": 1.02})
    for _, id := range e.Platforms().IDs() {
        for _, amount := range []float64{0, 0.01, 1, 99.99, 100, 2500, 1e9} {
            r, err := e.Calculate(Input{Amount: amount, PlatformID: id}, snap)
            require.NoError(t, err)
            require.GreaterOrEqualf(t, r.TotalCost, amount, "platform=%s amount=%v", id, amount)
        }
    }
}

func TestCalculate_NoTaxWhenNotApplicable(t *testing.T) {
    t.Parallel()

    p := Platform{ID: "wally", CommissionRate: 0.0299, TaxRate: 0.5, TaxApplicable: false, QuoteKey: "binanceWally"}
    snap := snapshot(map[string]float64{"binanceWally": 1.01})
    for _, amount := range []float64{1, 100, 12345.67} {
        r := Calculate(amount, p, snap, DefaultFees())
        require.Positive(t, r.PlatformCommission)
        require.Zero(t, r.Tax)
    }
}

func TestCalculate_ZeroPlatformRate(t *testing.T) {
    t.Parallel()

    e := newEngine(t)
    snap := snapshot(map[string]float64{rates.KeyOfficial: 36.5, rates.KeyPeer: 40, "binanceZinli": 0})

    r, err := e.Calculate(Input{Amount: 100, PlatformID: "zinli"}, snap)
    require.NoError(t, err)
    require.Zero(t, r.NetProceedsForeign)
    require.Zero(t, r.YieldRatio)
    require.Zero(t, r.YieldPercent)
}

func TestCalculate_MissingQuoteKeyActsAsZero(t *testing.T) {
    t.Parallel()

    e := newEngine(t)
    r, err := e.Calculate(Input{Amount: 100, PlatformID: "wally"}, snapshot(map[string]float64{rates.KeyPeer: 40}))
    require.NoError(t, err)
    require.Zero(t, r.PeerRate)
    require.Zero(t, r.NetProceedsForeign)
}

func TestCalculate_ZeroAmount(t *testing.T) {
    t.Parallel()

    e := newEngine(t)
    snap := snapshot(map[string]float64{rates.KeyOfficial: 36.5, rates.KeyPeer: 40, "binanceZinli": 1.02})
    for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1)} {
        r, err := e.Calculate(Input{Amount: amount, PlatformID: "zinli"}, snap)
        require.NoError(t, err)
        require.Zero(t, r.Amount)
        require.Zero(t, r.PlatformCommission)
        require.Zero(t, r.Tax)
        require.Zero(t, r.CardCommission)
        require.Zero(t, r.TotalCost)
        require.Zero(t, r.YieldRatio)
        require.Zero(t, r.ComparisonAmount)
    }
}

func TestCalculate_AllRatesZero_NoNaNOrInf(t *testing.T) {
    t.Parallel()

    e := newEngine(t)
    r, err := e.Calculate(Input{Amount: 100, PlatformID: "zinli"}, rates.Snapshot{})
    require.NoError(t, err)

    v := reflect.ValueOf(r)
    for i := 0; i < v.NumField(); i++ {
        f := v.Field(i)
        if f.Kind() != reflect.Float64 { continue }
        x := f.Float()
        require.Falsef(t, math.IsNaN(x) || math.IsInf(x, 0), "%s = %v", v.Type().Field(i).Name, x)
    }
    require.Zero(t, r.OfficialEquivalent)
    require.Zero(t, r.ComparisonNet)
}

func TestCalculate_ExtremeValuesStayFinite(t *testing.T) {
    t.Parallel()

    // Arrange: rates and amount far outside any real market
    p, err := newEngine(t).Platforms().Lookup("zinli")
    require.NoError(t, err)
    snap := snapshot(map[string]float64{rates.KeyOfficial: 1e300, rates.KeyPeer: 1e-300, "binanceZinli": 1e-300, rates.KeyAuxiliary: 1e300})

    // Act
    r := Calculate(1e300, p, snap, DefaultFees())

    // Assert
    v := reflect.ValueOf(r)
    for i := 0; i < v.NumField(); i++ {
        f := v.Field(i)
        if f.Kind() != reflect.Float64 { continue }
        x := f.Float()
        require.Falsef(t, math.IsNaN(x) || math.IsInf(x, 0), "%s = %v", v.Type().Field(i).Name, x)
    }
    require.True(t, r.HasAuxiliary)
}

func TestCalculate_Idempotent(t *testing.T) {
    t.Parallel()

    e := newEngine(t)
    snap := snapshot(map[string]float64{rates.KeyOfficial: 36.5123, rates.KeyPeer: 40.4567, "binanceZinli": 1.0321, rates.KeyAuxiliary: 39.87})
    in := Input{Amount: 137.42, PlatformID: "zinli"}

    a, err := e.Calculate(in, snap)
    require.NoError(t, err)
    b, err := e.Calculate(in, snap)
    require.NoError(t, err)
    require.Equal(t, a, b)

    va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
    for i := 0; i < va.NumField(); i++ {
        if va.Field(i).Kind() != reflect.Float64 { continue }
        require.Equal(t, math.Float64bits(va.Field(i).Float()), math.Float64bits(vb.Field(i).Float()))
    }
}

func TestCalculate_NetLocalUsesRoundedPeerRate(t *testing.T) {
    t.Parallel()

    p := Platform{ID: "wally", CommissionRate: 0.0299, QuoteKey: "binanceWally"}
    snap := snapshot(map[string]float64{rates.KeyPeer: 36.4567, "binanceWally": 1.01})

    r := Calculate(100, p, snap, DefaultFees())

    require.Equal(t, r.NetProceedsForeign*36.46-SpreadFee, r.NetProceedsLocal)
    require.NotEqual(t, r.NetProceedsForeign*36.4567-SpreadFee, r.NetProceedsLocal)
}

func TestCalculate_Auxiliary(t *testing.T) {
    t.Parallel()

    p := Platform{ID: "zinli", CommissionRate: 0.0375, TaxRate: 0.07, TaxApplicable: true, QuoteKey: "binanceZinli"}
    snap := snapshot(map[string]float64{rates.KeyOfficial: 36.5, rates.KeyAuxiliary: 40, rates.KeyPeer: 40, "binanceZinli": 40})

    r := Calculate(100, p, snap, DefaultFees())
    require.True(t, r.HasAuxiliary)
    require.InDelta(t, 4000, r.AuxiliaryCostLocal, 1e-9)
    require.InDelta(t, r.NetProceedsLocal/40, r.AuxiliaryEquivalent, 1e-9)
    require.InDelta(t, 100.05, r.AuxiliaryComparisonNet, 1e-9)
}

func TestEngine_UnknownPlatform(t *testing.T) {
    t.Parallel()

    e := newEngine(t)
    r, err := e.Calculate(Input{Amount: 100, PlatformID: "paypal"}, snapshot(map[string]float64{rates.KeyPeer: 40}))
    require.ErrorIs(t, err, ErrUnknownPlatform)
    require.Equal(t, Result{}, r)
}

func TestRound2(t *testing.T) {
    t.Parallel()

    cases := map[float64]float64{
        36.4567: 36.46,
        40:      40,
        1.005:   1.00, // exact binary value is just below 1.005
        0.125:   0.13,
        -2.675:  -2.67,
        0:       0,
    }
    for in, want := range cases {
        require.Equalf(t, want, Round2(in), "Round2(%v)", in)
    }
    require.Zero(t, Round2(math.NaN()))
}
