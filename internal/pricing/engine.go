// Package pricing turns an amount, a platform fee schedule and a rate
// snapshot into the derived metrics shown by the calculator.
//
// Every function here is pure: no I/O, no shared state. Divisions by a zero
// or missing rate resolve to 0 for the affected metric and never produce
// NaN or Inf.
package pricing

import (
    "math"
    "math/big"

    "github.com/shopspring/decimal"

    "ratecalc/internal/rates"
)

const (
    // CardCommissionRate applies to everything charged to the card.
    CardCommissionRate = 0.028
    // SpreadFee is the venue execution fee, in the foreign settlement currency.
    SpreadFee = 0.05
)

// Fees are the global, platform-independent charges.
type Fees struct {
    CardCommissionRate float64 `json:"card_commission_rate"`
    SpreadFee          float64 `json:"spread_fee"`
}

func DefaultFees() Fees { return Fees{CardCommissionRate: CardCommissionRate, SpreadFee: SpreadFee} }

// Input is what the caller supplies for one calculation.
type Input struct {
    Amount     float64
    PlatformID string
}

// Result lists every derived metric, in pipeline order. Auxiliary fields are
// zero unless the snapshot carries an auxiliary rate.
type Result struct {
    PlatformID string  `json:"platform"`
    Amount     float64 `json:"amount"`
    PeerRate   float64 `json:"peerRate"`

    PlatformCommission float64 `json:"platformCommission"`
    Tax                float64 `json:"tax"`
    CardCommission     float64 `json:"cardCommission"`
    TotalCost          float64 `json:"totalCost"`
    NetProceedsForeign float64 `json:"netProceedsForeign"`
    YieldRatio         float64 `json:"yieldRatio"`
    YieldPercent       float64 `json:"yieldPercent"`
    SpreadVsOfficial   float64 `json:"spreadVsOfficial"`
    NetProceedsLocal   float64 `json:"netProceedsLocal"`
    OfficialEquivalent float64 `json:"officialEquivalent"`
    OfficialCostLocal  float64 `json:"officialCostLocal"`
    ComparisonAmount   float64 `json:"comparisonAmount"`
    ComparisonNet      float64 `json:"comparisonNet"`

    HasAuxiliary           bool    `json:"hasAuxiliary"`
    AuxiliaryCostLocal     float64 `json:"auxiliaryCostLocal"`
    AuxiliaryEquivalent    float64 `json:"auxiliaryEquivalent"`
    AuxiliaryComparisonNet float64 `json:"auxiliaryComparisonNet"`
}

// Engine resolves platform ids and runs Calculate.
type Engine struct {
    platforms *Registry
    fees      Fees
}

func NewEngine(platforms *Registry, fees Fees) *Engine {
    return &Engine{platforms: platforms, fees: fees}
}

func (e *Engine) Platforms() *Registry { return e.platforms }
func (e *Engine) Fees() Fees           { return e.fees }

// Calculate rejects unknown platforms before touching any number.
func (e *Engine) Calculate(in Input, snap rates.Snapshot) (Result, error) {
    p, err := e.platforms.Lookup(in.PlatformID)
    if err != nil { return Result{}, err }
    return Calculate(in.Amount, p, snap, e.fees), nil
}

// Calculate runs the pricing pipeline for a known platform.
func Calculate(amount float64, p Platform, snap rates.Snapshot, fees Fees) Result {
    amount = sanitize(amount)
    peerRate, _ := snap.Rate(p.QuoteKey)
    official := snap.Official()
    peer := snap.Peer()

    r := Result{PlatformID: p.ID, Amount: amount, PeerRate: peerRate}

    r.PlatformCommission = amount * p.CommissionRate
    if p.TaxApplicable {
        r.Tax = r.PlatformCommission * p.TaxRate
    }
    r.CardCommission = (amount + r.PlatformCommission + r.Tax) * fees.CardCommissionRate
    r.TotalCost = amount + r.PlatformCommission + r.Tax + r.CardCommission

    if peerRate > 0 {
        r.NetProceedsForeign = (amount / peerRate) - fees.SpreadFee
    }
    if r.TotalCost > 0 {
        r.YieldRatio = r.NetProceedsForeign / r.TotalCost
    }
    r.YieldPercent = r.YieldRatio * 100
    r.SpreadVsOfficial = (peer * r.YieldRatio) - official

    r.NetProceedsLocal = (r.NetProceedsForeign * Round2(peer)) - fees.SpreadFee
    if official > 0 {
        r.OfficialEquivalent = r.NetProceedsLocal / official
    }

    r.OfficialCostLocal = amount * official
    r.ComparisonAmount = comparisonAmount(r.OfficialCostLocal, r.NetProceedsLocal, amount)
    if peer > 0 {
        r.ComparisonNet = (r.OfficialCostLocal / peer) + fees.SpreadFee
    }

    if aux, ok := snap.Auxiliary(); ok {
        r.HasAuxiliary = true
        r.AuxiliaryCostLocal = amount * aux
        if aux > 0 {
            r.AuxiliaryEquivalent = r.NetProceedsLocal / aux
        }
        if peer > 0 {
            r.AuxiliaryComparisonNet = (r.AuxiliaryCostLocal / peer) + fees.SpreadFee
        }
    }
    r.zeroNonFinite()
    return r
}

// zeroNonFinite resets metrics that overflowed (extreme rates or amounts).
func (r *Result) zeroNonFinite() {
    for _, f := range []*float64{
        &r.PlatformCommission, &r.Tax, &r.CardCommission, &r.TotalCost,
        &r.NetProceedsForeign, &r.YieldRatio, &r.YieldPercent, &r.SpreadVsOfficial,
        &r.NetProceedsLocal, &r.OfficialEquivalent, &r.OfficialCostLocal,
        &r.ComparisonAmount, &r.ComparisonNet,
        &r.AuxiliaryCostLocal, &r.AuxiliaryEquivalent, &r.AuxiliaryComparisonNet,
    } {
        if math.IsNaN(*f) || math.IsInf(*f, 0) { *f = 0 }
    }
}

// comparisonAmount is the principal needed to reach the same local result
// paying at the official rate.
func comparisonAmount(officialCost, netLocal, amount float64) float64 {
    if netLocal <= 0 || amount <= 0 { return 0 }
    perUnit := netLocal / amount
    return officialCost / perUnit
}

// Round2 rounds the exact binary value of v to 2 decimals, half away from
// zero, matching how the rate is displayed to users (36.4567 -> 36.46,
// 1.005 -> 1.00).
func Round2(v float64) float64 {
    if math.IsNaN(v) || math.IsInf(v, 0) { return 0 }
    exact := new(big.Float).SetFloat64(v).Text('f', 1074)
    return decimal.RequireFromString(exact).Round(2).InexactFloat64()
}

func sanitize(v float64) float64 {
    if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 { return 0 }
    return v
}
