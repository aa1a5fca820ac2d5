package pricing

import (
    "math"
    "strconv"
    "strings"
)

// MaxAmount is the largest accepted amount. Larger inputs would overflow
// the local currency metrics.
const MaxAmount = 1e15

// NormalizeAmount coerces user input to a usable amount: anything that is
// not a finite number in [0, MaxAmount] becomes 0. The second return value is
// false when coercion happened to non-empty input, so callers can log it.
func NormalizeAmount(raw string) (float64, bool) {
    s := strings.TrimSpace(raw)
    if s == "" { return 0, true }
    v, err := strconv.ParseFloat(s, 64)
    if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > MaxAmount {
        return 0, false
    }
    if v == 0 { return 0, true } // drops -0
    return v, true
}
