package pricing

import (
    "errors"
    "fmt"
    "sort"

    "github.com/go-playground/validator/v10"
)

// ErrUnknownPlatform is returned for a platform id that is not registered.
var ErrUnknownPlatform = errors.New("unknown platform")

// Platform is the fee schedule of one payment platform and the snapshot
// field holding the rate of its peer-to-peer liquidity pool.
type Platform struct {
    ID             string  `json:"id" validate:"required"`
    Label          string  `json:"label"`
    CommissionRate float64 `json:"commission_rate" validate:"gte=0,lte=1"`
    TaxRate        float64 `json:"tax_rate" validate:"gte=0,lte=1"`
    TaxApplicable  bool    `json:"tax_applicable"`
    QuoteKey       string  `json:"quote_key" validate:"required"`
}

// DefaultPlatforms is the built-in platform table.
func DefaultPlatforms() []Platform {
    return []Platform{
        {ID: "wally", Label: "WallyTech", CommissionRate: 0.0299, TaxRate: 0.07, TaxApplicable: false, QuoteKey: "binanceWally"},
        {ID: "zinli", Label: "Zinli", CommissionRate: 0.0375, TaxRate: 0.07, TaxApplicable: true, QuoteKey: "binanceZinli"},
    }
}

// Registry is a read-only lookup table of platforms keyed by id.
type Registry struct {
    byID map[string]Platform
    ids  []string
}

var validate = validator.New()

func NewRegistry(platforms []Platform) (*Registry, error) {
    r := &Registry{byID: make(map[string]Platform, len(platforms))}
    for _, p := range platforms {
        if err := validate.Struct(p); err != nil {
            return nil, fmt.Errorf("platform %q: %w", p.ID, err)
        }
        if _, dup := r.byID[p.ID]; dup {
            return nil, fmt.Errorf("platform %q: duplicate id", p.ID)
        }
        r.byID[p.ID] = p
        r.ids = append(r.ids, p.ID)
    }
    sort.Strings(r.ids)
    return r, nil
}

// Lookup returns the platform registered under id.
func (r *Registry) Lookup(id string) (Platform, error) {
    p, ok := r.byID[id]
    if !ok { return Platform{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, id) }
    return p, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string { return append([]string(nil), r.ids...) }

// Platforms returns every platform ordered by id.
func (r *Registry) Platforms() []Platform {
    out := make([]Platform, 0, len(r.ids))
    for _, id := range r.ids { out = append(out, r.byID[id]) }
    return out
}

// CheckQuoteKeys verifies every platform's quote key is one of keys.
func (r *Registry) CheckQuoteKeys(keys []string) error {
    known := make(map[string]struct{}, len(keys))
    for _, k := range keys { known[k] = struct{}{} }
    for _, id := range r.ids {
        p := r.byID[id]
        if _, ok := known[p.QuoteKey]; !ok {
            return fmt.Errorf("platform %q: quote key %q is not a configured rate source", p.ID, p.QuoteKey)
        }
    }
    return nil
}
