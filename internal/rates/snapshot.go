// Package rates holds the immutable rate snapshot produced by one aggregation
// cycle and shared by the HTTP boundary and the pricing engine.
package rates

import (
    "errors"
    "fmt"
    "math"
    "sort"
    "time"

    json "github.com/goccy/go-json"
)

// Well-known snapshot fields. Platform quote keys are configured and live
// alongside these in the same flat namespace.
const (
    KeyOfficial  = "bcv"
    KeyAuxiliary = "euro"
    KeyPeer      = "binanceVes"
    KeyFetchedAt = "fetchedAt"
)

var ErrNegativeRate = errors.New("rate must be a finite non-negative number")

// Snapshot is a point-in-time set of rates. The zero value is an empty
// snapshot where every rate reads as 0 (unknown).
type Snapshot struct {
    fields    map[string]float64
    fetchedAt time.Time
}

// New builds a snapshot from a copy of fields. A field that is not present
// reads as 0; negative or non-finite values are rejected.
func New(fields map[string]float64, fetchedAt time.Time) (Snapshot, error) {
    cp := make(map[string]float64, len(fields))
    for k, v := range fields {
        if k == "" || k == KeyFetchedAt {
            return Snapshot{}, fmt.Errorf("snapshot: invalid field name %q", k)
        }
        if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
            return Snapshot{}, fmt.Errorf("snapshot: field %s=%v: %w", k, v, ErrNegativeRate)
        }
        cp[k] = v
    }
    return Snapshot{fields: cp, fetchedAt: fetchedAt.UTC()}, nil
}

// MustNew is New for literals in tests and defaults.
func MustNew(fields map[string]float64, fetchedAt time.Time) Snapshot {
    s, err := New(fields, fetchedAt)
    if err != nil { panic(err) }
    return s
}

func (s Snapshot) Official() float64 { return s.fields[KeyOfficial] }
func (s Snapshot) Peer() float64     { return s.fields[KeyPeer] }

// Auxiliary reports the secondary official rate and whether it was configured.
func (s Snapshot) Auxiliary() (float64, bool) {
    v, ok := s.fields[KeyAuxiliary]
    return v, ok
}

// Rate returns the value stored under key. Missing keys read as 0, false.
func (s Snapshot) Rate(key string) (float64, bool) {
    v, ok := s.fields[key]
    return v, ok
}

// Has reports whether key is part of the snapshot.
func (s Snapshot) Has(key string) bool {
    _, ok := s.fields[key]
    return ok
}

// Keys returns the field names in sorted order.
func (s Snapshot) Keys() []string {
    out := make([]string, 0, len(s.fields))
    for k := range s.fields { out = append(out, k) }
    sort.Strings(out)
    return out
}

// Fields returns a copy of the rate fields.
func (s Snapshot) Fields() map[string]float64 {
    cp := make(map[string]float64, len(s.fields))
    for k, v := range s.fields { cp[k] = v }
    return cp
}

// FetchedAt is advisory: a cached snapshot may be older than its consumer thinks.
func (s Snapshot) FetchedAt() time.Time { return s.fetchedAt }

func (s Snapshot) IsZero() bool { return len(s.fields) == 0 && s.fetchedAt.IsZero() }

// MarshalJSON writes the flat wire shape, e.g.
// {"bcv":36.5,"binanceVes":40,"binanceZinli":1.02,"fetchedAt":"2025-..."}.
// The official and peer rates are always present.
func (s Snapshot) MarshalJSON() ([]byte, error) {
    out := make(map[string]any, len(s.fields)+3)
    out[KeyOfficial] = 0.0
    out[KeyPeer] = 0.0
    for k, v := range s.fields { out[k] = v }
    if !s.fetchedAt.IsZero() {
        out[KeyFetchedAt] = s.fetchedAt.Format(time.RFC3339Nano)
    }
    return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
    var raw map[string]json.RawMessage
    if err := json.Unmarshal(b, &raw); err != nil { return fmt.Errorf("snapshot: %w", err) }

    var fetchedAt time.Time
    fields := make(map[string]float64, len(raw))
    for k, v := range raw {
        if k == KeyFetchedAt {
            var ts string
            if err := json.Unmarshal(v, &ts); err != nil { return fmt.Errorf("snapshot: %s: %w", k, err) }
            t, err := time.Parse(time.RFC3339Nano, ts)
            if err != nil { return fmt.Errorf("snapshot: %s: %w", k, err) }
            fetchedAt = t
            continue
        }
        var f *float64
        if err := json.Unmarshal(v, &f); err != nil { return fmt.Errorf("snapshot: %s: %w", k, err) }
        if f == nil { continue }
        fields[k] = *f
    }
    snap, err := New(fields, fetchedAt)
    if err != nil { return err }
    *s = snap
    return nil
}
