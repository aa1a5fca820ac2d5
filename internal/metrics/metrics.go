package metrics

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

// RateMetrics holds the collectors of the rate service. A nil *RateMetrics
// is valid and records nothing.
type RateMetrics struct {
    // Upstream fetches per source
    UpstreamFetchTotal    *prometheus.CounterVec
    UpstreamFetchDuration *prometheus.HistogramVec

    // Aggregations
    AggregationsTotal   *prometheus.CounterVec
    AggregationDuration prometheus.Histogram
    SnapshotRate        *prometheus.GaugeVec
    SnapshotTimestamp   prometheus.Gauge

    // Edge cache
    CacheLookupsTotal *prometheus.CounterVec
    CacheRefreshTotal *prometheus.CounterVec

    // Calculations
    CalculationsTotal *prometheus.CounterVec
}

// NewRateMetrics registers the collectors on reg.
func NewRateMetrics(reg prometheus.Registerer) *RateMetrics {
    f := promauto.With(reg)
    return &RateMetrics{
        UpstreamFetchTotal: f.NewCounterVec(
            prometheus.CounterOpts{
                Name: "ratecalc_upstream_fetch_total",
                Help: "Upstream quote fetches by source and outcome",
            },
            []string{"source", "outcome"},
        ),
        UpstreamFetchDuration: f.NewHistogramVec(
            prometheus.HistogramOpts{
                Name:    "ratecalc_upstream_fetch_duration_seconds",
                Help:    "Upstream quote fetch latency",
                Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms .. 6.4s
            },
            []string{"source"},
        ),
        AggregationsTotal: f.NewCounterVec(
            prometheus.CounterOpts{
                Name: "ratecalc_aggregations_total",
                Help: "Snapshot aggregations by outcome",
            },
            []string{"outcome"},
        ),
        AggregationDuration: f.NewHistogram(
            prometheus.HistogramOpts{
                Name:    "ratecalc_aggregation_duration_seconds",
                Help:    "Wall time of one fan-out/fan-in aggregation",
                Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
            },
        ),
        SnapshotRate: f.NewGaugeVec(
            prometheus.GaugeOpts{
                Name: "ratecalc_snapshot_rate",
                Help: "Rate fields of the latest successful snapshot",
            },
            []string{"key"},
        ),
        SnapshotTimestamp: f.NewGauge(
            prometheus.GaugeOpts{
                Name: "ratecalc_snapshot_fetched_at_seconds",
                Help: "Unix time of the latest successful snapshot",
            },
        ),
        CacheLookupsTotal: f.NewCounterVec(
            prometheus.CounterOpts{
                Name: "ratecalc_cache_lookups_total",
                Help: "Edge cache lookups by status (HIT, STALE, MISS)",
            },
            []string{"status"},
        ),
        CacheRefreshTotal: f.NewCounterVec(
            prometheus.CounterOpts{
                Name: "ratecalc_cache_refresh_total",
                Help: "Edge cache refreshes by mode (sync, background) and outcome",
            },
            []string{"mode", "outcome"},
        ),
        CalculationsTotal: f.NewCounterVec(
            prometheus.CounterOpts{
                Name: "ratecalc_calculations_total",
                Help: "Calculations by platform and outcome",
            },
            []string{"platform", "outcome"},
        ),
    }
}

func outcome(err error) string {
    if err != nil { return "error" }
    return "ok"
}

// RecordUpstream records one source fetch.
func (m *RateMetrics) RecordUpstream(source string, durationSeconds float64, err error) {
    if m == nil { return }
    m.UpstreamFetchTotal.WithLabelValues(source, outcome(err)).Inc()
    m.UpstreamFetchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordAggregation records one aggregation. fields is nil on failure.
func (m *RateMetrics) RecordAggregation(durationSeconds float64, fields map[string]float64, fetchedAtUnix float64, err error) {
    if m == nil { return }
    m.AggregationsTotal.WithLabelValues(outcome(err)).Inc()
    m.AggregationDuration.Observe(durationSeconds)
    if err != nil { return }
    for k, v := range fields {
        m.SnapshotRate.WithLabelValues(k).Set(v)
    }
    m.SnapshotTimestamp.Set(fetchedAtUnix)
}

func (m *RateMetrics) RecordCacheLookup(status string) {
    if m == nil { return }
    m.CacheLookupsTotal.WithLabelValues(status).Inc()
}

func (m *RateMetrics) RecordCacheRefresh(mode string, err error) {
    if m == nil { return }
    m.CacheRefreshTotal.WithLabelValues(mode, outcome(err)).Inc()
}

func (m *RateMetrics) RecordCalculation(platform string, err error) {
    if m == nil { return }
    m.CalculationsTotal.WithLabelValues(platform, outcome(err)).Inc()
}
