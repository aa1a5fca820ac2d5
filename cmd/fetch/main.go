package main

import (
    "context"
    "flag"
    "fmt"
    "io"
    "os"
    "strings"
    "time"

    json "github.com/goccy/go-json"
    "github.com/rs/zerolog/log"
    "github.com/shopspring/decimal"

    "ratecalc/internal/app"
    "ratecalc/internal/config"
    "ratecalc/internal/logging"
    "ratecalc/internal/pricing"
    "ratecalc/internal/rates"
)

type output struct {
    Rates  rates.Snapshot  `json:"rates"`
    Result *pricing.Result `json:"result,omitempty"`
}

func main() {
    var (
        configPath string
        amountRaw  string
        platformID string
        format     string
        timeout    int
        auxiliary  bool
    )
    flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
    flag.StringVar(&amountRaw, "amount", "", "amount to calculate for (requires -platform)")
    flag.StringVar(&platformID, "platform", "", "platform id, e.g. zinli")
    flag.StringVar(&format, "format", "json", "output format: json or text")
    flag.IntVar(&timeout, "timeout", 0, "aggregate timeout seconds (0 = from config)")
    flag.BoolVar(&auxiliary, "euro", false, "also fetch the auxiliary (euro) official rate")
    flag.Parse()

    // Load config (optional) and merge with flags
    cfg, err := config.Load(configPath)
    if err != nil {
        logging.Setup("info", "console")
        log.Fatal().Err(err).Msg("config")
    }
    logging.Setup(cfg.Log.Level, "console")
    if timeout > 0 { cfg.Server.AggregateTimeoutSec = timeout }
    if auxiliary { cfg.Auxiliary.Enabled = true }

    a, err := app.New(cfg, nil)
    if err != nil { log.Fatal().Err(err).Msg("wiring") }

    // Reject unknown platforms before any upstream call.
    if platformID != "" {
        if _, err := a.Engine.Platforms().Lookup(platformID); err != nil {
            log.Fatal().Err(err).Strs("known", a.Engine.Platforms().IDs()).Msg("platform")
        }
    }

    ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.AggregateTimeout())
    defer cancel()
    snap, err := a.Aggregator.Aggregate(ctx)
    if err != nil { log.Fatal().Err(err).Msg("aggregate") }

    out := output{Rates: snap}
    if platformID != "" {
        amount, clean := pricing.NormalizeAmount(amountRaw)
        if !clean { log.Warn().Str("amount", amountRaw).Msg("amount is not a non-negative number; using 0") }
        res, err := a.Engine.Calculate(pricing.Input{Amount: amount, PlatformID: platformID}, snap)
        if err != nil { log.Fatal().Err(err).Msg("calculate") }
        out.Result = &res
    }

    switch strings.ToLower(format) {
    case "text":
        writeText(os.Stdout, out)
    default:
        enc := json.NewEncoder(os.Stdout)
        enc.SetIndent("", "  ")
        if err := enc.Encode(out); err != nil { log.Fatal().Err(err).Msg("encode") }
    }
}

type row struct {
    name string
    v    float64
}

func writeText(w io.Writer, out output) {
    fmt.Fprintf(w, "fetched at %s\n", out.Rates.FetchedAt().Format(time.RFC3339))
    for _, k := range out.Rates.Keys() {
        v, _ := out.Rates.Rate(k)
        fmt.Fprintf(w, "  %-16s %s\n", k, fixed(v))
    }
    if out.Result == nil { return }
    r := out.Result
    rows := []row{
        {"amount", r.Amount},
        {"platformCommission", r.PlatformCommission},
        {"tax", r.Tax},
        {"cardCommission", r.CardCommission},
        {"totalCost", r.TotalCost},
        {"netProceedsForeign", r.NetProceedsForeign},
        {"yieldPercent", r.YieldPercent},
        {"spreadVsOfficial", r.SpreadVsOfficial},
        {"netProceedsLocal", r.NetProceedsLocal},
        {"officialEquivalent", r.OfficialEquivalent},
        {"officialCostLocal", r.OfficialCostLocal},
        {"comparisonAmount", r.ComparisonAmount},
        {"comparisonNet", r.ComparisonNet},
    }
    if r.HasAuxiliary {
        rows = append(rows,
            row{"auxiliaryCostLocal", r.AuxiliaryCostLocal},
            row{"auxiliaryEquivalent", r.AuxiliaryEquivalent},
            row{"auxiliaryComparisonNet", r.AuxiliaryComparisonNet},
        )
    }
    fmt.Fprintf(w, "%s (peer rate %s)\n", r.PlatformID, fixed(r.PeerRate))
    for _, rw := range rows {
        fmt.Fprintf(w, "  %-22s %s\n", rw.name, fixed(rw.v))
    }
}

// fixed renders v with two decimals, rounding the same way the engine does.
func fixed(v float64) string { return decimal.NewFromFloat(pricing.Round2(v)).StringFixed(2) }

func getenv(key, def string) string { if v := os.Getenv(key); v != "" { return v }; return def }
