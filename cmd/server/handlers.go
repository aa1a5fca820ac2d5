package main

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"
    "time"

    json "github.com/goccy/go-json"
    "github.com/rs/zerolog"

    "ratecalc/internal/cache"
    "ratecalc/internal/metrics"
    "ratecalc/internal/pricing"
    "ratecalc/internal/rates"
)

type snapshotSource interface {
    Get(ctx context.Context) (rates.Snapshot, cache.Status, error)
}

type handler struct {
    snapshots snapshotSource
    engine    *pricing.Engine
    metrics   *metrics.RateMetrics
    maxAge    time.Duration
    swr       time.Duration
}

func (h *handler) routes() http.Handler {
    mux := http.NewServeMux()
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte(`{"status":"ok"}`))
    })
    mux.HandleFunc("/api/rates", h.handleRates)
    mux.HandleFunc("/api/calculate", h.handleCalculate)
    mux.HandleFunc("/api/platforms", h.handlePlatforms)
    return mux
}

type errorResponse struct {
    Error string `json:"error"`
}

type calculateResponse struct {
    Platform pricing.Platform `json:"platform"`
    Amount   float64          `json:"amount"`
    Warning  string           `json:"warning,omitempty"`
    Rates    rates.Snapshot   `json:"rates"`
    Result   pricing.Result   `json:"result"`
}

type calculateBody struct {
    Amount   json.RawMessage `json:"amount"`
    Platform string          `json:"platform"`
    Rates    *rates.Snapshot `json:"rates"`
}

type platformsResponse struct {
    Platforms []pricing.Platform `json:"platforms"`
    Fees      pricing.Fees       `json:"fees"`
}

const amountWarning = "amount is not a non-negative number; using 0"

func (h *handler) handleRates(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet && r.Method != http.MethodHead {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    snap, status, err := h.snapshots.Get(r.Context())
    w.Header().Set("X-Cache", string(status))
    if err != nil {
        zerolog.Ctx(r.Context()).Error().Err(err).Msg("rates unavailable")
        w.Header().Set("Cache-Control", "no-store")
        writeError(w, http.StatusBadGateway, "failed to fetch rates")
        return
    }
    w.Header().Set("Cache-Control", fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d", int(h.maxAge.Seconds()), int(h.swr.Seconds())))
    writeJSON(w, http.StatusOK, snap)
}

func (h *handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
    var (
        rawAmount  string
        platformID string
        supplied   *rates.Snapshot
    )
    switch r.Method {
    case http.MethodGet:
        q := r.URL.Query()
        rawAmount, platformID = q.Get("amount"), q.Get("platform")
    case http.MethodPost:
        raw, err := io.ReadAll(r.Body)
        if err != nil {
            var tooLarge *http.MaxBytesError
            if errors.As(err, &tooLarge) {
                writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
                return
            }
            writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
            return
        }
        var b calculateBody
        dec := json.NewDecoder(bytes.NewReader(raw))
        dec.DisallowUnknownFields()
        if err := dec.Decode(&b); err != nil {
            writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
            return
        }
        rawAmount, platformID, supplied = amountString(b.Amount), b.Platform, b.Rates
    default:
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }

    platformID = strings.TrimSpace(platformID)
    p, err := h.engine.Platforms().Lookup(platformID)
    if err != nil {
        h.metrics.RecordCalculation("unknown", err)
        writeError(w, http.StatusBadRequest, err.Error())
        return
    }

    amount, clean := pricing.NormalizeAmount(rawAmount)
    resp := calculateResponse{Platform: p, Amount: amount}
    if !clean {
        resp.Warning = amountWarning
        zerolog.Ctx(r.Context()).Debug().Str("amount", rawAmount).Msg("amount normalized to 0")
    }

    if supplied != nil {
        resp.Rates = *supplied
    } else {
        snap, status, err := h.snapshots.Get(r.Context())
        w.Header().Set("X-Cache", string(status))
        if err != nil {
            h.metrics.RecordCalculation(p.ID, err)
            zerolog.Ctx(r.Context()).Error().Err(err).Msg("rates unavailable")
            writeError(w, http.StatusBadGateway, "failed to fetch rates")
            return
        }
        resp.Rates = snap
    }

    res, err := h.engine.Calculate(pricing.Input{Amount: amount, PlatformID: p.ID}, resp.Rates)
    h.metrics.RecordCalculation(p.ID, err)
    if err != nil {
        writeError(w, http.StatusBadRequest, err.Error())
        return
    }
    resp.Result = res
    writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handlePlatforms(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeError(w, http.StatusMethodNotAllowed, "method not allowed")
        return
    }
    writeJSON(w, http.StatusOK, platformsResponse{Platforms: h.engine.Platforms().Platforms(), Fees: h.engine.Fees()})
}

// amountString accepts the amount as a JSON number or string.
func amountString(raw json.RawMessage) string {
    s := strings.TrimSpace(string(raw))
    if s == "" || s == "null" { return "" }
    if strings.HasPrefix(s, `"`) {
        if u, err := strconv.Unquote(s); err == nil { return u }
        return "invalid"
    }
    return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    b, err := json.Marshal(v)
    if err != nil {
        writeError(w, http.StatusInternalServerError, "encoding response")
        return
    }
    w.WriteHeader(status)
    _, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
    b, _ := json.Marshal(errorResponse{Error: msg})
    w.WriteHeader(status)
    _, _ = w.Write(b)
}
