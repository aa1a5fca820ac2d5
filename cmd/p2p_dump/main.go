package main

import (
    "bufio"
    "context"
    "errors"
    "flag"
    "net/http"
    "os"
    "time"

    json "github.com/goccy/go-json"
    "github.com/rs/zerolog/log"
    "golang.org/x/sync/errgroup"

    "ratecalc/internal/config"
    "ratecalc/internal/httpx"
    "ratecalc/internal/logging"
    "ratecalc/internal/provider"
    "ratecalc/internal/provider/binance"
    "ratecalc/internal/provider/binancep2p"
)

type poolDump struct {
    Key     string                `json:"key"`
    Request binance.SearchRequest `json:"request"`
    Adverts []binance.Advert      `json:"adverts"`
    Error   string                `json:"error,omitempty"`
}

type searcher interface {
    SearchAdverts(ctx context.Context, search binance.SearchRequest) ([]binance.Advert, error)
}

func main() {
    var (
        outPath     string
        cfgPath     string
        rows        int
        concurrency int
        timeoutSec  int
        maxRetries  int
    )
    flag.StringVar(&outPath, "out", "p2p_adverts.json", "output JSON file path")
    flag.StringVar(&cfgPath, "config", "", "path to config.json (optional)")
    flag.IntVar(&rows, "rows", 0, "adverts per pool (0 = from config)")
    flag.IntVar(&concurrency, "concurrency", 2, "number of parallel requests")
    flag.IntVar(&timeoutSec, "timeout", 20, "HTTP timeout seconds")
    flag.IntVar(&maxRetries, "retries", 3, "max retries on 429/5xx")
    flag.Parse()

    // Load config/env
    cfg, err := config.Load(cfgPath)
    if err != nil {
        logging.Setup("info", "console")
        log.Fatal().Err(err).Msg("config")
    }
    logging.Setup(cfg.Log.Level, "console")
    if rows > 0 { cfg.P2P.Rows = rows }

    hc := httpx.New(time.Duration(timeoutSec) * time.Second)
    client := binance.NewP2PClient(binance.WithBaseURL(cfg.P2P.Endpoint), binance.WithHTTPClient(hc))

    dumps := dumpPools(context.Background(), client, pools(cfg, client), concurrency, maxRetries, time.Duration(timeoutSec)*time.Second)

    outFile, err := os.Create(outPath)
    if err != nil { log.Fatal().Err(err).Msg("create out") }
    defer outFile.Close()
    bw := bufio.NewWriterSize(outFile, 1<<16)
    enc := json.NewEncoder(bw)
    enc.SetIndent("", "  ")
    if err := enc.Encode(dumps); err != nil { log.Fatal().Err(err).Msg("encode") }
    if err := bw.Flush(); err != nil { log.Fatal().Err(err).Msg("flush") }
    log.Info().Str("out", outPath).Int("pools", len(dumps)).Msg("done")
}

func pools(cfg config.Config, client searcher) []*binancep2p.Adapter {
    out := make([]*binancep2p.Adapter, 0, len(cfg.P2P.Pools))
    for _, p := range cfg.P2P.Pools {
        out = append(out, binancep2p.New(binancep2p.Config{
            Key:           p.Key,
            Fiat:          p.Fiat,
            PayTypes:      p.PayTypes,
            Asset:         cfg.P2P.Asset,
            TradeType:     cfg.P2P.TradeType,
            Rows:          cfg.P2P.Rows,
            PublisherType: cfg.P2P.PublisherType,
            Classifies:    cfg.P2P.Classifies,
        }, client))
    }
    return out
}

// dumpPools fetches the raw book of every pool. A failing pool is recorded
// in its entry and does not stop the others.
func dumpPools(ctx context.Context, client searcher, ps []*binancep2p.Adapter, concurrency, maxRetries int, timeout time.Duration) []poolDump {
    out := make([]poolDump, len(ps))
    var g errgroup.Group
    if concurrency > 0 { g.SetLimit(concurrency) }
    for i, p := range ps {
        g.Go(func() error {
            req := p.Request()
            out[i] = poolDump{Key: p.Key(), Request: req}
            adverts, err := searchWithRetry(ctx, client, req, maxRetries, timeout)
            if err != nil {
                log.Warn().Str("pool", p.Key()).Err(err).Msg("search failed")
                out[i].Error = err.Error()
                return nil
            }
            out[i].Adverts = adverts
            log.Info().Str("pool", p.Key()).Int("adverts", len(adverts)).Msg("pool dumped")
            return nil
        })
    }
    _ = g.Wait()
    return out
}

func searchWithRetry(ctx context.Context, client searcher, req binance.SearchRequest, maxRetries int, timeout time.Duration) ([]binance.Advert, error) {
    attempt := 0
    for {
        reqCtx, cancel := context.WithTimeout(ctx, timeout)
        adverts, err := client.SearchAdverts(reqCtx, req)
        cancel()
        if err == nil { return adverts, nil }

        // 429/5xx -> retry with backoff
        var fe *provider.FetchError
        if errors.As(err, &fe) && (fe.StatusCode == http.StatusTooManyRequests || fe.StatusCode >= 500) && attempt < maxRetries {
            back := time.Duration(250*(1<<attempt)) * time.Millisecond
            select {
            case <-ctx.Done():
                return nil, ctx.Err()
            case <-time.After(back):
            }
            attempt++
            continue
        }
        return nil, err
    }
}
