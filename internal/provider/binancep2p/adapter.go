package binancep2p

import (
    "context"
    "fmt"
    "time"

    "github.com/shopspring/decimal"

    "ratecalc/internal/provider"
    "ratecalc/internal/provider/binance"
)

// Searcher is the part of the Binance client the adapter needs.
type Searcher interface {
    SearchAdverts(ctx context.Context, search binance.SearchRequest) ([]binance.Advert, error)
}

// Config describes one liquidity pool: a fiat currency plus an optional
// payment-method filter.
type Config struct {
    Name          string   // display name, default: binance:<key>
    Key           string   // snapshot field, e.g. binanceZinli
    Fiat          string   // e.g. VES, USD
    PayTypes      []string // e.g. ["Zinli"]; empty means any method
    Asset         string   // default: USDT
    TradeType     string   // default: BUY
    Rows          int      // default: 5
    PublisherType string   // default: merchant
    Classifies    []string // default: mass, profession, user
}

type Adapter struct {
    cfg    Config
    client Searcher
}

func New(cfg Config, client Searcher) *Adapter {
    if cfg.Name == "" { cfg.Name = "binance:" + cfg.Key }
    if cfg.Asset == "" { cfg.Asset = "USDT" }
    if cfg.TradeType == "" { cfg.TradeType = "BUY" }
    if cfg.Rows <= 0 { cfg.Rows = 5 }
    if cfg.PublisherType == "" { cfg.PublisherType = "merchant" }
    if len(cfg.Classifies) == 0 { cfg.Classifies = []string{"mass", "profession", "user"} }
    return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Key() string { return a.cfg.Key }

// Request is the order-book query sent for this pool.
func (a *Adapter) Request() binance.SearchRequest {
    return binance.SearchRequest{
        Fiat:          a.cfg.Fiat,
        Page:          1,
        Rows:          a.cfg.Rows,
        TradeType:     a.cfg.TradeType,
        Asset:         a.cfg.Asset,
        Countries:     []string{},
        PublisherType: a.cfg.PublisherType,
        PayTypes:      append([]string{}, a.cfg.PayTypes...),
        Classifies:    append([]string{}, a.cfg.Classifies...),
    }
}

// Fetch returns the price of the top-ranked advert. Upstream already sorts
// the book best-first for the requested side, so no re-sorting happens
// here. An empty book is a valid answer and yields Rate 0.
func (a *Adapter) Fetch(ctx context.Context) (provider.Quote, error) {
    adverts, err := a.client.SearchAdverts(ctx, a.Request())
    if err != nil {
        return provider.Quote{}, provider.Fail(a.cfg.Name, err)
    }

    q := provider.Quote{Key: a.cfg.Key, Source: a.cfg.Name, ReceivedAt: time.Now().UTC()}
    if len(adverts) == 0 {
        return q, nil
    }

    price, err := decimal.NewFromString(adverts[0].Adv.Price)
    if err != nil {
        return provider.Quote{}, provider.Fail(a.cfg.Name, fmt.Errorf("%w: price %q: %v", provider.ErrMalformedPayload, adverts[0].Adv.Price, err))
    }
    if price.IsNegative() {
        return provider.Quote{}, provider.Fail(a.cfg.Name, fmt.Errorf("%w: negative price %s", provider.ErrMalformedPayload, price))
    }
    q.Rate = price.InexactFloat64()
    return q, nil
}
