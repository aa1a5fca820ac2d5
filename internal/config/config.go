package config

import (
    "errors"
    "fmt"
    "os"
    "time"

    "github.com/go-playground/validator/v10"
    "github.com/ilyakaznacheev/cleanenv"
    "github.com/joho/godotenv"

    "ratecalc/internal/pricing"
    "ratecalc/internal/provider/dolarapi"
    "ratecalc/internal/rates"
)

type Server struct {
    Port                string `json:"port" env:"PORT" validate:"required,numeric"`
    RequestTimeoutSec   int    `json:"request_timeout_sec" env:"REQUEST_TIMEOUT_SEC" validate:"gt=0"`
    AggregateTimeoutSec int    `json:"aggregate_timeout_sec" env:"AGGREGATE_TIMEOUT_SEC" validate:"gt=0"`
    ShutdownTimeoutSec  int    `json:"shutdown_timeout_sec" env:"SHUTDOWN_TIMEOUT_SEC" validate:"gt=0"`
}

type Log struct {
    Level  string `json:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
    Format string `json:"format" env:"LOG_FORMAT" validate:"oneof=console json"`
}

// Source is one dolarapi endpoint.
type Source struct {
    Enabled bool   `json:"enabled" env:"ENABLED"`
    URL     string `json:"url" env:"URL" validate:"required_if=Enabled true,omitempty,url"`
    Key     string `json:"key" validate:"required_if=Enabled true"`
}

// Pool is one P2P liquidity pool: fiat plus optional payment methods.
type Pool struct {
    Key      string   `json:"key" validate:"required"`
    Fiat     string   `json:"fiat" validate:"required,uppercase"`
    PayTypes []string `json:"pay_types"`
}

type P2P struct {
    Endpoint             string   `json:"endpoint" env:"P2P_ENDPOINT" validate:"required,url"`
    Asset                string   `json:"asset" env:"P2P_ASSET" validate:"required"`
    TradeType            string   `json:"trade_type" env:"P2P_TRADE_TYPE" validate:"oneof=BUY SELL"`
    Rows                 int      `json:"rows" env:"P2P_ROWS" validate:"min=1,max=20"`
    PublisherType        string   `json:"publisher_type" env:"P2P_PUBLISHER_TYPE"`
    Classifies           []string `json:"classifies" env:"P2P_CLASSIFIES"`
    MaxRequestsPerMinute int      `json:"max_requests_per_minute" env:"P2P_MAX_RPM" validate:"gte=0"`
    Burst                int      `json:"burst" env:"P2P_BURST" validate:"gte=0"`
    Pools                []Pool   `json:"pools" validate:"required,min=1,dive"`
}

type Pricing struct {
    CardCommissionRate float64            `json:"card_commission_rate" env:"CARD_COMMISSION_RATE" validate:"gte=0,lte=1"`
    SpreadFee          float64            `json:"spread_fee" env:"SPREAD_FEE" validate:"gte=0"`
    Platforms          []pricing.Platform `json:"platforms" validate:"required,min=1,dive"`
}

type Redis struct {
    Addr     string `json:"addr" env:"REDIS_ADDR"`
    Password string `json:"password" env:"REDIS_PASSWORD"`
    DB       int    `json:"db" env:"REDIS_DB" validate:"gte=0"`
    Key      string `json:"key" env:"REDIS_KEY"`
}

type Cache struct {
    MaxAgeSec               int    `json:"max_age_sec" env:"CACHE_MAX_AGE_SEC" validate:"gt=0"`
    StaleWhileRevalidateSec int    `json:"stale_while_revalidate_sec" env:"CACHE_SWR_SEC" validate:"gte=0"`
    Backend                 string `json:"backend" env:"CACHE_BACKEND" validate:"oneof=memory redis"`
    Redis                   Redis  `json:"redis"`
}

type Config struct {
    Server    Server  `json:"server"`
    Log       Log     `json:"log"`
    Official  Source  `json:"official" env-prefix:"OFFICIAL_"`
    Auxiliary Source  `json:"auxiliary" env-prefix:"AUXILIARY_"`
    P2P       P2P     `json:"p2p"`
    Pricing   Pricing `json:"pricing"`
    Cache     Cache   `json:"cache"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 10, AggregateTimeoutSec: 15, ShutdownTimeoutSec: 5},
        Log:    Log{Level: "info", Format: "console"},
        Official: Source{
            Enabled: true,
            URL:     dolarapi.OfficialURL,
            Key:     rates.KeyOfficial,
        },
        Auxiliary: Source{
            Enabled: false,
            URL:     dolarapi.EuroURL,
            Key:     rates.KeyAuxiliary,
        },
        P2P: P2P{
            Endpoint:             "https://p2p.binance.com",
            Asset:                "USDT",
            TradeType:            "BUY",
            Rows:                 5,
            PublisherType:        "merchant",
            Classifies:           []string{"mass", "profession", "user"},
            MaxRequestsPerMinute: 60,
            Burst:                3,
            Pools: []Pool{
                {Key: rates.KeyPeer, Fiat: "VES"},
                {Key: "binanceWally", Fiat: "USD", PayTypes: []string{"WallyTech"}},
                {Key: "binanceZinli", Fiat: "USD", PayTypes: []string{"Zinli"}},
            },
        },
        Pricing: Pricing{
            CardCommissionRate: pricing.CardCommissionRate,
            SpreadFee:          pricing.SpreadFee,
            Platforms:          pricing.DefaultPlatforms(),
        },
        Cache: Cache{MaxAgeSec: 1200, StaleWhileRevalidateSec: 600, Backend: "memory"},
    }
}

// Load starts from Default, loads .env when present, then the JSON file at
// path (or ./config.json) and finally environment overrides.
func Load(path string) (Config, error) {
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        return Config{}, fmt.Errorf("load .env: %w", err)
    }

    cfg := Default()
    if path == "" {
        if _, err := os.Stat("config.json"); err == nil {
            path = "config.json"
        }
    }
    if path != "" {
        if err := cleanenv.ReadConfig(path, &cfg); err != nil {
            return cfg, fmt.Errorf("read config %s: %w", path, err)
        }
    } else if err := cleanenv.ReadEnv(&cfg); err != nil {
        return cfg, fmt.Errorf("read env: %w", err)
    }

    if err := cfg.Validate(); err != nil { return cfg, err }
    return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and the cross-field rules: the official
// rate and the general peer pool are always configured, snapshot keys are
// unique, and every platform quotes from a configured pool.
func (c Config) Validate() error {
    if err := validate.Struct(c); err != nil {
        return fmt.Errorf("config: %w", err)
    }
    if !c.Official.Enabled || c.Official.Key != rates.KeyOfficial {
        return fmt.Errorf("config: official source must be enabled with key %q", rates.KeyOfficial)
    }
    if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
        return errors.New("config: cache.redis.addr is required for the redis backend")
    }

    seen := map[string]string{c.Official.Key: "official"}
    if c.Auxiliary.Enabled {
        if _, dup := seen[c.Auxiliary.Key]; dup {
            return fmt.Errorf("config: auxiliary key %q already used", c.Auxiliary.Key)
        }
        seen[c.Auxiliary.Key] = "auxiliary"
    }
    for _, p := range c.P2P.Pools {
        if p.Key == rates.KeyFetchedAt {
            return fmt.Errorf("config: pool key %q is reserved", p.Key)
        }
        if other, dup := seen[p.Key]; dup {
            return fmt.Errorf("config: pool key %q already used by %s", p.Key, other)
        }
        seen[p.Key] = "p2p"
    }
    if _, ok := seen[rates.KeyPeer]; !ok {
        return fmt.Errorf("config: a p2p pool with key %q is required", rates.KeyPeer)
    }

    reg, err := pricing.NewRegistry(c.Pricing.Platforms)
    if err != nil { return fmt.Errorf("config: %w", err) }
    if err := reg.CheckQuoteKeys(c.PoolKeys()); err != nil {
        return fmt.Errorf("config: %w", err)
    }
    return nil
}

// PoolKeys lists the snapshot keys filled by P2P pools.
func (c Config) PoolKeys() []string {
    out := make([]string, 0, len(c.P2P.Pools))
    for _, p := range c.P2P.Pools { out = append(out, p.Key) }
    return out
}

func (c Config) Fees() pricing.Fees {
    return pricing.Fees{CardCommissionRate: c.Pricing.CardCommissionRate, SpreadFee: c.Pricing.SpreadFee}
}

func (s Server) RequestTimeout() time.Duration   { return time.Duration(s.RequestTimeoutSec) * time.Second }
func (s Server) AggregateTimeout() time.Duration { return time.Duration(s.AggregateTimeoutSec) * time.Second }
func (s Server) ShutdownTimeout() time.Duration  { return time.Duration(s.ShutdownTimeoutSec) * time.Second }

func (c Cache) MaxAge() time.Duration { return time.Duration(c.MaxAgeSec) * time.Second }
func (c Cache) StaleWhileRevalidate() time.Duration {
    return time.Duration(c.StaleWhileRevalidateSec) * time.Second
}
