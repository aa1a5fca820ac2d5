package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "ratecalc/internal/pricing"
)

func TestDefault_IsValid(t *testing.T) {
    t.Parallel()

    cfg := Default()
    require.NoError(t, cfg.Validate())
    require.Equal(t, []string{"binanceVes", "binanceWally", "binanceZinli"}, cfg.PoolKeys())
    require.Equal(t, 20*time.Minute, cfg.Cache.MaxAge())
    require.Equal(t, 10*time.Minute, cfg.Cache.StaleWhileRevalidate())
    require.Equal(t, pricing.DefaultFees(), cfg.Fees())
    require.False(t, cfg.Auxiliary.Enabled)
}

func TestValidate_Rejects(t *testing.T) {
    t.Parallel()

    cases := map[string]func(*Config){
        "bad log level":        func(c *Config) { c.Log.Level = "verbose" },
        "non numeric port":     func(c *Config) { c.Server.Port = "http" },
        "no pools":             func(c *Config) { c.P2P.Pools = nil },
        "missing peer pool":    func(c *Config) { c.P2P.Pools = c.P2P.Pools[1:] },
        "duplicate pool":       func(c *Config) { c.P2P.Pools = append(c.P2P.Pools, Pool{Key: "binanceZinli", Fiat: "USD"}) },
        "pool shadows bcv":     func(c *Config) { c.P2P.Pools = append(c.P2P.Pools, Pool{Key: "bcv", Fiat: "USD"}) },
        "reserved key":         func(c *Config) { c.P2P.Pools = append(c.P2P.Pools, Pool{Key: "fetchedAt", Fiat: "USD"}) },
        "lowercase fiat":       func(c *Config) { c.P2P.Pools[0].Fiat = "ves" },
        "official disabled":    func(c *Config) { c.Official.Enabled = false },
        "card rate above one":  func(c *Config) { c.Pricing.CardCommissionRate = 1.2 },
        "unknown quote key":    func(c *Config) { c.Pricing.Platforms[0].QuoteKey = "binanceReserve" },
        "redis without addr":   func(c *Config) { c.Cache.Backend = "redis" },
        "unknown backend":      func(c *Config) { c.Cache.Backend = "memcached" },
        "aux without url":      func(c *Config) { c.Auxiliary.Enabled = true; c.Auxiliary.URL = "" },
        "aux reuses bcv":       func(c *Config) { c.Auxiliary.Enabled = true; c.Auxiliary.Key = "bcv" },
        "zero request timeout": func(c *Config) { c.Server.RequestTimeoutSec = 0 },
    }
    for name, mutate := range cases {
        cfg := Default()
        mutate(&cfg)
        require.Error(t, cfg.Validate(), name)
    }
}

func TestLoad_FileAndEnv(t *testing.T) {
    // Arrange: a file adding a platform and its pool
    dir := t.TempDir()
    path := filepath.Join(dir, "config.json")
    body := `{
        "server": {"port": "9090"},
        "auxiliary": {"enabled": true},
        "p2p": {"pools": [
            {"key": "binanceVes", "fiat": "VES"},
            {"key": "binanceZinli", "fiat": "USD", "pay_types": ["Zinli"]},
            {"key": "binanceReserve", "fiat": "USD", "pay_types": ["Reserve"]}
        ]},
        "pricing": {"platforms": [
            {"id": "zinli", "label": "Zinli", "commission_rate": 0.0375, "tax_rate": 0.07, "tax_applicable": true, "quote_key": "binanceZinli"},
            {"id": "reserve", "label": "Reserve", "commission_rate": 0.01, "quote_key": "binanceReserve"}
        ]}
    }`
    require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
    t.Setenv("PORT", "7070")
    t.Setenv("CACHE_MAX_AGE_SEC", "60")
    t.Setenv("LOG_LEVEL", "debug")
    t.Setenv("AUXILIARY_URL", "https://example.com/euro")

    // Act
    cfg, err := Load(path)

    // Assert: env wins over file, file wins over defaults
    require.NoError(t, err)
    require.Equal(t, "7070", cfg.Server.Port)
    require.Equal(t, 60, cfg.Cache.MaxAgeSec)
    require.Equal(t, 600, cfg.Cache.StaleWhileRevalidateSec)
    require.Equal(t, "debug", cfg.Log.Level)
    require.True(t, cfg.Auxiliary.Enabled)
    require.Equal(t, "https://example.com/euro", cfg.Auxiliary.URL)
    require.Equal(t, "euro", cfg.Auxiliary.Key)
    require.Equal(t, []string{"binanceVes", "binanceZinli", "binanceReserve"}, cfg.PoolKeys())
    require.Len(t, cfg.Pricing.Platforms, 2)
    require.Equal(t, "USDT", cfg.P2P.Asset)
}

func TestLoad_EnvOnly(t *testing.T) {
    t.Setenv("CACHE_BACKEND", "redis")
    t.Setenv("REDIS_ADDR", "localhost:6379")
    t.Setenv("P2P_MAX_RPM", "30")

    cfg, err := Load("")
    require.NoError(t, err)
    require.Equal(t, "redis", cfg.Cache.Backend)
    require.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
    require.Equal(t, 30, cfg.P2P.MaxRequestsPerMinute)
    require.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_InvalidFile(t *testing.T) {
    dir := t.TempDir()

    _, err := Load(filepath.Join(dir, "missing.json"))
    require.Error(t, err)

    path := filepath.Join(dir, "bad.json")
    require.NoError(t, os.WriteFile(path, []byte(`{"pricing": {"platforms": [{"id": "x", "quote_key": "nowhere"}]}}`), 0o600))
    _, err = Load(path)
    require.ErrorContains(t, err, "nowhere")
}
