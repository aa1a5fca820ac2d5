package dolarapi

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/go-playground/validator/v10"
    json "github.com/goccy/go-json"

    "ratecalc/internal/provider"
)

const (
    OfficialURL = "https://ve.dolarapi.com/v1/dolares/oficial"
    EuroURL     = "https://ve.dolarapi.com/v1/euros/oficial"
)

// HTTPClient describes an HTTP client.
type HTTPClient interface {
    Do(req *http.Request) (*http.Response, error)
}

// Config controls one dolarapi endpoint.
type Config struct {
    Name    string
    Key     string // snapshot field: bcv or euro
    URL     string
    Headers map[string]string
}

// Provider reads the averaged official rate from a dolarapi endpoint.
type Provider struct {
    cfg    Config
    client HTTPClient
}

func New(cfg Config, hc HTTPClient) *Provider {
    if cfg.URL == "" { cfg.URL = OfficialURL }
    if cfg.Name == "" { cfg.Name = "dolarapi:" + cfg.Key }
    if hc == nil { hc = http.DefaultClient }
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Key() string { return p.cfg.Key }

// Response model of /v1/{dolares,euros}/oficial.
type rateResponse struct {
    Fuente             string     `json:"fuente"`
    Nombre             string     `json:"nombre"`
    Compra             *float64   `json:"compra"`
    Venta              *float64   `json:"venta"`
    Promedio           *float64   `json:"promedio" validate:"omitnil,gte=0"`
    FechaActualizacion string     `json:"fechaActualizacion"`
}

var updatedLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// updatedAt parses fechaActualizacion. The field is informational, so an
// unknown format is ignored.
func updatedAt(s string) (time.Time, bool) {
    for _, layout := range updatedLayouts {
        if t, err := time.Parse(layout, s); err == nil { return t.UTC(), true }
    }
    return time.Time{}, false
}

var validate = validator.New()

// Fetch returns promedio. A missing or null promedio is reported as 0.
func (p *Provider) Fetch(ctx context.Context) (provider.Quote, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, http.NoBody)
    if err != nil { return provider.Quote{}, provider.Fail(p.cfg.Name, fmt.Errorf("creating request: %w", err)) }
    for k, v := range p.cfg.Headers { req.Header.Set(k, v) }
    req.Header.Set("Accept", "application/json")

    resp, err := p.client.Do(req)
    if err != nil { return provider.Quote{}, provider.Fail(p.cfg.Name, err) }
    defer resp.Body.Close()

    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
        return provider.Quote{}, &provider.FetchError{
            Source:     p.cfg.Name,
            StatusCode: resp.StatusCode,
            Err:        fmt.Errorf("%w: GET %s: %s", provider.ErrUnexpectedStatus, p.cfg.URL, string(b)),
        }
    }

    var body rateResponse
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return provider.Quote{}, &provider.FetchError{Source: p.cfg.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: decode: %v", provider.ErrMalformedPayload, err)}
    }
    if err := validate.Struct(&body); err != nil {
        return provider.Quote{}, &provider.FetchError{Source: p.cfg.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", provider.ErrMalformedPayload, err)}
    }

    q := provider.Quote{Key: p.cfg.Key, Source: p.cfg.Name, ReceivedAt: time.Now().UTC()}
    if body.Promedio != nil { q.Rate = *body.Promedio }
    if at, ok := updatedAt(body.FechaActualizacion); ok && !at.IsZero() { q.ReceivedAt = at }
    return q, nil
}
