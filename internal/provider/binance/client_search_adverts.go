package binance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"ratecalc/internal/provider"
)

const (
	searchPath  = "/bapi/c2c/v2/friendly/c2c/adv/search"
	successCode = "000000"
	source      = "binance-p2p"
)

// SearchRequest filters the advert order book.
type SearchRequest struct {
	Fiat              string   `json:"fiat"`
	Page              int      `json:"page"`
	Rows              int      `json:"rows"`
	TradeType         string   `json:"tradeType"`
	Asset             string   `json:"asset"`
	Countries         []string `json:"countries"`
	ProMerchantAds    bool     `json:"proMerchantAds"`
	ShieldMerchantAds bool     `json:"shieldMerchantAds"`
	PublisherType     string   `json:"publisherType"`
	PayTypes          []string `json:"payTypes"`
	Classifies        []string `json:"classifies"`
}

// Advert is one entry of the order book, best first.
type Advert struct {
	Adv        Adv        `json:"adv"`
	Advertiser Advertiser `json:"advertiser"`
}

// Adv holds the price terms of an advert. Amounts are strings upstream.
type Adv struct {
	AdvNo                string        `json:"advNo"`
	TradeType            string        `json:"tradeType"`
	Asset                string        `json:"asset"`
	FiatUnit             string        `json:"fiatUnit"`
	Price                string        `json:"price" validate:"required,numeric"`
	SurplusAmount        string        `json:"surplusAmount"`
	MinSingleTransAmount string        `json:"minSingleTransAmount"`
	MaxSingleTransAmount string        `json:"maxSingleTransAmount"`
	TradeMethods         []TradeMethod `json:"tradeMethods"`
}

type TradeMethod struct {
	Identifier      string `json:"identifier"`
	TradeMethodName string `json:"tradeMethodName"`
}

type Advertiser struct {
	NickName        string  `json:"nickName"`
	UserType        string  `json:"userType"`
	MonthOrderCount int     `json:"monthOrderCount"`
	MonthFinishRate float64 `json:"monthFinishRate"`
}

type searchResponse struct {
	Code    string   `json:"code"`
	Message *string  `json:"message"`
	Data    []Advert `json:"data"`
	Total   int      `json:"total"`
	Success bool     `json:"success"`
}

var validate = validator.New()

// SearchAdverts queries the order book. An empty result is not an error.
// Failures are returned as *provider.FetchError.
func (c *P2PClient) SearchAdverts(ctx context.Context, search SearchRequest) ([]Advert, error) {
	// Upstream rejects null arrays.
	if search.Countries == nil {
		search.Countries = []string{}
	}
	if search.PayTypes == nil {
		search.PayTypes = []string{}
	}
	if search.Classifies == nil {
		search.Classifies = []string{}
	}

	body, err := json.Marshal(search)
	if err != nil {
		return nil, &provider.FetchError{Source: source, Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.FetchError{Source: source, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header = c.header.Clone()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &provider.FetchError{Source: source, Err: fmt.Errorf("performing request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, &provider.FetchError{
			Source:     source,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("%w: %s", provider.ErrUnexpectedStatus, string(b)),
		}
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, &provider.FetchError{Source: source, StatusCode: res.StatusCode, Err: fmt.Errorf("%w: decoding search response: %v", provider.ErrMalformedPayload, err)}
	}
	if !out.Success || (out.Code != "" && out.Code != successCode) {
		msg := ""
		if out.Message != nil {
			msg = *out.Message
		}
		return nil, &provider.FetchError{Source: source, StatusCode: res.StatusCode, Err: fmt.Errorf("%w: code=%s msg=%q", provider.ErrMalformedPayload, out.Code, msg)}
	}

	for i := range out.Data {
		if err := validate.Struct(&out.Data[i]); err != nil {
			return nil, &provider.FetchError{Source: source, StatusCode: res.StatusCode, Err: fmt.Errorf("%w: advert %d: %v", provider.ErrMalformedPayload, i, err)}
		}
	}
	if out.Data == nil {
		out.Data = []Advert{}
	}
	return out.Data, nil
}
