package binance

import (
	"net/http"
)

const baseURL = "https://p2p.binance.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=binance_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// P2PClient is a client for the Binance P2P advert search API.
type P2PClient struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// P2PClientOption is a configuration option for the P2P client.
type P2PClientOption func(*P2PClient)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) P2PClientOption {
	return func(c *P2PClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) P2PClientOption {
	return func(c *P2PClient) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) P2PClientOption {
	return func(c *P2PClient) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewP2PClient creates a new P2P client. The search endpoint is public, so
// no credentials are needed.
func NewP2PClient(options ...P2PClientOption) *P2PClient {
	var client = &P2PClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(client)
	}
	return client
}
