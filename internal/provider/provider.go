package provider

import (
    "context"
    "errors"
    "fmt"
    "time"
)

// Quote is the normalized result of one source fetch. Key names the
// snapshot field it fills. Rate 0 means the source answered with no offers.
type Quote struct {
    Key        string    `json:"key"`
    Rate       float64   `json:"rate"`
    Source     string    `json:"source"`
    ReceivedAt time.Time `json:"received_at"`
}

// Provider fetches one quote from one upstream source.
//
//go:generate mockgen -package=aggregate_test -destination=../aggregate/mock_provider_test.go -source=provider.go Provider
type Provider interface {
    Name() string
    // Key is the snapshot field this provider fills.
    Key() string
    Fetch(ctx context.Context) (Quote, error)
}

var (
    ErrUnexpectedStatus = errors.New("unexpected status")
    ErrMalformedPayload = errors.New("malformed payload")
)

// FetchError is an upstream failure of a single source: transport error,
// non-2xx status or a payload that could not be understood.
type FetchError struct {
    Source     string
    StatusCode int
    Err        error
}

func (e *FetchError) Error() string {
    if e.StatusCode != 0 {
        return fmt.Sprintf("%s: status %d: %v", e.Source, e.StatusCode, e.Err)
    }
    return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fail wraps err as a FetchError attributed to source. An existing
// FetchError keeps its status code and cause.
func Fail(source string, err error) error {
    if err == nil { return nil }
    var fe *FetchError
    if errors.As(err, &fe) {
        return &FetchError{Source: source, StatusCode: fe.StatusCode, Err: fe.Err}
    }
    return &FetchError{Source: source, Err: err}
}
