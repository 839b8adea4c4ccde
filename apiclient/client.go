package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Request headers. AdvertiserHeader is only ever sent when an advertiser is
// selected; the backend treats its absence as a global/default-scope query,
// so an empty value must never be sent in its place.
const (
	AdvertiserHeader = "X-Advertiser-ID"
	RequestIDHeader  = "X-Request-ID"
)

const defaultTimeout = 30 * time.Second

// TokenSource supplies the bearer credential, empty when unauthenticated.
type TokenSource interface {
	Get() string
}

// ScopeSource supplies the active advertiser id, false when none is selected.
type ScopeSource interface {
	Get() (int64, bool)
}

// Client performs dashboard API calls. It injects session headers on every
// request, maps non-2xx responses to *APIError, and fires the expiry signal
// on HTTP 401 so any in-flight call can trigger a global logout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	scope      ScopeSource
	expiry     *ExpirySignal
	retries    int
	log        zerolog.Logger
}

// Option modifies the Client instance.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetries sets the transport-error retry budget. Responses with an HTTP
// status are never retried, only failures to obtain a response at all.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithLogger sets the client logger (a no-op logger by default).
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New initializes a Client with required dependencies.
func New(baseURL string, tokens TokenSource, scope ScopeSource, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[apiclient.New] baseURL is required")
	}
	if tokens == nil {
		return nil, errors.New("[apiclient.New] token source is required")
	}
	if scope == nil {
		return nil, errors.New("[apiclient.New] scope source is required")
	}

	client := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
		scope:      scope,
		expiry:     NewExpirySignal(),
		retries:    1,
		log:        zerolog.Nop(),
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

// Expiry exposes the session-expired broadcast for subscription.
func (c *Client) Expiry() *ExpirySignal {
	return c.expiry
}

// Get issues a GET call to endpoint.
func (c *Client) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, endpoint, nil)
}

// Post issues a POST call to endpoint with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPost, endpoint, body)
}

// Call performs the request and returns the raw JSON body on 2xx. Non-2xx
// responses become *APIError; a 401 additionally fires the expiry signal
// exactly once for the failing call.
func (c *Client) Call(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.Call] marshal body")
		}
		payload = encoded
	}

	requestID := uuid.New().String()

	var resp *http.Response
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = c.do(ctx, method, endpoint, payload, requestID)
		if err == nil {
			break
		}
		if attempt >= c.retries || ctx.Err() != nil {
			return nil, errors.Wrapf(err, "[Client.Call] %s %s", method, endpoint)
		}
		c.log.Debug().Str("endpoint", endpoint).Str("request_id", requestID).Err(err).Msg("retrying after transport error")
	}
	defer resp.Body.Close() //nolint:errcheck

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Call] read body %s %s", method, endpoint)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return responseBody, nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Detail:     errorDetail(responseBody),
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Debug().Str("endpoint", endpoint).Str("request_id", requestID).Msg("unauthorized response, broadcasting session expiry")
		c.expiry.Notify()
	}

	return nil, apiErr
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, requestID string) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if token := c.tokens.Get(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if advertiserID, ok := c.scope.Get(); ok {
		req.Header.Set(AdvertiserHeader, strconv.FormatInt(advertiserID, 10))
	}

	return c.httpClient.Do(req)
}
