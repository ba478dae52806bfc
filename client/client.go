package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/habedi/portal/auth"
	"github.com/habedi/portal/fallback"
	"github.com/rs/zerolog/log"
)

// DefaultPublicPaths are the endpoints that can be called without an access token.
var DefaultPublicPaths = []string{"/auth/login", "/auth/register", "/auth/refresh", "/auth/forgot-password"}

// Request describes one logical API call.
type Request struct {
	Method   string // GET when empty
	Endpoint string // relative to the base URL, or absolute
	Header   http.Header
	Body     Body
	// ExcludeContentType drops the JSON Content-Type header.
	ExcludeContentType bool
}

// Response is the outcome of a successful call.
type Response struct {
	Status int // 0 for fallback payloads
	Body   json.RawMessage
	// Fallback is set when the backend was unreachable and Body is placeholder data.
	Fallback bool
}

// Client issues authenticated API calls, refreshing the access token once on a 401.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	store        auth.TokenStore
	auth         *auth.Service
	publicPaths  []string
	fallback     *fallback.Registry
	newRequestID func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (30s timeout).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithPublicPaths replaces DefaultPublicPaths.
func WithPublicPaths(paths []string) Option {
	return func(c *Client) {
		c.publicPaths = append([]string(nil), paths...)
	}
}

// WithFallback serves reg's payloads when the backend is unreachable. nil disables fallback.
func WithFallback(reg *fallback.Registry) Option {
	return func(c *Client) {
		c.fallback = reg
	}
}

// WithRequestIDs replaces the X-Request-ID generator.
func WithRequestIDs(next func() string) Option {
	return func(c *Client) {
		c.newRequestID = next
	}
}

// New returns a client for baseURL. The store supplies tokens and the service refreshes them.
func New(baseURL string, store auth.TokenStore, service *auth.Service, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		store:        store,
		auth:         service,
		publicPaths:  DefaultPublicPaths,
		newRequestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the token store the client reads from.
func (c *Client) Store() auth.TokenStore { return c.store }

// IsPublic reports whether endpoint may be called without an access token.
func (c *Client) IsPublic(endpoint string) bool {
	p := endpointPath(endpoint)
	for _, public := range c.publicPaths {
		public = strings.TrimRight(public, "/")
		if p == public || strings.HasPrefix(p, public+"/") {
			return true
		}
	}
	return false
}

type callState int

const (
	stateInitial callState = iota
	stateAwaitingRefresh
	stateRetrying
	stateDone
)

func (s callState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateAwaitingRefresh:
		return "awaiting_refresh"
	case stateRetrying:
		return "retrying"
	default:
		return "done"
	}
}

// Call performs req.
//
// A protected endpoint without a stored token fails with ErrAuthenticationRequired before any
// network traffic. A 401 on a protected endpoint triggers one refresh and one retry; the retry's
// outcome is final. If the refresh fails the store is cleared and ErrAuthenticationFailed is
// returned; cancelling ctx while the refresh runs keeps the session. Other non-2xx answers are *HTTPError. When the server cannot be reached the fallback
// registry's payload is returned with Response.Fallback set.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	protected := !c.IsPublic(req.Endpoint)

	token, err := c.store.Get(ctx)
	if err != nil {
		if protected {
			return nil, fmt.Errorf("failed to read access token: %w", err)
		}
		// Public endpoints (login among them) must work even when the session cannot be read.
		log.Warn().Err(err).Str("endpoint", req.Endpoint).Msg("Failed to read access token, sending without it")
		token = ""
	}
	if protected && token == "" {
		log.Debug().Str("endpoint", req.Endpoint).Msg("No access token for protected endpoint")
		return nil, ErrAuthenticationRequired
	}

	requestID := c.newRequestID()
	lg := log.With().Str("method", req.Method).Str("endpoint", req.Endpoint).Str("request_id", requestID).Logger()

	var result *Response
	state := stateInitial
	for state != stateDone {
		switch state {
		case stateInitial, stateRetrying:
			status, body, err := c.send(ctx, req, token, requestID)
			if err != nil {
				var te *transportError
				if errors.As(err, &te) && ctx.Err() == nil {
					return c.fallbackFor(req.Endpoint, te.err)
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, fmt.Errorf("request %s %s cancelled: %w", req.Method, req.Endpoint, ctxErr)
				}
				return nil, err
			}
			if status == http.StatusUnauthorized && protected && state == stateInitial {
				lg.Info().Msg("Access token rejected")
				state = stateAwaitingRefresh
				continue
			}
			result, err = finish(req.Endpoint, status, body)
			if err != nil {
				return nil, err
			}
			state = stateDone

		case stateAwaitingRefresh:
			pair, err := c.refresh(ctx, token)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, fmt.Errorf("request %s %s cancelled: %w", req.Method, req.Endpoint, ctxErr)
				}
				lg.Warn().Err(err).Msg("Token refresh failed, session cleared")
				c.clearTokens(ctx)
				return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
			}
			token = pair.AccessToken
			lg.Debug().Str("state", stateRetrying.String()).Msg("Retrying with refreshed token")
			state = stateRetrying
		}
	}
	return result, nil
}

// Do performs req and decodes the JSON body into out when both are non-empty.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) (*Response, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, req.Endpoint, err)
		}
	}
	return resp, nil
}

// Get decodes the response of GET endpoint into out.
func (c *Client) Get(ctx context.Context, endpoint string, out interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Endpoint: endpoint}, out)
}

// Post sends body (a Body, or any value encoded as JSON) and decodes the answer into out.
func (c *Client) Post(ctx context.Context, endpoint string, body, out interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: asBody(body)}, out)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Endpoint: endpoint, Body: asBody(body)}, out)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body, out interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Endpoint: endpoint, Body: asBody(body)}, out)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Endpoint: endpoint}, out)
}

func (c *Client) refresh(ctx context.Context, rejected string) (auth.Pair, error) {
	if c.auth == nil {
		return auth.Pair{}, errors.New("no token refresher configured")
	}
	return c.auth.Refresh(ctx, rejected)
}

func (c *Client) clearTokens(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to clear tokens")
	}
}

// send issues one HTTP round trip. Failures to reach the server are returned as *transportError.
func (c *Client) send(ctx context.Context, req Request, token, requestID string) (int, []byte, error) {
	var payload io.Reader
	var framedType string
	if req.Body != nil {
		r, ct, err := req.Body.Open()
		if err != nil {
			return 0, nil, err
		}
		payload, framedType = r, ct
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req.Endpoint), payload)
	if err != nil {
		if closer, ok := payload.(io.Closer); ok {
			_ = closer.Close()
		}
		log.Error().Err(err).Str("endpoint", req.Endpoint).Msg("Failed to create request")
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	header := BuildHeaders(token, req.ExcludeContentType, req.Body)
	for k, vs := range req.Header {
		if http.CanonicalHeaderKey(k) == "Authorization" {
			continue
		}
		header[http.CanonicalHeaderKey(k)] = vs
	}
	if framedType != "" {
		header.Set("Content-Type", framedType)
	}
	header.Set("X-Request-ID", requestID)
	httpReq.Header = header

	log.Debug().Str("method", req.Method).Str("url", httpReq.URL.String()).Msg("Sending HTTP request")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, &transportError{err: err}
	}
	defer closeResponseBody(resp)

	body, err := readResponseBody(resp)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("url", httpReq.URL.String()).Int("status", resp.StatusCode).Msg("HTTP request finished")
	return resp.StatusCode, body, nil
}

func (c *Client) fallbackFor(endpoint string, cause error) (*Response, error) {
	if c.fallback == nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, cause)
	}
	body, err := c.fallback.JSON(endpoint)
	if err != nil {
		return nil, err
	}
	log.Warn().Err(cause).Str("endpoint", endpoint).Msg("Backend unreachable, serving fallback data")
	return &Response{Body: body, Fallback: true}, nil
}

func finish(endpoint string, status int, body []byte) (*Response, error) {
	if status < 200 || status >= 300 {
		log.Error().Str("endpoint", endpoint).Int("status", status).Msg("HTTP request failed with non-successful status")
		return nil, &HTTPError{Status: status, Endpoint: endpoint, Body: strings.TrimSpace(preview(body))}
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &Response{Status: status}, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidResponse, endpoint, preview(trimmed))
	}
	return &Response{Status: status, Body: json.RawMessage(trimmed)}, nil
}

func (c *Client) resolve(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// endpointPath strips scheme, host and query from endpoint.
func endpointPath(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
			return endpoint[:i]
		}
		return endpoint
	}
	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
