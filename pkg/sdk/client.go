package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// RequestIDHeader is set on every outgoing request.
const RequestIDHeader = "X-Request-Id"

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

// ResponseType selects how a 2xx body is decoded.
type ResponseType int

const (
	// ResponseJSON decodes the body into RequestOptions.Out.
	ResponseJSON ResponseType = iota
	// ResponseText keeps the body as text.
	ResponseText
	// ResponseBinary keeps the body as bytes.
	ResponseBinary
	// ResponseRaw hands the open *http.Response to the caller (streaming, exports).
	ResponseRaw
)

// Config is the explicit gateway configuration supplied at startup.
type Config struct {
	// BaseURL of the backend, e.g. "https://spearhead.example.com/api".
	BaseURL string
	// Timeout applies to every request. Zero means no client-side timeout.
	Timeout time.Duration
	// SessionHeader overrides DefaultSessionHeader.
	SessionHeader string
}

// Client is the request gateway to the readiness backend. It injects auth
// headers from a CredentialSource and classifies every failure into
// AuthError, APIError, NetworkError or ErrAborted.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	onUnauthorized func()
	logger         *log.Logger
	metrics        *GatewayMetrics
}

// ClientOptions configures client construction.
type ClientOptions struct {
	HTTPClient     *http.Client
	Credentials    CredentialSource
	OnUnauthorized func()
	Logger         *log.Logger
	Metrics        *GatewayMetrics
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithHTTPClient overrides the HTTP client used for requests. Its transport
// is wrapped, not replaced.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithCredentials sets the source of auth headers.
func WithCredentials(source CredentialSource) ClientOption {
	return func(opts *ClientOptions) {
		opts.Credentials = source
	}
}

// WithUnauthorizedHandler registers the side effect run once for every 401.
func WithUnauthorizedHandler(fn func()) ClientOption {
	return func(opts *ClientOptions) {
		opts.OnUnauthorized = fn
	}
}

// WithLogger sets the logger for benign failures.
func WithLogger(logger *log.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// WithMetrics records every request into m.
func WithMetrics(m *GatewayMetrics) ClientOption {
	return func(opts *ClientOptions) {
		opts.Metrics = m
	}
}

// NewClient creates a gateway bound to cfg.BaseURL.
func NewClient(cfg Config, optFns ...ClientOption) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	opts := ClientOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[gateway] ", log.LstdFlags)
	}

	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		clone := *opts.HTTPClient
		httpClient = &clone
	}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	baseTransport := httpClient.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	sessionHeader := cfg.SessionHeader
	if sessionHeader == "" {
		sessionHeader = DefaultSessionHeader
	}
	httpClient.Transport = &credentialTransport{
		source:        opts.Credentials,
		sessionHeader: sessionHeader,
		base:          baseTransport,
	}

	return &Client{
		baseURL:        base,
		http:           httpClient,
		onUnauthorized: opts.OnUnauthorized,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetUnauthorizedHandler replaces the 401 side effect. It must be called
// before the client is shared between goroutines.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// RequestOptions describes a single gateway call.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	// Params become the query string. Empty values are omitted.
	Params map[string]string
	// Body is JSON-encoded unless it is an io.Reader, which is sent as is
	// with ContentType.
	Body        any
	ContentType string
	// ResponseType defaults to ResponseJSON.
	ResponseType ResponseType
	// Out receives the decoded JSON body.
	Out any
}

// Response is a successful (2xx) gateway response.
type Response struct {
	Status int
	Header http.Header
	// Body holds the payload for JSON, text and binary responses.
	Body []byte
	// Raw is set only for ResponseRaw. The caller must close Raw.Body.
	Raw *http.Response
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Do issues a request against the backend and classifies the outcome.
func (c *Client) Do(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	resource := resourceOf(path)

	body, contentType, err := encodeBody(opts)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s request: %w", method, path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, opts.Params), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if opts.ResponseType == ResponseJSON {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	record := func(outcome string) {
		c.metrics.RecordRequest(ctx, method, resource, outcome, float64(time.Since(start).Microseconds())/1000)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			record(OutcomeAborted)
			c.logger.Printf("%s %s aborted: %v", method, path, ctx.Err())
			return nil, fmt.Errorf("%s %s: %w", method, path, ErrAborted)
		}
		record(OutcomeNetworkError)
		c.logger.Printf("%s %s failed: %v", method, path, err)
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp.Body)
		record(OutcomeUnauthorized)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, &AuthError{Status: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		record(OutcomeAPIError)
		return nil, &APIError{Status: resp.StatusCode, Detail: extractDetail(data)}
	}

	if opts.ResponseType == ResponseRaw {
		record(OutcomeOK)
		return &Response{Status: resp.StatusCode, Header: resp.Header, Raw: resp}, nil
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			record(OutcomeAborted)
			return nil, fmt.Errorf("%s %s: %w", method, path, ErrAborted)
		}
		record(OutcomeNetworkError)
		return nil, &NetworkError{Err: fmt.Errorf("read response body: %w", err)}
	}
	record(OutcomeOK)

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
	if opts.ResponseType == ResponseJSON && opts.Out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, opts.Out); err != nil {
			return nil, fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return out, nil
}

// endpoint joins path onto the base URL and encodes non-empty params.
func (c *Client) endpoint(path string, params map[string]string) string {
	u := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		q := url.Values{}
		for key, value := range params {
			if value == "" {
				continue
			}
			q.Set(key, value)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func encodeBody(opts RequestOptions) (io.Reader, string, error) {
	switch body := opts.Body.(type) {
	case nil:
		return nil, "", nil
	case io.Reader:
		return body, opts.ContentType, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// extractDetail prefers a JSON "detail" field, then the raw text, then nil.
func extractDetail(body []byte) *string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if gjson.ValidBytes(trimmed) {
		if detail := gjson.GetBytes(trimmed, "detail"); detail.Exists() && detail.Type != gjson.Null {
			s := detail.String()
			return &s
		}
	}
	s := string(trimmed)
	return &s
}

// resourceOf reduces a path to its first two segments for metric labels,
// e.g. "/queries/tabular/totals" -> "queries/tabular".
func resourceOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "/")
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}
