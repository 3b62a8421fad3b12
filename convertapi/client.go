// Package convertapi is a client for the ConvertAPI document conversion service.
//
// A Client builds multipart conversion requests from scalar and file parameters,
// uploads local files at most once per parameter, tracks which inputs belong to
// a response so they can be cleaned up, and derives converter metadata from the
// service's OpenAPI description.
package convertapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/sunbankio/convertapi-go/auth"
	"github.com/sunbankio/convertapi-go/config"
	"github.com/sunbankio/convertapi-go/logging"
	"github.com/sunbankio/convertapi-go/transport"
)

// Transport is the HTTP collaborator the client talks through
type Transport interface {
	Post(ctx context.Context, uri string, timeout time.Duration, body io.Reader, contentType, token string) (*transport.Response, error)
	Get(ctx context.Context, uri string, timeout time.Duration, token string) (*transport.Response, error)
	Delete(ctx context.Context, uri string) (*transport.Response, error)
}

// Client holds everything a conversion needs. It is safe for concurrent use.
type Client struct {
	token     string
	baseURI   string
	baseURL   *url.URL
	cfg       *config.Config
	transport Transport
	logger    *logging.Logger
}

// Option configures a Client
type Option func(*Client)

// WithConfig replaces the default configuration (timeouts, pool sizes, base URI)
func WithConfig(cfg *config.Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithBaseURI points the client at another service endpoint
func WithBaseURI(baseURI string) Option {
	return func(c *Client) {
		c.baseURI = baseURI
	}
}

// WithTransport injects the HTTP collaborator
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithLogger sets the logger. Without it the client is silent.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client authenticated with token
func NewClient(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &InvalidArgumentError{Name: "token", Reason: "must not be blank"}
	}

	c := &Client{
		token:  strings.TrimSpace(token),
		cfg:    config.DefaultConfig(),
		logger: logging.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.baseURI == "" {
		c.baseURI = c.cfg.API.BaseURI
	}
	base, err := url.Parse(auth.NormalizeBaseURI(c.baseURI))
	if err != nil || base.Host == "" {
		return nil, &InvalidArgumentError{Name: "baseURI", Reason: fmt.Sprintf("%q is not an absolute URL", c.baseURI)}
	}
	c.baseURL = base

	if c.transport == nil {
		c.transport = transport.NewFromConfig(c.cfg, c.logger)
	}
	return c, nil
}

// NewClientFromConfig resolves the token from cfg or the stored credentials
func NewClientFromConfig(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	token, baseURI, err := auth.ResolveTokenAndBaseURI(cfg)
	if err != nil {
		return nil, &InvalidArgumentError{Name: "token", Reason: err.Error()}
	}
	cfgCopy := *cfg
	cfgCopy.API.BaseURI = baseURI

	opts := []Option{WithConfig(&cfgCopy)}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return NewClient(token, opts...)
}

// BaseURI returns the service endpoint the client talks to
func (c *Client) BaseURI() string {
	return c.baseURL.String()
}

// endpoint joins a relative service path onto the base URI
func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.baseURL.String(), "/") + "/" + strings.TrimLeft(path, "/")
}

// isServiceURL reports whether raw is an absolute URL on the service host
func (c *Client) isServiceURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() {
		return false
	}
	return strings.EqualFold(u.Hostname(), c.baseURL.Hostname())
}

// Convert runs one conversion from one format to another. from may be "*" to
// take the format from the first uploaded input.
func (c *Client) Convert(ctx context.Context, from, to string, params ...Parameter) (*ConversionResponse, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return nil, &InvalidArgumentError{Name: "from", Reason: "source format must not be blank"}
	}
	if to == "" {
		return nil, &InvalidArgumentError{Name: "to", Reason: "destination format must not be blank"}
	}

	req, err := c.buildRequest(ctx, from, to, params)
	if err != nil {
		return nil, err
	}

	timeout := req.timeout
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout()
	}

	c.logger.ConvertLog("Converting %s to %s (%d fields, timeout %s)", req.from, req.to, req.fields.Len()+1, timeout)
	resp, err := c.transport.Post(ctx, c.endpoint("convert/"+req.from+"/to/"+req.to), timeout,
		bytes.NewReader(req.body), req.contentType, c.token)
	if err != nil {
		return nil, fmt.Errorf("conversion from %s to %s failed: %w", req.from, req.to, err)
	}

	body, err := resp.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversion response: %w", err)
	}
	if !resp.IsSuccess() {
		c.logger.ErrorLog("Conversion from %s to %s returned %d", req.from, req.to, resp.StatusCode)
		return nil, &ConversionError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Conversion from %s to %s error. %s", req.from, req.to, resp.Reason),
			Body:       string(body),
		}
	}

	var result ConversionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode conversion response: %w", err)
	}
	result.UploadedInputFiles = req.uploaded

	c.logger.DoneLog("Converted %s to %s: %d file(s), cost %d", req.from, req.to, len(result.Files), result.ConversionCost)
	return &result, nil
}

// User returns the account status of the token owner
func (c *Client) User(ctx context.Context) (*User, error) {
	resp, err := c.transport.Get(ctx, c.endpoint("user"), c.cfg.DownloadTimeout(), c.token)
	if err != nil {
		return nil, fmt.Errorf("retrieve user information failed: %w", err)
	}
	body, err := resp.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read user response: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, &ConversionError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Retrieve user information failed. %s", resp.Reason),
			Body:       string(body),
		}
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}
	return &user, nil
}
