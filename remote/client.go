// Package remote is the Remote Sync Gateway over HTTP. It talks JSON to a
// document store exposing /products and /users, using the product and
// user record versions as If-Match preconditions.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/storefront"
)

// DefaultTimeout applies to the default http.Client only; the core itself
// imposes no deadline.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP gateway to the document store.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = storefront.OrNop(logger) }
}

// NewClient creates a client for the store at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid document store url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("document store url %q needs a scheme and host", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL is the document store address requests are sent to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// notFound is the reason a 404 maps to for a given resource.
type notFound storefront.Reason

// do sends one request and decodes a JSON response into out (when non-nil).
// ifVersion, when non-nil, is sent as If-Match.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, ifVersion *int64, missing notFound, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return storefront.RemoteIOError(op, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return storefront.RemoteIOError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if ifVersion != nil {
		req.Header.Set("If-Match", FormatETag(*ifVersion))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return storefront.RemoteIOError(op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return storefront.RemoteIOError(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("document store rejected request",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return statusError(op, resp.StatusCode, payload, missing)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return storefront.RemoteIOError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(op string, status int, payload []byte, missing notFound) error {
	msg := errorMessage(payload)
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusNotFound:
		return storefront.NewErrorf(storefront.Reason(missing), "%s: %s", op, msg)
	case http.StatusPreconditionFailed, http.StatusConflict:
		return storefront.NewErrorf(storefront.ReasonVersionConflict, "%s: %s", op, msg)
	case http.StatusUnauthorized:
		return storefront.NewErrorf(storefront.ReasonUnauthenticated, "%s: %s", op, msg)
	case http.StatusForbidden:
		return storefront.NewErrorf(storefront.ReasonUnauthorized, "%s: %s", op, msg)
	default:
		return storefront.RemoteIOError(op, fmt.Errorf("status %d: %s", status, msg))
	}
}

func errorMessage(payload []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(payload, &body) == nil {
		return body.Error
	}
	return strings.TrimSpace(string(payload))
}

// FormatETag renders a record version as a strong entity tag.
func FormatETag(version int64) string {
	return strconv.Quote(strconv.FormatInt(version, 10))
}

// ParseETag reads a version from an entity tag, quoted or bare, with or
// without the weak prefix.
func ParseETag(tag string) (int64, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "W/")
	if unq, err := strconv.Unquote(tag); err == nil {
		tag = unq
	}
	return strconv.ParseInt(tag, 10, 64)
}

func escape(id string) string {
	return url.PathEscape(id)
}
