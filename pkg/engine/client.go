// Package engine is a client of the ML engine, an HTTP service which fits
// estimators and computes SHAP values.
package engine

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

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	xe "github.com/opst/mlengine/pkg/errors"
	"golang.org/x/time/rate"
)

// EngineError is a non-2xx response from the engine.
type EngineError struct {
	Status int
	Body   string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("ML engine responded %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// IsNotFound tells err is a 404 from the engine.
func IsNotFound(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Status == http.StatusNotFound
}

const (
	tokenSubject  = "mlengine"
	tokenLifetime = 5 * time.Minute
)

type Client struct {
	httpclient   *http.Client
	api          string
	signingKey   []byte
	limiter      *rate.Limiter
	pollInterval time.Duration
	now          func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpclient = hc }
}

// WithTimeout limits time of each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpclient
		hc.Timeout = d
		c.httpclient = &hc
	}
}

// WithSigningKey makes requests carry a bearer token signed with HS256.
func WithSigningKey(key []byte) Option {
	return func(c *Client) { c.signingKey = key }
}

// WithRateLimit limits requests per second on the client side.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithPollInterval sets the interval of polling training jobs.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// New returns a client of the engine.
//
// apiRoot is a URL ending with "/api", like "http://localhost:8000/api".
func New(apiRoot string, options ...Option) (*Client, error) {
	u, err := url.Parse(apiRoot)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, xe.Errorf("ML engine URL should be http or https: %s", apiRoot)
	}

	c := &Client{
		httpclient:   &http.Client{},
		api:          strings.TrimSuffix(apiRoot, "/"),
		pollInterval: time.Second,
		now:          time.Now,
	}
	for _, o := range options {
		o(c)
	}
	return c, nil
}

func (c *Client) apipath(path ...string) string {
	segs := []string{c.api}
	for _, p := range path {
		segs = append(segs, url.PathEscape(strings.Trim(p, "/")))
	}
	return strings.Join(segs, "/")
}

// root is the engine URL without "/api".
func (c *Client) root() string {
	return strings.TrimSuffix(c.api, "/api")
}

func (c *Client) token() (string, error) {
	now := c.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		ID:        uuid.NewString(),
	})
	return tok.SignedString(c.signingKey)
}

// do sends a request with JSON body (if any) and decodes the JSON response into out (if not nil).
func (c *Client) do(ctx context.Context, method string, url string, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return xe.Wrap(err)
		}
	}

	var rb io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return xe.Wrap(err)
		}
		rb = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rb)
	if err != nil {
		return xe.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if len(c.signingKey) != 0 {
		tok, err := c.token()
		if err != nil {
			return xe.Wrap(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return xe.WrapWithNote("ML engine request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &EngineError{Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return xe.Wrap(err)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xe.WrapWithNote(fmt.Sprintf("unexpected response from %s %s", method, url), err)
	}
	return nil
}

type Health struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health asks the engine its health. Errors are reported as the "error" status.
func (c *Client) Health(ctx context.Context) Health {
	h := Health{}
	if err := c.do(ctx, http.MethodGet, c.root()+"/health", nil, &h); err != nil {
		return Health{Status: "error", Message: err.Error()}
	}
	return h
}

// Available tells the engine reports "ok".
func (c *Client) Available(ctx context.Context) bool {
	return c.Health(ctx).Status == "ok"
}
