// Package api is a thin client for the focus backend's REST endpoints.
// It surfaces every failure as a typed error and never retries: the user
// re-triggers the action.
package api

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
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Config configures a Client.
type Config struct {
	BaseURL       string
	CSRFToken     string
	SessionCookie string
	// Timeout bounds a whole request. Zero means no timeout.
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	csrf    string
	cookie  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewClient validates cfg and returns a ready Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	c := &Client{
		baseURL: u,
		csrf:    cfg.CSRFToken,
		cookie:  cfg.SessionCookie,
		http:    hc,
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "focus-backend",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("circuit breaker state changed")
		},
	})
	return c, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// LoginURL resolves path against the backend root.
func (c *Client) LoginURL(path string) string {
	if path == "" {
		path = "/accounts/login/"
	}
	ref, err := url.Parse(path)
	if err != nil {
		return c.baseURL.String() + path
	}
	return c.baseURL.ResolveReference(ref).String()
}

// response is what survives the circuit breaker: status and raw body.
type response struct {
	status int
	body   []byte
}

// do performs one request and maps the outcome onto the error taxonomy.
// Only transport failures and 5xx responses count against the breaker.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	op := method + " " + path

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.csrf != "" {
		req.Header.Set("X-CSRFToken", c.csrf)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", sessionCookieHeader(c.cookie, c.csrf))
	}

	entry := c.log.WithFields(logrus.Fields{"method": method, "path": path, "request_id": requestID})
	start := time.Now()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		r := response{status: resp.StatusCode, body: data}
		if resp.StatusCode >= 500 {
			return r, &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		return r, nil
	})
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			entry.WithField("status", httpErr.StatusCode).Warn("backend error")
			return nil, httpErr
		}
		entry.WithError(err).Warn("request failed")
		return nil, &TransportError{Op: op, Err: err}
	}

	r := out.(response)
	entry = entry.WithFields(logrus.Fields{"status": r.status, "duration_ms": time.Since(start).Milliseconds()})
	switch {
	case r.status == http.StatusUnauthorized:
		entry.Warn("session expired")
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case r.status < 200 || r.status >= 300:
		entry.Warn("backend rejected request")
		return nil, &HTTPError{Op: op, StatusCode: r.status, Body: strings.TrimSpace(string(r.body))}
	}
	entry.Debug("request completed")
	return r.body, nil
}

// getJSON decodes a plain (marker-less) JSON response into v.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	body, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &SoftError{Op: "GET " + path, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

// postResult posts payload and decodes a marker-bearing response.
func postResult[T any](ctx context.Context, c *Client, path string, query url.Values, payload any) (T, error) {
	body, err := c.do(ctx, http.MethodPost, path, query, payload)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeResult[T](body).Unwrap("POST " + path)
}

// sessionCookieHeader builds the Cookie header. A bare value is taken as
// the session id; a value containing '=' is used verbatim. The CSRF cookie
// is echoed so double-submit checks pass.
func sessionCookieHeader(cookie, csrf string) string {
	if !strings.Contains(cookie, "=") {
		cookie = "sessionid=" + cookie
	}
	if csrf != "" && !strings.Contains(cookie, "csrftoken=") {
		cookie += "; csrftoken=" + csrf
	}
	return cookie
}
