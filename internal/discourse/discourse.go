// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package discourse is a client for the Discourse forum API, built around a
// single shared authenticated session.
//
// All watchers and scheduled jobs of the process share one session. Every
// outbound request passes through a FIFO gate that serializes requests and
// enforces a minimum interval between them, so however many bots are
// running, the forum sees one well-behaved client.
//
// The session is reference-counted: [Client.Acquire] lazily builds it on
// first use (loading persisted cookies and fetching the CSRF token), and
// [Client.Release] tears it down once the last holder is gone.
package discourse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"regexp"
	"sync"
	"time"

	"go.astrophena.name/pumpkin/internal/request"
	"go.astrophena.name/pumpkin/internal/version"
)

// Errors fatal to session construction. Neither is retried.
var (
	// ErrAuthStateMissing means the persisted cookies file could not be
	// found. Log in with a browser and export the cookies first.
	ErrAuthStateMissing = errors.New("discourse: persisted cookies not found")
	// ErrAuthTokenMissing means the CSRF token could not be located in the
	// bootstrap response, usually because the cookies have expired or the
	// site markup changed.
	ErrAuthTokenMissing = errors.New("discourse: CSRF token not found in bootstrap response")
)

var errNotAcquired = errors.New("discourse: session not acquired")

const (
	defaultMinInterval = 500 * time.Millisecond
	defaultRetryDelay  = time.Second
	uploadTimeout      = 10 * time.Second
)

var csrfRe = regexp.MustCompile(`<meta name="csrf-token" content="([^"]+)"`)

// Client talks to one Discourse instance through one shared session.
//
// The exported fields configure the client and must not be modified after
// the first call to [Client.Acquire].
type Client struct {
	// BaseURL is the root URL of the forum, without a trailing slash.
	BaseURL string
	// CookiesFile is the path to the persisted authentication cookies
	// (a JSON array of name/value pairs).
	CookiesFile string
	// MinInterval is the minimum spacing between outbound requests.
	// Defaults to 500ms.
	MinInterval time.Duration
	// UserAgent overrides the User-Agent header. Defaults to the binary's
	// version string.
	UserAgent string
	// Logger is used for warnings (rate limiting, retries). Must be set.
	Logger *slog.Logger

	// retryDelay is the sleep between 429 retries of Reply; shortened in
	// tests.
	retryDelay time.Duration

	mu   sync.Mutex
	refs int
	sess *session
}

// session is the state torn down and rebuilt across acquire/release cycles.
type session struct {
	httpc *http.Client
	csrf  string
	gate  *gate
}

// Acquire makes sure the shared session exists and registers the caller as
// one of its holders. The first caller constructs the session: persisted
// cookies are loaded (ErrAuthStateMissing if absent) and one bootstrap
// request extracts the CSRF token required for mutating calls
// (ErrAuthTokenMissing if it can't be found). Concurrent callers share the
// same session; each successful Acquire must be paired with a Release.
func (c *Client) Acquire(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		c.refs++
		return nil
	}

	sess, err := c.buildSession(ctx)
	if err != nil {
		return err
	}
	c.sess = sess
	c.refs = 1
	return nil
}

// Release drops one reference to the shared session. When the last
// reference is gone the session is closed and all shared state (cookies,
// CSRF token, the request chain) is discarded, so a later Acquire starts
// from scratch.
func (c *Client) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return
	}
	c.refs--
	if c.refs > 0 {
		return
	}
	c.sess.httpc.CloseIdleConnections()
	c.sess = nil
}

func (c *Client) buildSession(ctx context.Context) (*session, error) {
	cookies, err := loadCookies(c.CookiesFile)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("discourse: invalid base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(base, cookies)

	minInterval := c.MinInterval
	if minInterval == 0 {
		minInterval = defaultMinInterval
	}
	sess := &session{
		httpc: &http.Client{Jar: jar},
		gate:  newGate(minInterval),
	}

	// Bootstrap request: any HTML page carries the CSRF token in a meta
	// tag. Mutating calls are rejected without it.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	res, err := sess.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discourse: bootstrap request failed: %w", err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	m := csrfRe.FindSubmatch(b)
	if m == nil {
		return nil, ErrAuthTokenMissing
	}
	sess.csrf = string(m[1])

	return sess, nil
}

func loadCookies(path string) ([]*http.Cookie, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAuthStateMissing, path)
	}
	if err != nil {
		return nil, err
	}

	var stored []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &stored); err != nil {
		return nil, fmt.Errorf("discourse: malformed cookies file %s: %w", path, err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	return cookies, nil
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return version.UserAgent()
}

func (c *Client) session() (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil, errNotAcquired
	}
	return c.sess, nil
}

// do performs one request through the gate and reads the whole response.
// The turn is released on every exit path, so a failed request never stalls
// the chain. Only transport-level failures are reported as errors; status
// handling is up to the caller.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (status int, data []byte, err error) {
	sess, err := c.session()
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("X-CSRF-Token", sess.csrf)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	leave, err := sess.gate.enter(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer leave()

	res, err := sess.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	data, err = io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, data, nil
}

// getJSON performs a GET and decodes a 200 response into v. Non-200
// statuses are reported as a [request.StatusError].
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	status, data, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &request.StatusError{
			Method:     http.MethodGet,
			URL:        c.BaseURL + path,
			StatusCode: status,
			Body:       data,
		}
	}
	return json.Unmarshal(data, v)
}
