// Package rest talks to the messenger server's REST API. Every repository in
// this package shares one Client, which attaches the bearer token, refreshes
// it once on a 401 and maps failures onto the domain error taxonomy.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vedran77/pulse-messenger/internal/domain"
	"github.com/vedran77/pulse-messenger/internal/session"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const maxErrorBody = 64 << 10

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	Logger     *slog.Logger
	HTTPClient *http.Client
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	jar     *sessionJar
	session *session.Session
	limiter *rate.Limiter
	group   singleflight.Group
	timeout time.Duration
	log     *slog.Logger
}

func NewClient(sess *session.Session, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing api url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https, got %q", opts.BaseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	jar := newSessionJar()
	jar.SetCookies(refreshURL(base), sess.Cookies())
	sess.OnTeardown(jar.reset)

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	hc.Jar = jar

	return &Client{
		baseURL: base,
		http:    hc,
		jar:     jar,
		session: sess,
		limiter: rate.NewLimiter(limit, burst),
		timeout: opts.Timeout,
		log:     opts.Logger,
	}, nil
}

func (c *Client) Session() *session.Session {
	return c.session
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        any
	raw         []byte
	contentType string

	// public requests go out without a session; noRefresh ones never
	// trigger the refresh-and-retry cycle.
	public    bool
	noRefresh bool
}

func (r request) op() string {
	return r.method + " " + r.path
}

// do sends req and decodes a JSON response into out, if out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Op: "decode " + req.op(), Err: err}
	}
	return nil
}

// stream sends req and copies the response body to w.
func (c *Client) stream(ctx context.Context, req request, w io.Writer) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return &domain.TransportError{Op: "read " + req.op(), Err: err}
	}
	return nil
}

// send performs req and returns a 2xx response. A 401 triggers exactly one
// token refresh and one retry; if either is refused the session is torn
// down. A refresh cut short by ctx leaves the session alone.
func (c *Client) send(ctx context.Context, req request) (*http.Response, error) {
	if !req.public && !c.session.Active() {
		return nil, domain.ErrNotAuthenticated
	}

	token := c.session.Token()
	resp, err := c.roundTrip(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || req.public || req.noRefresh {
		return checkStatus(req, resp)
	}
	drain(resp)

	c.log.Debug("rest: unauthorized, refreshing token", "op", req.op())
	if err := c.refresh(ctx, token); err != nil {
		if interrupted(ctx, err) {
			return nil, &domain.TransportError{Op: req.op(), Err: err}
		}
		c.terminate(ctx, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionTerminated, err)
	}

	resp, err = c.roundTrip(ctx, req, c.session.Token())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_, rerr := checkStatus(req, resp)
		c.terminate(ctx, rerr)
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionTerminated, rerr)
	}
	return checkStatus(req, resp)
}

func (c *Client) roundTrip(ctx context.Context, req request, token string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.TransportError{Op: req.op(), Err: err}
	}

	body := req.raw
	contentType := req.contentType
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", req.op(), err)
		}
		body, contentType = data, "application/json"
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.method, u.String(), rdr)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", req.op(), err)
	}
	if contentType != "" {
		hr.Header.Set("Content-Type", contentType)
	}
	hr.Header.Set("Accept", "application/json")
	if token != "" && !req.public {
		hr.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(hr)
	if err != nil {
		return nil, &domain.TransportError{Op: req.op(), Err: err}
	}
	c.log.Debug("rest: request", "op", req.op(), "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// refresh obtains a new access token. Concurrent callers share one call; a
// caller whose token was already replaced returns immediately. The shared
// call runs detached from any one caller's ctx, under the client timeout.
func (c *Client) refresh(ctx context.Context, stale string) error {
	if cur := c.session.Token(); cur != "" && cur != stale {
		return nil
	}

	ch := c.group.DoChan("refresh", func() (any, error) {
		if cur := c.session.Token(); cur != "" && cur != stale {
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		var out struct {
			AccessToken string `json:"accessToken"`
			Token       string `json:"token"`
		}
		if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/refresh", noRefresh: true}, &out); err != nil {
			return nil, err
		}

		token := out.AccessToken
		if token == "" {
			token = out.Token
		}
		if token == "" {
			return nil, &domain.TransportError{Op: "POST /auth/refresh", Err: errors.New("response carries no token")}
		}
		return nil, c.session.Rotate(ctx, token, c.Cookies())
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// interrupted reports whether err came from a cancellation or timeout rather
// than from the server refusing the refresh.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) terminate(ctx context.Context, cause error) {
	c.log.Warn("rest: session terminated", "error", cause)
	if err := c.session.Teardown(context.WithoutCancel(ctx)); err != nil {
		c.log.Error("rest: clearing session", "error", err)
	}
}

// Cookies returns what the server has set for the refresh endpoint, which is
// all the session needs to survive a restart.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(refreshURL(c.baseURL))
}

func refreshURL(base *url.URL) *url.URL {
	u := *base
	u.Path = base.Path + "/auth/refresh"
	return &u
}

func checkStatus(req request, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, parseRemoteError(resp.StatusCode, body)
}

// parseRemoteError understands the error envelopes the server may use:
// {"error":{"code","message"}}, {"error":"..."}, {"message"}, problem
// details {"title","detail"}, or plain text.
func parseRemoteError(status int, body []byte) *domain.RemoteError {
	rerr := &domain.RemoteError{Status: status}

	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Title   string          `json:"title"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		rerr.Message = strings.TrimSpace(string(body))
		return rerr
	}

	if len(env.Error) > 0 {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(env.Error, &nested) == nil:
			rerr.Code, rerr.Message = nested.Code, nested.Message
		case json.Unmarshal(env.Error, &plain) == nil:
			rerr.Message = plain
		}
	}

	switch {
	case rerr.Message != "":
	case env.Message != "":
		rerr.Message = env.Message
	case env.Detail != "":
		rerr.Message = env.Detail
	default:
		rerr.Message = env.Title
	}
	return rerr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// sessionJar is a cookie jar that can be emptied when the session ends.
type sessionJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newSessionJar() *sessionJar {
	j := &sessionJar{}
	j.reset()
	return j
}

func (j *sessionJar) reset() {
	jar, _ := cookiejar.New(nil)
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}
