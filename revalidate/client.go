// Package revalidate performs conditional GET requests against JSON
// resources, using stored ETags so the server can answer 304 Not Modified
// instead of resending unchanged payloads.
package revalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// ReadFunc returns the cached payload for one resource
type ReadFunc func(ctx context.Context) (json.RawMessage, bool)

// WriteFunc stores a fresh payload for one resource
type WriteFunc func(ctx context.Context, payload json.RawMessage)

// TokenStore holds validator tokens. *cache.Store implements it.
type TokenStore interface {
	Token(ctx context.Context, etagKey string) string
	SetToken(ctx context.Context, etagKey, token string)
}

// Options controls a single Fetch
type Options struct {
	// ForceRefresh skips the stored token and asks every cache on the way
	// for a new copy
	ForceRefresh bool
	// Params are added to the URL's query string
	Params url.Values
}

// Client performs revalidating fetches
type Client struct {
	http     *http.Client
	tokens   TokenStore
	logger   zerolog.Logger
	metrics  Metrics
	coalesce bool
	group    singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l.With().Str("component", "revalidate").Logger() }
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithCoalescing makes concurrent non-forced fetches of the same resource
// share one request
func WithCoalescing() Option {
	return func(c *Client) { c.coalesce = true }
}

// New creates a client that keeps validator tokens in tokens
func New(tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		http:    http.DefaultClient,
		tokens:  tokens,
		logger:  zerolog.Nop(),
		metrics: NoopMetrics{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch GETs rawURL and reconciles the response with the cache accessed
// through readCache and writeCache. The validator token lives under
// etagKey. Fetch never returns an error directly: every failure becomes
// a Failed result.
func (c *Client) Fetch(ctx context.Context, rawURL, etagKey string, readCache ReadFunc, writeCache WriteFunc, opts Options) Result {
	if !c.coalesce || opts.ForceRefresh {
		res := c.fetch(ctx, rawURL, etagKey, readCache, writeCache, opts)
		observe(c.metrics, res.Outcome)
		return res
	}

	// The shared request belongs to no single caller: it must not be
	// canceled along with whichever caller started it. Each caller still
	// stops waiting when its own context ends.
	flightKey := etagKey + "\x00" + rawURL + "?" + opts.Params.Encode()
	ch := c.group.DoChan(flightKey, func() (any, error) {
		res := c.fetch(context.WithoutCancel(ctx), rawURL, etagKey, readCache, writeCache, opts)
		observe(c.metrics, res.Outcome)
		return res, nil
	})
	select {
	case r := <-ch:
		if r.Shared {
			c.metrics.Coalesced()
		}
		return r.Val.(Result)
	case <-ctx.Done():
		c.metrics.Failed()
		return failed(0, fmt.Errorf("GET %s: %w", rawURL, ctx.Err()))
	}
}

func (c *Client) fetch(ctx context.Context, rawURL, etagKey string, readCache ReadFunc, writeCache WriteFunc, opts Options) Result {
	u, err := url.Parse(rawURL)
	if err != nil {
		return failed(0, fmt.Errorf("parse url %q: %w", rawURL, err))
	}
	if len(opts.Params) > 0 {
		q := u.Query()
		for k, vs := range opts.Params {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return failed(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	log := c.logger.With().Str("url", u.String()).Str("etag_key", etagKey).Logger()

	conditional := false
	if opts.ForceRefresh {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	} else if etag := c.tokens.Token(ctx, etagKey); etag != "" {
		// A token without a cached body would turn a 304 into a dead end
		if _, ok := readCache(ctx); ok {
			req.Header.Set("If-None-Match", etag)
			conditional = true
		} else {
			log.Debug().Msg("stored etag has no cached payload, fetching unconditionally")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("request failed")
		return failed(0, fmt.Errorf("GET %s: %w", u.Redacted(), err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		_, _ = io.Copy(io.Discard, resp.Body)
		if opts.ForceRefresh {
			return failed(resp.StatusCode, &ServerError{StatusCode: resp.StatusCode, Message: "not modified on forced refresh"})
		}
		if _, ok := readCache(ctx); !conditional || !ok {
			log.Warn().Msg("304 without cached payload")
			return failed(resp.StatusCode, ErrNotModifiedWithoutCache)
		}
		log.Debug().Msg("not modified")
		return notModified(resp.Header.Get("ETag"))

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return failed(resp.StatusCode, fmt.Errorf("read body: %w", err))
		}
		if len(body) == 0 {
			return failed(resp.StatusCode, ErrEmptyBody)
		}
		if !gjson.ValidBytes(body) {
			return failed(resp.StatusCode, ErrInvalidBody)
		}
		if success := gjson.GetBytes(body, "success"); success.Exists() && !success.Bool() {
			msg := gjson.GetBytes(body, "message").String()
			log.Warn().Int("status", resp.StatusCode).Str("message", msg).Msg("server reported failure")
			return failed(resp.StatusCode, &ServerError{StatusCode: resp.StatusCode, Message: msg})
		}

		etag := resp.Header.Get("ETag")
		// Payload first: a token must never exist without its payload
		writeCache(ctx, body)
		c.tokens.SetToken(ctx, etagKey, etag)
		log.Debug().Int("status", resp.StatusCode).Str("etag", etag).Msg("fresh payload")
		return fresh(resp.StatusCode, body, etag)

	default:
		body, _ := io.ReadAll(resp.Body)
		msg := ""
		if gjson.ValidBytes(body) {
			msg = gjson.GetBytes(body, "message").String()
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		log.Warn().Int("status", resp.StatusCode).Str("message", msg).Msg("request rejected")
		return failed(resp.StatusCode, &ServerError{StatusCode: resp.StatusCode, Message: msg})
	}
}
