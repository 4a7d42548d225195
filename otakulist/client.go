// Package otakulist binds the OtakuList REST API to the revalidating cache
package otakulist

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

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/otakulist/otakulist/cache"
	"github.com/otakulist/otakulist/controller"
	"github.com/otakulist/otakulist/revalidate"
)

const DefaultBaseURL = "http://localhost:5000"

// Rating bounds accepted by SubmitRating
const (
	MinScore = 1
	MaxScore = 10
)

// ErrInvalidScore is returned for a rating outside MinScore..MaxScore
var ErrInvalidScore = fmt.Errorf("score must be between %d and %d", MinScore, MaxScore)

// Endpoint is one cacheable API resource
type Endpoint struct {
	Name   string
	URL    string
	Params url.Values
	Key    cache.Key
}

type Client struct {
	http    *http.Client
	baseURL *url.URL
	token   string
	store   *cache.Store
	fetcher *revalidate.Client
	logger  zerolog.Logger

	metrics  revalidate.Metrics
	coalesce bool
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

// WithToken authenticates every request with a bearer token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m revalidate.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithCoalescing shares one request between concurrent loads of the same
// resource
func WithCoalescing(enabled bool) Option {
	return func(c *Client) { c.coalesce = enabled }
}

// New creates a client whose payloads and validators live in store
func New(store *cache.Store, opts ...Option) *Client {
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
		store:   store,
		logger:  zerolog.Nop(),
		metrics: revalidate.NoopMetrics{},
	}
	for _, o := range opts {
		o(c)
	}

	if c.token != "" {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		authed := *c.http
		authed.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
			Base:   base,
		}
		c.http = &authed
	}

	fetchOpts := []revalidate.Option{
		revalidate.WithHTTPClient(c.http),
		revalidate.WithLogger(c.logger),
		revalidate.WithMetrics(c.metrics),
	}
	if c.coalesce {
		fetchOpts = append(fetchOpts, revalidate.WithCoalescing())
	}
	c.fetcher = revalidate.New(store, fetchOpts...)
	return c
}

// Store returns the cache the client reads and writes
func (c *Client) Store() *cache.Store {
	return c.store
}

// Fetcher returns the underlying revalidating client
func (c *Client) Fetcher() *revalidate.Client {
	return c.fetcher
}

// endpointURL joins already escaped path segments onto the base URL
func (c *Client) endpointURL(segments ...string) string {
	return c.baseURL.JoinPath(segments...).String()
}

// pathID escapes an id so it stays a single path segment
func pathID(id string) string {
	escaped := url.PathEscape(id)
	if escaped == "." || escaped == ".." {
		escaped = strings.ReplaceAll(escaped, ".", "%2E")
	}
	return escaped
}

func (c *Client) Anime(id string) Endpoint {
	return Endpoint{
		Name: "anime",
		URL:  c.endpointURL("api", "anime", pathID(id)),
		Key:  AnimeKey(id),
	}
}

func (c *Client) Characters(id string) Endpoint {
	return Endpoint{
		Name: "characters",
		URL:  c.endpointURL("api", "anime", pathID(id), "characters"),
		Key:  AnimeKey(id).Sub("characters"),
	}
}

func (c *Client) Recommendations(id string) Endpoint {
	return Endpoint{
		Name: "recommendations",
		URL:  c.endpointURL("api", "anime", pathID(id), "recommendations"),
		Key:  AnimeKey(id).Sub("recommendations"),
	}
}

func (c *Client) News(q NewsQuery) Endpoint {
	q = q.normalized()
	params := url.Values{}
	params.Set("category", q.Category)
	params.Set("source", q.Source)
	params.Set("page", strconv.Itoa(q.Page))
	if q.Query != "" {
		params.Set("q", q.Query)
	}
	return Endpoint{
		Name:   "news",
		URL:    c.endpointURL("api", "news"),
		Params: params,
		Key:    NewsKey(q),
	}
}

func (c *Client) Stats(user string) Endpoint {
	return Endpoint{
		Name: "stats",
		URL:  c.endpointURL("api", "users", pathID(user), "stats"),
		Key:  cache.KeyFor("stats", user),
	}
}

func (c *Client) Achievements(user string) Endpoint {
	return Endpoint{
		Name: "achievements",
		URL:  c.endpointURL("api", "users", pathID(user), "achievements"),
		Key:  cache.KeyFor("achievements", user),
	}
}

// AnimeKey is the cache key of an anime's detail payload
func AnimeKey(id string) cache.Key {
	return cache.KeyFor("anime", id)
}

// NewsKey is the cache key of one page of news
func NewsKey(q NewsQuery) cache.Key {
	q = q.normalized()
	return cache.KeyFor("news", q.Category, q.Source, strconv.Itoa(q.Page), q.Query)
}

func (q NewsQuery) normalized() NewsQuery {
	if q.Category == "" {
		q.Category = "all"
	}
	if q.Source == "" {
		q.Source = "all"
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return q
}

// NewResource builds a page controller for ep whose payload is an
// envelope around T
func NewResource[T any](c *Client, ep Endpoint, onChange func(controller.Snapshot[T])) *controller.Resource[T] {
	return controller.New(controller.Config[T]{
		Name:     ep.Name,
		URL:      ep.URL,
		Params:   ep.Params,
		Key:      ep.Key,
		Store:    c.store,
		Client:   c.fetcher,
		Decode:   DecodeData[T],
		OnChange: onChange,
		Logger:   c.logger,
	})
}

// SubmitRating rates an anime for the current user and returns the
// updated anime when the API includes it
func (c *Client) SubmitRating(ctx context.Context, id string, score int) (*Anime, error) {
	if score < MinScore || score > MaxScore {
		return nil, ErrInvalidScore
	}
	body, err := json.Marshal(map[string]int{"score": score})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpointURL("api", "anime", pathID(id), "rating"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit rating: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rating response: %w", err)
	}

	var env Envelope
	_ = json.Unmarshal(raw, &env)
	rejected := gjson.GetBytes(raw, "success").Exists() && !env.Success
	if resp.StatusCode >= 300 || rejected {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &revalidate.ServerError{StatusCode: resp.StatusCode, Message: msg}
	}

	c.logger.Info().Str("anime_id", id).Int("score", score).Msg("rating submitted")

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	var a Anime
	if err := json.Unmarshal(env.Data, &a); err != nil {
		// the rating went through; a payload we cannot read is not fatal
		c.logger.Warn().Err(err).Str("anime_id", id).Msg("unreadable rating response")
		return nil, nil
	}
	return &a, nil
}
