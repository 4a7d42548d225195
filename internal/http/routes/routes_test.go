package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/otakulist/otakulist/internal/config"
	"github.com/otakulist/otakulist/internal/fakeapi"
)

type harness struct {
	api *fakeapi.Server
	app *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := fakeapi.New()
	t.Cleanup(api.Close)

	sess := scs.New()
	s := New(ServerOptions{
		Sess: sess,
		Cfg: config.Config{
			API: config.APIConfig{URL: api.URL, User: "mika", Timeout: 5 * time.Second},
		},
		Logger: zerolog.Nop(),
	})
	app := httptest.NewServer(sess.LoadAndSave(s.Router))
	t.Cleanup(app.Close)

	return &harness{api: api, app: app}
}

// browser returns a client that keeps its session cookie
func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func do(t *testing.T, c *http.Client, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return resp.StatusCode, out
}

func state(t *testing.T, view map[string]any, section string) string {
	t.Helper()
	snap, ok := view[section].(map[string]any)
	require.True(t, ok, "missing %s in %v", section, view)
	s, _ := snap["state"].(string)
	return s
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.app.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestAnimeRevalidatesPerSession(t *testing.T) {
	h := newHarness(t)
	alice := browser(t)

	status, view := do(t, alice, http.MethodGet, h.app.URL+"/anime/42", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "loaded", state(t, view, "detail"))
	require.Equal(t, "loaded", state(t, view, "characters"))

	status, view = do(t, alice, http.MethodGet, h.app.URL+"/anime/42", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "loaded_from_cache", state(t, view, "detail"))

	reqs := h.api.RequestsTo("/api/anime/42")
	require.Len(t, reqs, 2)
	require.Equal(t, h.api.ETag("/api/anime/42"), reqs[1].IfNoneMatch)

	// another session has its own empty cache
	_, view = do(t, browser(t), http.MethodGet, h.app.URL+"/anime/42", "")
	require.Equal(t, "loaded", state(t, view, "detail"))
	require.Empty(t, h.api.RequestsTo("/api/anime/42")[2].IfNoneMatch)
}

func TestAnimeRefresh(t *testing.T) {
	h := newHarness(t)
	c := browser(t)
	do(t, c, http.MethodGet, h.app.URL+"/anime/42", "")

	status, view := do(t, c, http.MethodPost, h.app.URL+"/anime/42/refresh", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "loaded", state(t, view, "detail"))

	reqs := h.api.RequestsTo("/api/anime/42")
	require.Equal(t, "no-cache", reqs[len(reqs)-1].CacheControl)
}

func TestAnimeRating(t *testing.T) {
	h := newHarness(t)
	c := browser(t)
	do(t, c, http.MethodGet, h.app.URL+"/anime/42", "")

	status, view := do(t, c, http.MethodPost, h.app.URL+"/anime/42/rating", `{"score":9}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "loaded", state(t, view, "detail"))
	detail := view["detail"].(map[string]any)["data"].(map[string]any)
	require.Equal(t, float64(9), detail["user_rating"])

	// the session cache now holds the rated copy
	_, view = do(t, c, http.MethodGet, h.app.URL+"/anime/42", "")
	require.Equal(t, "loaded_from_cache", state(t, view, "detail"))
	detail = view["detail"].(map[string]any)["data"].(map[string]any)
	require.Equal(t, float64(9), detail["user_rating"])
}

func TestAnimeRatingErrors(t *testing.T) {
	h := newHarness(t)
	c := browser(t)

	status, body := do(t, c, http.MethodPost, h.app.URL+"/anime/42/rating", `{"score":11}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, body["success"])

	status, _ = do(t, c, http.MethodPost, h.app.URL+"/anime/42/rating", `not json`)
	require.Equal(t, http.StatusBadRequest, status)

	h.api.SetDown(true)
	status, body = do(t, c, http.MethodPost, h.app.URL+"/anime/42/rating", `{"score":7}`)
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "maintenance", body["message"])
}

func TestNews(t *testing.T) {
	h := newHarness(t)
	c := browser(t)

	status, view := do(t, c, http.MethodGet, h.app.URL+"/news?category=anime&page=2&q=frieren", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "loaded", state(t, view, "feed"))

	reqs := h.api.RequestsTo("/api/news")
	require.Len(t, reqs, 1)
	require.Equal(t, "category=anime&page=2&q=frieren&source=all", reqs[0].Query)

	status, _ = do(t, c, http.MethodGet, h.app.URL+"/news?page=zero", "")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	c := browser(t)

	status, view := do(t, c, http.MethodGet, h.app.URL+"/stats", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "mika", view["user"])
	require.Equal(t, "loaded", state(t, view, "stats"))
	require.Equal(t, "loaded", state(t, view, "achievements"))

	_, view = do(t, c, http.MethodGet, h.app.URL+"/stats", "")
	require.Equal(t, "loaded_from_cache", state(t, view, "stats"))

	_, view = do(t, c, http.MethodPost, h.app.URL+"/stats/refresh", "")
	require.Equal(t, "loaded", state(t, view, "stats"))
	require.Equal(t, "loaded", state(t, view, "achievements"))

	status, _ = do(t, c, http.MethodGet, h.app.URL+"/stats?user=nobody", "")
	require.Equal(t, http.StatusOK, status)
}

func TestStatsOfflineFallback(t *testing.T) {
	h := newHarness(t)
	c := browser(t)
	do(t, c, http.MethodGet, h.app.URL+"/stats", "")

	h.api.SetDown(true)
	_, view := do(t, c, http.MethodGet, h.app.URL+"/stats", "")

	stats := view["stats"].(map[string]any)
	require.Equal(t, "loaded_from_cache", stats["state"])
	require.Equal(t, true, stats["retryable"])
	require.NotEmpty(t, stats["error"])
}

func TestMetrics(t *testing.T) {
	h := newHarness(t)
	c := browser(t)
	do(t, c, http.MethodGet, h.app.URL+"/anime/42", "")
	do(t, c, http.MethodGet, h.app.URL+"/anime/42", "")

	resp, err := http.Get(h.app.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	require.Contains(t, string(body), `otakulist_fetches_total{outcome="fresh"} 3`)
	require.Contains(t, string(body), `otakulist_fetches_total{outcome="not_modified"} 3`)
}
