package pages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otakulist/otakulist/cache"
	"github.com/otakulist/otakulist/controller"
	"github.com/otakulist/otakulist/internal/fakeapi"
	"github.com/otakulist/otakulist/otakulist"
)

func setup(t *testing.T) (*otakulist.Client, *fakeapi.Server) {
	t.Helper()
	srv := fakeapi.New()
	t.Cleanup(srv.Close)
	api := otakulist.New(cache.NewStore(cache.NewMemoryBackend(0)), otakulist.WithBaseURL(srv.URL))
	return api, srv
}

func TestRegistry(t *testing.T) {
	api, _ := setup(t)
	registry := Setup(api, "mika")

	assert.Equal(t, []string{"anime", "news", "stats"}, registry.List())

	page, ok := registry.Get("anime")
	require.True(t, ok)
	assert.Equal(t, "anime", page.Name())

	_, ok = registry.Get("forum")
	assert.False(t, ok)
}

func TestAnimePageLoad(t *testing.T) {
	ctx := context.Background()
	api, srv := setup(t)
	page := NewAnimePage(api)

	first := page.Load(ctx, "42")
	assert.Equal(t, controller.Loaded, first.Detail.State)
	assert.Equal(t, controller.Loaded, first.Characters.State)
	assert.Equal(t, controller.Loaded, first.Recommendations.State)
	assert.Equal(t, controller.Loaded, first.State())

	second := page.Load(ctx, "42")
	assert.Equal(t, controller.LoadedFromCache, second.Detail.State)
	assert.Equal(t, controller.LoadedFromCache, second.Characters.State)
	assert.Equal(t, controller.LoadedFromCache, second.Recommendations.State)

	for _, path := range []string{"/api/anime/42", "/api/anime/42/characters", "/api/anime/42/recommendations"} {
		reqs := srv.RequestsTo(path)
		require.Len(t, reqs, 2, path)
		assert.Empty(t, reqs[0].IfNoneMatch, path)
		assert.Equal(t, srv.ETag(path), reqs[1].IfNoneMatch, path)
	}

	md := second.Markdown()
	assert.Contains(t, md, "Title: Frieren")
	assert.Contains(t, md, "Genres: Adventure, Fantasy")
	assert.Contains(t, md, "- Fern (Main)")
	assert.Contains(t, md, "- Mushishi (8.7)")
	assert.Contains(t, md, "_Detail: cached_")
}

func TestAnimePageIndependentResources(t *testing.T) {
	ctx := context.Background()
	api, srv := setup(t)
	page := NewAnimePage(api)
	page.Load(ctx, "42")

	srv.Set("/api/anime/42/characters", []map[string]any{{"id": 3, "name": "Stark", "role": "Main"}})

	view := page.Load(ctx, "42")
	assert.Equal(t, controller.LoadedFromCache, view.Detail.State)
	assert.Equal(t, controller.Loaded, view.Characters.State)
	require.Len(t, view.Characters.Data, 1)
	assert.Equal(t, "Stark", view.Characters.Data[0].Name)
}

func TestAnimePageOffline(t *testing.T) {
	ctx := context.Background()
	api, srv := setup(t)
	page := NewAnimePage(api)
	page.Load(ctx, "42")

	srv.SetDown(true)
	view := page.Load(ctx, "42")

	assert.Equal(t, controller.LoadedFromCache, view.Detail.State)
	assert.Error(t, view.Detail.Err)
	assert.Equal(t, "Frieren", view.Detail.Data.Title)
	assert.Contains(t, view.Markdown(), "showing cached copy")
}

func TestAnimePageUnknownID(t *testing.T) {
	api, _ := setup(t)

	view := NewAnimePage(api).Load(context.Background(), "999")

	assert.Equal(t, controller.Error, view.State())
	assert.Contains(t, view.Markdown(), "Detail unavailable")
}

func TestAnimePageRefresh(t *testing.T) {
	ctx := context.Background()
	api, srv := setup(t)
	page := NewAnimePage(api)
	page.Load(ctx, "42")

	view := page.Refresh(ctx, "42")
	assert.Equal(t, controller.Loaded, view.Detail.State)

	reqs := srv.RequestsTo("/api/anime/42")
	last := reqs[len(reqs)-1]
	assert.Empty(t, last.IfNoneMatch)
	assert.Equal(t, "no-cache", last.CacheControl)
	assert.Equal(t, "no-cache", last.Pragma)
}

func TestAnimePageRate(t *testing.T) {
	ctx := context.Background()
	api, srv := setup(t)
	page := NewAnimePage(api)
	page.Load(ctx, "42")
	before := srv.ETag("/api/anime/42")

	view, err := page.Rate(ctx, "42", 9)
	require.NoError(t, err)

	require.Equal(t, controller.Loaded, view.Detail.State)
	require.NotNil(t, view.Detail.Data.UserRating)
	assert.Equal(t, 9, *view.Detail.Data.UserRating)
	assert.Contains(t, view.Markdown(), "Your rating: 9")

	reqs := srv.RequestsTo("/api/anime/42")
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[1].IfNoneMatch, "refetch after rating bypasses the old validator")
	assert.Equal(t, "no-cache", reqs[1].CacheControl)

	assert.Len(t, srv.RequestsTo("/api/anime/42/characters"), 1, "rating leaves characters alone")

	store := api.Store()
	after := store.Token(ctx, "anime_42_etag")
	assert.NotEqual(t, before, after)
	assert.Equal(t, srv.ETag("/api/anime/42"), after)
}

func TestAnimePageRateFailure(t *testing.T) {
	ctx := context.Background()
	api, srv := setup(t)
	page := NewAnimePage(api)
	page.Load(ctx, "42")

	srv.SetDown(true)
	_, err := page.Rate(ctx, "42", 9)
	require.Error(t, err)

	assert.NotNil(t, api.Store().Read(ctx, "anime_42"), "a failed rating keeps the cached detail")
}

func TestAnimePageShow(t *testing.T) {
	ctx := context.Background()
	api, _ := setup(t)
	page := NewAnimePage(api)

	_, err := page.Show(ctx, Query{})
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = page.Show(ctx, Query{ID: "42", Rating: 11})
	assert.ErrorIs(t, err, otakulist.ErrInvalidScore)

	view, err := page.Show(ctx, Query{ID: "42"})
	require.NoError(t, err)
	assert.Equal(t, controller.Loaded, view.State())
}

func TestAnimePageClose(t *testing.T) {
	ctx := context.Background()
	api, srv := setup(t)
	page := NewAnimePage(api)
	page.Load(ctx, "42")

	page.Close("42")

	// a closed page starts over from the shared cache
	view := page.Load(ctx, "42")
	assert.Equal(t, controller.LoadedFromCache, view.Detail.State)
	assert.Len(t, srv.RequestsTo("/api/anime/42"), 2)
}

func TestNewsPage(t *testing.T) {
	ctx := context.Background()
	api, srv := setup(t)
	page := NewNewsPage(api)

	first := page.Load(ctx, otakulist.NewsQuery{}, false)
	require.Equal(t, controller.Loaded, first.State())
	assert.Contains(t, first.Markdown(), "**Season 2 announced** (ann) Mar 1, 2026")
	assert.Contains(t, first.Markdown(), "Page 1 of 3")

	again := page.Load(ctx, otakulist.NewsQuery{Category: "all", Source: "all", Page: 1}, false)
	assert.Equal(t, controller.LoadedFromCache, again.State(), "defaults share one cache entry")

	other := page.Load(ctx, otakulist.NewsQuery{Page: 2}, false)
	assert.Equal(t, controller.Loaded, other.State(), "another page is another entry")

	reqs := srv.RequestsTo("/api/news")
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[2].IfNoneMatch)
	assert.Equal(t, "category=all&page=2&source=all", reqs[2].Query)

	refreshed := page.Load(ctx, otakulist.NewsQuery{}, true)
	assert.Equal(t, controller.Loaded, refreshed.State())
}

func TestStatsPage(t *testing.T) {
	ctx := context.Background()
	api, srv := setup(t)
	page := NewStatsPage(api, "mika")

	first := page.Load(ctx)
	require.Equal(t, controller.Loaded, first.State())
	assert.Equal(t, controller.Loaded, first.Achievements.State)
	assert.Equal(t, 120, first.Stats.Data.Completed)

	md := first.Markdown()
	assert.Contains(t, md, "## Stats for mika")
	assert.Contains(t, md, "Episodes: 2400 (40d 0h)")
	assert.Contains(t, md, "- [x] Centurion")
	assert.Contains(t, md, "- [ ] Marathoner (2400/5000)")

	second := page.Load(ctx)
	assert.Equal(t, controller.LoadedFromCache, second.State())
	assert.Equal(t, controller.LoadedFromCache, second.Achievements.State)

	refreshed := page.Refresh(ctx)
	assert.Equal(t, controller.Loaded, refreshed.State())
	assert.Equal(t, controller.Loaded, refreshed.Achievements.State)
	for _, path := range []string{"/api/users/mika/stats", "/api/users/mika/achievements"} {
		reqs := srv.RequestsTo(path)
		require.Len(t, reqs, 3, path)
		assert.Equal(t, "no-cache", reqs[2].CacheControl, path)
	}
}

func TestStatsPageMissingUser(t *testing.T) {
	api, _ := setup(t)

	_, err := NewStatsPage(api, "").Show(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "0h 45m", formatMinutes(45))
	assert.Equal(t, "2h 5m", formatMinutes(125))
	assert.Equal(t, "1d 2h", formatMinutes(26*60+30))
}
