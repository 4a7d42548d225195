package pages

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otakulist/otakulist/cache"
	"github.com/otakulist/otakulist/controller"
	"github.com/otakulist/otakulist/otakulist"
)

// NewsPage shows one page of the news feed. Every filter combination is
// its own cache entry.
type NewsPage struct {
	api *otakulist.Client

	mu    sync.Mutex
	feeds map[cache.Key]*controller.Resource[otakulist.NewsFeed]
}

type NewsView struct {
	Query otakulist.NewsQuery                     `json:"query"`
	Feed  controller.Snapshot[otakulist.NewsFeed] `json:"feed"`
}

func NewNewsPage(api *otakulist.Client) *NewsPage {
	return &NewsPage{
		api:   api,
		feeds: make(map[cache.Key]*controller.Resource[otakulist.NewsFeed]),
	}
}

func (p *NewsPage) Name() string {
	return "news"
}

func (p *NewsPage) Show(ctx context.Context, q Query) (View, error) {
	return p.Load(ctx, q.News, q.Refresh), nil
}

// Load fetches the feed for q, forcing a full refetch when force is set
func (p *NewsPage) Load(ctx context.Context, q otakulist.NewsQuery, force bool) *NewsView {
	r := p.resource(q)
	runResource(ctx, r, force)
	return &NewsView{Query: q, Feed: r.Snapshot()}
}

func (p *NewsPage) resource(q otakulist.NewsQuery) *controller.Resource[otakulist.NewsFeed] {
	ep := p.api.News(q)

	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.feeds[ep.Key]; ok {
		return r
	}
	r := otakulist.NewResource[otakulist.NewsFeed](p.api, ep, nil)
	p.feeds[ep.Key] = r
	return r
}

func (v *NewsView) State() controller.State {
	return v.Feed.State
}

func (v *NewsView) Markdown() string {
	var b strings.Builder

	b.WriteString("## News\n")
	writeStatus(&b, "News", v.Feed.State, v.Feed.Err)
	if !v.Feed.HasData {
		return b.String()
	}

	feed := v.Feed.Data
	if len(feed.Items) == 0 {
		b.WriteString("No news found.\n")
	}
	for _, item := range feed.Items {
		b.WriteString(fmt.Sprintf("- **%s**", item.Title))
		if item.Source != "" {
			b.WriteString(fmt.Sprintf(" (%s)", item.Source))
		}
		if !item.PublishedAt.IsZero() {
			b.WriteString(" " + item.PublishedAt.Format("Jan 2, 2006"))
		}
		b.WriteString("\n")
		if item.Summary != "" {
			b.WriteString(fmt.Sprintf("  %s\n", item.Summary))
		}
	}
	if feed.TotalPages > 0 {
		b.WriteString(fmt.Sprintf("\nPage %d of %d\n", feed.Page, feed.TotalPages))
	}
	return b.String()
}
