package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/otakulist/otakulist/controller"
	"github.com/otakulist/otakulist/otakulist"
)

// ErrMissingID is returned when a page needs an id and got none
var ErrMissingID = errors.New("anime id required")

// AnimePage shows an anime's detail, characters and recommendations. The
// three resources are cached and revalidated independently.
type AnimePage struct {
	api *otakulist.Client

	mu   sync.Mutex
	byID map[string]*animeResources
}

type animeResources struct {
	detail          *controller.Resource[otakulist.Anime]
	characters      *controller.Resource[[]otakulist.Character]
	recommendations *controller.Resource[[]otakulist.Recommendation]
}

// AnimeView is a loaded anime page
type AnimeView struct {
	ID              string                                          `json:"id"`
	Detail          controller.Snapshot[otakulist.Anime]            `json:"detail"`
	Characters      controller.Snapshot[[]otakulist.Character]      `json:"characters"`
	Recommendations controller.Snapshot[[]otakulist.Recommendation] `json:"recommendations"`
}

func NewAnimePage(api *otakulist.Client) *AnimePage {
	return &AnimePage{
		api:  api,
		byID: make(map[string]*animeResources),
	}
}

func (p *AnimePage) Name() string {
	return "anime"
}

// Show loads the page, first submitting q.Rating when set
func (p *AnimePage) Show(ctx context.Context, q Query) (View, error) {
	if q.ID == "" {
		return nil, ErrMissingID
	}
	if q.Rating > 0 {
		return p.Rate(ctx, q.ID, q.Rating)
	}
	if q.Refresh {
		return p.Refresh(ctx, q.ID), nil
	}
	return p.Load(ctx, q.ID), nil
}

// Load revalidates all three resources in parallel
func (p *AnimePage) Load(ctx context.Context, id string) *AnimeView {
	return p.each(ctx, id, false)
}

// Refresh force-refreshes all three resources in parallel
func (p *AnimePage) Refresh(ctx context.Context, id string) *AnimeView {
	return p.each(ctx, id, true)
}

// Rate submits a rating, then drops the cached detail and refetches it so
// the new average shows up. Characters and recommendations are untouched.
func (p *AnimePage) Rate(ctx context.Context, id string, score int) (*AnimeView, error) {
	if _, err := p.api.SubmitRating(ctx, id, score); err != nil {
		return nil, fmt.Errorf("rate anime %s: %w", id, err)
	}

	r := p.resources(id)
	r.detail.Invalidate(ctx)
	return p.view(id, r), nil
}

// Close discards the resources of id; loads still in flight for it are
// dropped
func (p *AnimePage) Close(id string) {
	p.mu.Lock()
	r, ok := p.byID[id]
	delete(p.byID, id)
	p.mu.Unlock()

	if ok {
		r.detail.Close()
		r.characters.Close()
		r.recommendations.Close()
	}
}

func (p *AnimePage) each(ctx context.Context, id string, force bool) *AnimeView {
	r := p.resources(id)

	var g errgroup.Group
	g.Go(func() error { runResource(ctx, r.detail, force); return nil })
	g.Go(func() error { runResource(ctx, r.characters, force); return nil })
	g.Go(func() error { runResource(ctx, r.recommendations, force); return nil })
	_ = g.Wait()

	return p.view(id, r)
}

func (p *AnimePage) resources(id string) *animeResources {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.byID[id]; ok {
		return r
	}
	r := &animeResources{
		detail:          otakulist.NewResource[otakulist.Anime](p.api, p.api.Anime(id), nil),
		characters:      otakulist.NewResource[[]otakulist.Character](p.api, p.api.Characters(id), nil),
		recommendations: otakulist.NewResource[[]otakulist.Recommendation](p.api, p.api.Recommendations(id), nil),
	}
	p.byID[id] = r
	return r
}

func (p *AnimePage) view(id string, r *animeResources) *AnimeView {
	return &AnimeView{
		ID:              id,
		Detail:          r.detail.Snapshot(),
		Characters:      r.characters.Snapshot(),
		Recommendations: r.recommendations.Snapshot(),
	}
}

func (v *AnimeView) State() controller.State {
	return v.Detail.State
}

// Markdown generates the terminal output for an anime page
func (v *AnimeView) Markdown() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("## Anime %s\n", v.ID))
	writeStatus(&b, "Detail", v.Detail.State, v.Detail.Err)

	if v.Detail.HasData {
		a := v.Detail.Data
		b.WriteString(fmt.Sprintf("Title: %s\n", a.Title))
		if a.TitleJapanese != "" {
			b.WriteString(fmt.Sprintf("Japanese: %s\n", a.TitleJapanese))
		}
		b.WriteString(fmt.Sprintf("Status: %s, %d episodes\n", a.Status, a.Episodes))
		if len(a.Genres) > 0 {
			b.WriteString(fmt.Sprintf("Genres: %s\n", strings.Join(a.Genres, ", ")))
		}
		b.WriteString(fmt.Sprintf("Score: %.2f (%d ratings)\n", a.Score, a.RatingCount))
		if a.UserRating != nil {
			b.WriteString(fmt.Sprintf("Your rating: %d\n", *a.UserRating))
		}
		if a.Synopsis != "" {
			b.WriteString("\n" + a.Synopsis + "\n")
		}
	}

	b.WriteString("\n### Characters\n")
	writeStatus(&b, "Characters", v.Characters.State, v.Characters.Err)
	for _, c := range v.Characters.Data {
		b.WriteString(fmt.Sprintf("- %s (%s)\n", c.Name, c.Role))
	}

	b.WriteString("\n### Recommendations\n")
	writeStatus(&b, "Recommendations", v.Recommendations.State, v.Recommendations.Err)
	for _, r := range v.Recommendations.Data {
		b.WriteString(fmt.Sprintf("- %s (%.1f)\n", r.Title, r.Score))
	}

	return b.String()
}
