package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/otakulist/otakulist/controller"
	"github.com/otakulist/otakulist/otakulist"
)

// ErrMissingUser is returned when the stats page has no user to show
var ErrMissingUser = errors.New("user required")

// StatsPage is the dashboard of one user: watch statistics and
// achievements, loaded side by side
type StatsPage struct {
	api  *otakulist.Client
	user string

	stats        *controller.Resource[otakulist.Stats]
	achievements *controller.Resource[[]otakulist.Achievement]
}

type StatsView struct {
	User         string                                       `json:"user"`
	Stats        controller.Snapshot[otakulist.Stats]         `json:"stats"`
	Achievements controller.Snapshot[[]otakulist.Achievement] `json:"achievements"`
}

func NewStatsPage(api *otakulist.Client, user string) *StatsPage {
	p := &StatsPage{api: api, user: user}
	if user != "" {
		p.stats = otakulist.NewResource[otakulist.Stats](api, api.Stats(user), nil)
		p.achievements = otakulist.NewResource[[]otakulist.Achievement](api, api.Achievements(user), nil)
	}
	return p
}

func (p *StatsPage) Name() string {
	return "stats"
}

func (p *StatsPage) Show(ctx context.Context, q Query) (View, error) {
	if p.user == "" {
		return nil, ErrMissingUser
	}
	if q.Refresh {
		return p.Refresh(ctx), nil
	}
	return p.Load(ctx), nil
}

// Load revalidates stats and achievements in parallel
func (p *StatsPage) Load(ctx context.Context) *StatsView {
	return p.both(ctx, false)
}

// Refresh bypasses the stored validators of both resources
func (p *StatsPage) Refresh(ctx context.Context) *StatsView {
	return p.both(ctx, true)
}

// Close drops loads still in flight
func (p *StatsPage) Close() {
	if p.stats == nil {
		return
	}
	p.stats.Close()
	p.achievements.Close()
}

func (p *StatsPage) both(ctx context.Context, force bool) *StatsView {
	var g errgroup.Group
	g.Go(func() error { runResource(ctx, p.stats, force); return nil })
	g.Go(func() error { runResource(ctx, p.achievements, force); return nil })
	_ = g.Wait()

	return &StatsView{
		User:         p.user,
		Stats:        p.stats.Snapshot(),
		Achievements: p.achievements.Snapshot(),
	}
}

func (v *StatsView) State() controller.State {
	return v.Stats.State
}

func (v *StatsView) Markdown() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("## Stats for %s\n", v.User))
	writeStatus(&b, "Stats", v.Stats.State, v.Stats.Err)
	if v.Stats.HasData {
		s := v.Stats.Data
		b.WriteString(fmt.Sprintf("Watching: %d | Completed: %d | On hold: %d | Dropped: %d | Planned: %d\n",
			s.Watching, s.Completed, s.OnHold, s.Dropped, s.PlanToWatch))
		b.WriteString(fmt.Sprintf("Episodes: %d (%s)\n", s.EpisodesWatched, formatMinutes(s.MinutesWatched)))
		b.WriteString(fmt.Sprintf("Mean score: %.2f\n", s.MeanScore))
	}

	b.WriteString("\n### Achievements\n")
	writeStatus(&b, "Achievements", v.Achievements.State, v.Achievements.Err)
	for _, a := range v.Achievements.Data {
		if a.Unlocked() {
			b.WriteString(fmt.Sprintf("- [x] %s, unlocked %s\n", a.Name, a.UnlockedAt.Format("Jan 2, 2006")))
			continue
		}
		b.WriteString(fmt.Sprintf("- [ ] %s (%d/%d)\n", a.Name, a.Progress, a.Goal))
	}
	return b.String()
}

func formatMinutes(m int) string {
	days := m / (60 * 24)
	hours := (m / 60) % 24
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dh %dm", hours, m%60)
}
