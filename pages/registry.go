// Package pages composes cached resources into the views the OtakuList
// client shows: anime detail, the news feed and the stats dashboard.
package pages

import (
	"context"
	"sort"

	"github.com/otakulist/otakulist/controller"
	"github.com/otakulist/otakulist/otakulist"
)

// Query carries everything a page may need to pick its resources
type Query struct {
	ID      string              // anime id
	News    otakulist.NewsQuery // news filters
	Refresh bool                // bypass stored validators
	Rating  int                 // > 0 submits a rating before loading
}

// View is a loaded page
type View interface {
	// State is the state of the page's primary resource
	State() controller.State
	// Markdown renders the view for terminal output
	Markdown() string
}

// Page defines the minimal interface every page implements
type Page interface {
	// Name returns the name of the page (e.g., "anime", "news")
	Name() string

	// Show loads the page for q
	Show(ctx context.Context, q Query) (View, error)
}

// Registry manages available pages
type Registry struct {
	pages map[string]Page
}

// NewRegistry creates a new page registry
func NewRegistry() *Registry {
	return &Registry{
		pages: make(map[string]Page),
	}
}

// Setup creates a registry with the anime, news and stats pages bound to
// api. user selects whose dashboard the stats page shows.
func Setup(api *otakulist.Client, user string) *Registry {
	registry := NewRegistry()
	registry.Register(NewAnimePage(api))
	registry.Register(NewNewsPage(api))
	registry.Register(NewStatsPage(api, user))
	return registry
}

// Register adds a page to the registry
func (r *Registry) Register(page Page) {
	r.pages[page.Name()] = page
}

// Get retrieves a page by name
func (r *Registry) Get(name string) (Page, bool) {
	page, exists := r.pages[name]
	return page, exists
}

// List returns all registered page names in alphabetical order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.pages))
	for name := range r.pages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
