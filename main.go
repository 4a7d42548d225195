package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/otakulist/otakulist/cache"
	"github.com/otakulist/otakulist/controller"
	"github.com/otakulist/otakulist/internal/config"
	"github.com/otakulist/otakulist/internal/logging"
	"github.com/otakulist/otakulist/otakulist"
	"github.com/otakulist/otakulist/pages"
)

const version = "v0.1.0"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type cliFlags struct {
	refresh bool
	json    bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	var flags cliFlags

	root := &cobra.Command{
		Use:          "otakulist",
		Short:        "Browse OtakuList with a revalidating local cache",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVar(&flags.refresh, "refresh", false, "ignore cached validators and refetch")
	root.PersistentFlags().BoolVar(&flags.json, "json", false, "print the view as JSON")

	var rating int
	animeCmd := &cobra.Command{
		Use:   "anime <id>",
		Short: "Show an anime with its characters and recommendations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(cmd, flags, "", "anime", pages.Query{ID: args[0], Rating: rating})
		},
	}
	animeCmd.Flags().IntVar(&rating, "rate", 0, fmt.Sprintf("submit a rating (%d-%d) before showing", otakulist.MinScore, otakulist.MaxScore))

	var news otakulist.NewsQuery
	newsCmd := &cobra.Command{
		Use:   "news",
		Short: "Show the news feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(cmd, flags, "", "news", pages.Query{News: news})
		},
	}
	newsCmd.Flags().StringVar(&news.Category, "category", "all", "news category")
	newsCmd.Flags().StringVar(&news.Source, "source", "all", "news source")
	newsCmd.Flags().IntVar(&news.Page, "page", 1, "page number")
	newsCmd.Flags().StringVar(&news.Query, "query", "", "search text")

	var user string
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show watch statistics and achievements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(cmd, flags, user, "stats", pages.Query{})
		},
	}
	statsCmd.Flags().StringVar(&user, "user", "", "user to show (defaults to OTAKULIST_USER)")

	var clearAll bool
	clearCmd := &cobra.Command{
		Use:   "clear <resource> [discriminator...]",
		Short: "Drop a cached payload and its validator, e.g. clear anime 42",
		Args: func(cmd *cobra.Command, args []string) error {
			if clearAll {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearAll {
				return runPurge(cmd)
			}
			return runClear(cmd, cache.KeyFor(args[0], args[1:]...))
		},
	}
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "drop every cached payload and validator")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "OtakuList %s\n", version)
		},
	}

	root.AddCommand(animeCmd, newsCmd, statsCmd, clearCmd, versionCmd)
	return root
}

// session is everything one CLI invocation needs
type session struct {
	cfg   *config.Config
	api   *otakulist.Client
	close func() error
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// the CLI logs to stderr so stdout stays clean for the view
	logger := logging.NewWriter(os.Stderr, cfg.LogLevel)

	backend, closeBackend, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		return nil, err
	}
	store := cache.NewStore(backend, cache.WithLogger(logger))

	api := otakulist.New(store,
		otakulist.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		otakulist.WithBaseURL(cfg.API.URL),
		otakulist.WithToken(cfg.API.Token),
		otakulist.WithLogger(logger),
		otakulist.WithCoalescing(cfg.API.Coalesce),
	)
	return &session{cfg: cfg, api: api, close: closeBackend}, nil
}

// runPage loads a page and prints it. The command fails when the page's
// primary resource could not be shown at all.
func runPage(cmd *cobra.Command, flags cliFlags, user, name string, q pages.Query) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	if user == "" {
		user = s.cfg.API.User
	}
	registry := pages.Setup(s.api, user)

	page, ok := registry.Get(name)
	if !ok {
		return fmt.Errorf("page '%s' not found. Available pages: %v", name, registry.List())
	}

	q.Refresh = flags.refresh
	view, err := page.Show(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to show %s: %w", name, err)
	}

	out := cmd.OutOrStdout()
	if flags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, view.Markdown())
	}

	if view.State() == controller.Error {
		return fmt.Errorf("%s could not be loaded", name)
	}
	return nil
}

func runClear(cmd *cobra.Command, key cache.Key) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	s.api.Store().Invalidate(ctx, key)
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", key)
	return nil
}

func runPurge(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	if err := s.api.Store().Purge(ctx); err != nil {
		return fmt.Errorf("clear %s cache: %w", s.cfg.Cache.Backend, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cleared all cached resources")
	return nil
}
