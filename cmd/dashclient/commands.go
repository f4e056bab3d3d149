package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/dashclient/internal/api"
	"github.com/odyssey-erp/dashclient/internal/app"
	"github.com/odyssey-erp/dashclient/internal/console"
	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/filters"
	"github.com/odyssey-erp/dashclient/internal/observability"
	"github.com/odyssey-erp/dashclient/internal/page"
	"github.com/odyssey-erp/dashclient/internal/platform/cache"
	"github.com/odyssey-erp/dashclient/internal/stub"
	"github.com/odyssey-erp/dashclient/internal/widget"
)

type rootOptions struct {
	baseURL string
	prefix  string
	noColor bool
}

// runtime bundles what every client command needs.
type runtime struct {
	cfg      *app.Config
	logger   *slog.Logger
	client   *api.Client
	fetcher  widget.Fetcher
	cached   *api.CachedFetcher
	codec    filters.Codec
	renderer *console.Renderer
	closers  []func() error
}

func (rt *runtime) Close() {
	for _, closeFn := range rt.closers {
		if err := closeFn(); err != nil {
			rt.logger.Warn("close", slog.Any("error", err))
		}
	}
}

func loadConfig(opts *rootOptions) (*app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.baseURL, "/")
	}
	if opts.prefix != "" {
		cfg.PathPrefix = dashboard.NormalizePrefix(opts.prefix)
	}
	return cfg, nil
}

func newRuntime(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg)

	client, err := api.NewClient(cfg.BaseURL,
		api.WithPathPrefix(cfg.PathPrefix),
		api.WithLogger(logger),
		api.WithRetryMax(cfg.RetryMax),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithPageLimit(cfg.PageLimit),
	)
	if err != nil {
		return nil, err
	}

	renderOpts := []console.Option{}
	if opts.noColor {
		renderOpts = append(renderOpts, console.WithColor(false))
	}
	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		fetcher:  client,
		codec:    filters.Codec{Location: cfg.Location()},
		renderer: console.New(cmd.OutOrStdout(), renderOpts...),
	}

	if cfg.RedisAddr != "" && !app.InTestMode() {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("widget cache disabled", slog.Any("error", err))
			return rt, nil
		}
		rt.closers = append(rt.closers, redisClient.Close)
		rt.cached = api.NewCachedFetcher(client, cache.NewStore(redisClient, cfg.CacheTTL, ""), logger)
		rt.fetcher = rt.cached
	}
	return rt, nil
}

// NewRootCmd builds the dashclient command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "dashclient",
		Short:         "Browse a config-driven admin dashboard from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "dashboard server url (overrides DASH_BASE_URL)")
	root.PersistentFlags().StringVar(&opts.prefix, "prefix", "", "deployment path prefix (overrides DASH_PATH_PREFIX)")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newMenuCmd(opts),
		newPageCmd(opts),
		newWidgetCmd(opts),
		newCacheCmd(opts),
		newStubCmd(opts),
	)
	return root
}

func newMenuCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Print the navigation menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg, err := rt.client.FetchConfig(ctx)
			if err != nil {
				return err
			}
			rt.renderer.Menu(cfg.Title, dashboard.BuildMenu(cfg.Menu))
			return nil
		},
	}
}

func newPageCmd(opts *rootOptions) *cobra.Command {
	var (
		query string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "page <slug>",
		Short: "Load every widget of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg, err := rt.client.FetchConfig(ctx)
			if err != nil {
				return err
			}
			pg, ok := cfg.FindPage(args[0])
			if !ok {
				return fmt.Errorf("page %q not found", args[0])
			}

			loader := page.NewLoader(pg, rt.fetcher, widget.NewHistory(query), rt.logger, widget.WithCodec(rt.codec))
			if err := loader.Sync(ctx); err != nil {
				return err
			}
			rt.renderer.Page(pg, loader.Views(), loader.Skipped())
			if !watch {
				return nil
			}
			if rt.cached == nil {
				return errors.New("--watch needs the widget cache, set REDIS_ADDR")
			}
			return watchPage(ctx, rt, pg, loader)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "URL query the page is opened with")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload and print the page again whenever the widget cache is invalidated")
	return cmd
}

// watchPage reprints the page after every cache invalidation until
// interrupted.
func watchPage(ctx context.Context, rt *runtime, pg dashboard.Page, loader *page.Loader) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	invalidated := make(chan struct{}, 1)
	err := rt.cached.Watch(ctx, func() {
		select {
		case invalidated <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-invalidated:
			if err := loader.Reload(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			rt.renderer.Page(pg, loader.Views(), loader.Skipped())
		}
	}
}

type widgetOptions struct {
	query   string
	filters []string
	reset   bool
	more    int
}

func newWidgetCmd(opts *rootOptions) *cobra.Command {
	wopts := &widgetOptions{}
	cmd := &cobra.Command{
		Use:   "widget <id>",
		Short: "Load one widget, optionally applying filters and loading more pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runWidget(ctx, cmd, rt, args[0], wopts)
		},
	}
	cmd.Flags().StringVarP(&wopts.query, "query", "q", "", "URL query the widget is opened with")
	cmd.Flags().StringArrayVarP(&wopts.filters, "filter", "f", nil, "filter to apply as id[.op]=value, repeatable")
	cmd.Flags().BoolVar(&wopts.reset, "reset", false, "reset all filters before applying --filter")
	cmd.Flags().IntVar(&wopts.more, "more", 0, "number of extra pages to load")
	return cmd
}

func runWidget(ctx context.Context, cmd *cobra.Command, rt *runtime, id string, wopts *widgetOptions) error {
	cfg, err := rt.client.FetchConfig(ctx)
	if err != nil {
		return err
	}
	w, ok := cfg.FindWidget(id)
	if !ok {
		return fmt.Errorf("widget %q not found", id)
	}

	nav := widget.NewHistory(wopts.query)
	ctrl := widget.New(w, rt.fetcher, nav, widget.WithLogger(rt.logger), widget.WithCodec(rt.codec))
	if err := ctrl.Sync(ctx); err != nil && !widget.IsStale(err) {
		rt.logger.Warn("initial load failed", slog.String("widget", id), slog.Any("error", err))
	}

	if wopts.reset {
		if err := ctrl.Reset(ctx); err != nil && !widget.IsStale(err) {
			rt.logger.Warn("reset failed", slog.String("widget", id), slog.Any("error", err))
		}
	}
	if len(wopts.filters) > 0 {
		draft, err := draftFromFlags(ctrl.Draft(), w.Filters(), wopts.filters)
		if err != nil {
			return err
		}
		ctrl.SetDraft(draft)
		if err := ctrl.Apply(ctx); err != nil && !widget.IsStale(err) {
			rt.logger.Warn("apply failed", slog.String("widget", id), slog.Any("error", err))
		}
	}

	for i := 0; i < wopts.more && ctrl.View().CanLoadMore; i++ {
		if err := ctrl.LoadMore(ctx); err != nil && !widget.IsStale(err) {
			break
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "URL: ?%s\n", nav.Location())
	rt.renderer.Filters(w.Filters(), ctrl.Draft())
	fmt.Fprintln(out)
	rt.renderer.Widget(ctrl.View())
	return nil
}

// draftFromFlags applies id[.op]=value flags to draft. Repeated keys add
// values in order.
func draftFromFlags(draft filters.State, specs []dashboard.FilterSpec, flags []string) (filters.State, error) {
	known := make(map[string]bool, len(specs))
	for _, spec := range specs {
		known[spec.ID] = true
	}
	values := map[string][]string{}
	var order []string
	for _, flag := range flags {
		key, value, ok := strings.Cut(flag, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q: expected id[.op]=value", flag)
		}
		id, op := filters.SplitKey(key)
		if !known[id] {
			id, op = key, filters.Operator{}
		}
		if !known[id] {
			return nil, fmt.Errorf("filter %q: unknown filter id", flag)
		}
		if op.IsSet() {
			draft = draft.WithOperator(id, op)
		}
		if _, seen := values[id]; !seen {
			order = append(order, id)
		}
		values[id] = append(values[id], value)
	}
	for _, id := range order {
		draft = draft.WithValues(id, values[id]...)
	}
	return draft, nil
}

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the widget response cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate",
		Short: "Drop every cached widget page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.cached == nil {
				return errors.New("widget cache is not configured, set REDIS_ADDR")
			}
			if err := rt.cached.Invalidate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "widget cache invalidated")
			return nil
		},
	})
	return cmd
}

func newStubCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve fixture data on the dashboard API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.StubAddr = addr
			}
			logger := app.NewLogger(cfg)

			fixture := stub.DefaultFixture()
			if cfg.StubFixture != "" {
				if fixture, err = stub.LoadFixture(cfg.StubFixture); err != nil {
					return err
				}
			}
			fixture.Config.PathPrefix = cfg.PathPrefix

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var redisClient *redis.Client
			if cfg.RedisAddr != "" {
				if redisClient, err = cache.New(ctx, cfg.RedisAddr); err != nil {
					logger.Warn("cache invalidation disabled", slog.Any("error", err))
				} else {
					defer redisClient.Close()
				}
			}

			router := app.NewRouter(app.RouterParams{
				Logger:      logger,
				Config:      cfg,
				StubHandler: stub.NewHandler(fixture, logger),
				Metrics:     observability.NewMetrics(),
			})
			server := &http.Server{
				Addr:              cfg.StubAddr,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				logger.Info("starting stub server", slog.String("addr", cfg.StubAddr), slog.String("prefix", cfg.PathPrefix))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("stub server", slog.Any("error", err))
					stop()
				}
			}()

			// A restarted stub serves fresh data, so clients drop their cached pages.
			if redisClient != nil {
				store := cache.NewStore(redisClient, cfg.CacheTTL, "")
				if _, err := store.Bump(ctx); err != nil {
					logger.Warn("bump widget cache", slog.Any("error", err))
				}
			}

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides STUB_ADDR)")
	return cmd
}
