package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/tinytelemetry/litclock/internal/duckdb"
	"github.com/tinytelemetry/litclock/internal/engine"
	"github.com/tinytelemetry/litclock/internal/logging"
	"github.com/tinytelemetry/litclock/internal/model"
	"github.com/tinytelemetry/litclock/internal/partition"
	"github.com/tinytelemetry/litclock/internal/prefs"
	"github.com/tinytelemetry/litclock/internal/quote"
	"github.com/tinytelemetry/litclock/internal/transition"
	"github.com/tinytelemetry/litclock/internal/tui"
)

// buildFetcher opens the configured partition source. duckdb: sources
// read straight from a local quote store.
func buildFetcher(cfg appConfig, logger *zap.Logger) (partition.Fetcher, func(), error) {
	if path, ok := strings.CutPrefix(cfg.Source, duckdbSourcePrefix); ok {
		store, err := duckdb.NewStore(path, duckdb.WithQueryTimeout(cfg.QueryTimeout), duckdb.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("open quote store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
	f, err := partition.NewFetcher(cfg.Source, &http.Client{Timeout: cfg.FetchTimeout})
	if err != nil {
		return nil, nil, err
	}
	return f, func() {}, nil
}

func newPartitionStore(cfg appConfig, logger *zap.Logger) (*partition.Store, func(), error) {
	fetcher, closeFetcher, err := buildFetcher(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	store := partition.NewStore(fetcher, partition.Config{
		Version:        cfg.DatasetVersion,
		PrefetchWindow: cfg.PrefetchWindow,
		Logger:         logger,
	})
	return store, func() {
		store.Close()
		closeFetcher()
	}, nil
}

// runTUI wires the engine to the Bubble Tea program and blocks until the
// user quits.
func runTUI(ctx context.Context, cfg appConfig, verbose bool) error {
	logger, cleanupLogger := logging.NewFileOrNop(cfg.LogPath, verbose)
	defer cleanupLogger()

	store, closeStore, err := newPartitionStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	prefStore := prefs.NewFileStore(cfg.PrefsPath, logger)
	renderer := tui.NewProgramRenderer()
	tr := transition.NewController(nil, transition.Durations{
		Cover:   cfg.TransitionCover,
		Pause:   cfg.TransitionPause,
		Uncover: cfg.TransitionUncover,
	})
	tr.OnStateChange = renderer.TransitionChanged

	eng, err := engine.New(engine.Config{
		Store:      store,
		Resolver:   quote.NewResolver(store, nil),
		Transition: tr,
		Renderer:   renderer,
		Saver:      prefStore,
		Prefs:      prefStore.Load(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	clockPage := tui.NewClockPage(ctx, eng, logger)
	statsPage := tui.NewStatsPage(ctx, tui.StatsFunc(func(ctx context.Context) (model.DatasetStats, error) {
		if err := store.LoadAll(ctx); err != nil {
			logger.Warn("loading all partitions", zap.Error(err))
		}
		return store.Stats(ctx)
	}), clockPage.Theme)
	app := tui.NewApp(clockPage, statsPage, tui.NewHelpPage(clockPage.Theme))

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	renderer.Attach(p)
	defer func() {
		renderer.Attach(nil)
		eng.Stop()
	}()

	logger.Info("clock starting", zap.String("source", cfg.Source), zap.String("version", cfg.DatasetVersion))
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
