package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/litclock/internal/duckdb"
	"github.com/tinytelemetry/litclock/internal/httpserver"
	"github.com/tinytelemetry/litclock/internal/importer"
	"github.com/tinytelemetry/litclock/internal/logging"
	"github.com/tinytelemetry/litclock/internal/publish"
	"github.com/tinytelemetry/litclock/internal/watch"
)

// reloader imports the dataset file and republishes it when publishing is
// configured.
type reloader struct {
	cfg       appConfig
	store     *duckdb.Store
	publisher *publish.Publisher
	logger    *zap.Logger
}

func (r *reloader) reload(ctx context.Context) error {
	res, err := importer.File(ctx, r.store, r.cfg.DatasetPath, importer.Options{
		Force:  r.cfg.ForceImport,
		Logger: r.logger,
	})
	if err != nil {
		return err
	}
	if r.publisher == nil {
		return nil
	}
	ds, err := r.store.Dataset(ctx)
	if err != nil {
		return fmt.Errorf("read dataset for publish: %w", err)
	}
	if _, err := r.publisher.Publish(ctx, ds, res.Version); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// initialImport loads the dataset at startup. A failed import is fatal only
// when the store holds no previous dataset to fall back on.
func (r *reloader) initialImport(ctx context.Context) error {
	if r.cfg.DatasetPath == "" {
		return nil
	}
	err := r.reload(ctx)
	if err == nil {
		return nil
	}
	if _, verr := r.store.CurrentVersion(ctx); errors.Is(verr, duckdb.ErrNoDataset) {
		return fmt.Errorf("initial import: %w", err)
	}
	r.logger.Warn("initial import failed, serving previous dataset", zap.Error(err))
	return nil
}

// runServer starts the quote server and blocks until SIGINT/SIGTERM.
func runServer(cfg appConfig) error {
	logger, cleanupLogger, err := logging.New(logging.Config{Verbose: cfg.Verbose})
	if err != nil {
		return err
	}
	defer cleanupLogger()

	// Initialize DuckDB store
	store, err := duckdb.NewStore(cfg.DBPath, duckdb.WithQueryTimeout(cfg.QueryTimeout), duckdb.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	var publisher *publish.Publisher
	if cfg.PublishOutDir != "" {
		publisher, err = publish.NewPublisher(publish.Config{
			OutDir:         cfg.PublishOutDir,
			KeepLast:       cfg.PublishKeepLast,
			Snapshot:       cfg.PublishSnapshot,
			BucketURL:      cfg.PublishBucketURL,
			S3Endpoint:     cfg.PublishS3Endpoint,
			S3Region:       cfg.PublishS3Region,
			S3AccessKey:    cfg.PublishS3AccessKey,
			S3SecretKey:    cfg.PublishS3SecretKey,
			S3SessionToken: cfg.PublishS3SessionToken,
			S3UseSSL:       cfg.PublishS3UseSSL,
		}, store, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize publishing: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &reloader{cfg: cfg, store: store, publisher: publisher, logger: logger}
	if err := r.initialImport(ctx); err != nil {
		return err
	}

	// Trim dataset version history
	historyCleaner := duckdb.NewHistoryCleaner(store, duckdb.HistoryConfig{
		Keep:     cfg.HistoryKeep,
		Interval: cfg.HistoryInterval,
	})
	if historyCleaner != nil {
		defer historyCleaner.Stop()
	}

	apiServer := httpserver.NewServer(cfg.APIAddr, store, logger)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer apiServer.Stop()

	var watcher *watch.DatasetWatcher
	if cfg.WatchDataset && cfg.DatasetPath != "" {
		watcher, err = watch.New(cfg.DatasetPath, r.reload, watch.Config{
			Debounce: cfg.WatchDebounce,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create dataset watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch dataset: %w", err)
		}
		defer watcher.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(cfg, watcher != nil, publisher != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", zap.Error(err))
	}

	signal.Stop(sigCh)
	return nil
}

func printStartupBanner(cfg appConfig, watching, publishing bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := amber.Bold(true).Render(`
    ╦  ╦╔╦╗╔═╗╦  ╔═╗╔═╗╦╔═
    ║  ║ ║ ║  ║  ║ ║║  ╠╩╗
    ╩═╝╩ ╩ ╚═╝╩═╝╚═╝╚═╝╩ ╩`)

	status := func(on bool, label, value, off string) string {
		if on {
			return fmt.Sprintf("    %s  %-14s %s", check, label, value)
		}
		return fmt.Sprintf("    %s  %-14s %s", dot, label, dim.Render(off))
	}

	separator := dim.Render("    ─────────────────────────────────")
	lines := []string{
		"",
		logo,
		"    " + dim.Render("v"+version),
		"",
		separator,
		"",
		bold.Render("    Serving"),
		"",
		status(true, "HTTP API", amber.Render("http://"+cfg.APIAddr), ""),
		status(true, "Partitions", dim.Render("/quotes/HH.json"), ""),
		"",
		bold.Render("    Dataset"),
		"",
		status(true, "Storage", dim.Render(shortenPath(cfg.DBPath)), ""),
		status(cfg.DatasetPath != "", "Source", dim.Render(shortenPath(cfg.DatasetPath)), "none (serving stored dataset)"),
		status(watching, "Watch", dim.Render(cfg.WatchDebounce.String()+" debounce"), "disabled"),
		status(publishing, "Publish", dim.Render(shortenPath(cfg.PublishOutDir)), "disabled"),
		"",
		bold.Render("    Config"),
		"",
		status(cfg.ConfigPath != "", "Config File", dim.Render(shortenPath(cfg.ConfigPath)), "default (no file)"),
		status(cfg.EnvFile != "", "Env File", dim.Render(shortenPath(cfg.EnvFile)), "none"),
		"",
		separator,
		"",
		"    " + dim.Render("Press ") + yellow.Render("Ctrl+C") + dim.Render(" to stop"),
		"",
	}

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
