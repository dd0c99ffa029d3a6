package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/tinytelemetry/litclock/internal/dataset"
	"github.com/tinytelemetry/litclock/internal/duckdb"
	"github.com/tinytelemetry/litclock/internal/importer"
	"github.com/tinytelemetry/litclock/internal/publish"
)

const sampleDataset = `{"10:15": [{"quote_first": "The bells rang at ", "quote_time_case": "a quarter past ten", "quote_last": " and the square emptied.", "author": "Jane Doe", "title": "The Long Room"}]}`

func newTestStore(t *testing.T) *duckdb.Store {
	t.Helper()
	store, err := duckdb.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadConfig_DefaultsAndEnvFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LITCLOCK_API_PORT", "")
	os.Unsetenv("LITCLOCK_API_PORT")
	t.Setenv("LITCLOCK_DATASET_PATH", "")
	os.Unsetenv("LITCLOCK_DATASET_PATH")

	cfg, err := loadConfig("", filepath.Join(home, "missing.env"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.APIAddr != "127.0.0.1:3000" {
		t.Fatalf("APIAddr = %q, want 127.0.0.1:3000", cfg.APIAddr)
	}
	if cfg.EnvFile != "" {
		t.Fatalf("EnvFile = %q, want empty for a missing file", cfg.EnvFile)
	}
	if !cfg.WatchDataset {
		t.Fatal("watch-dataset should default on")
	}

	envFile := filepath.Join(home, ".env")
	if err := os.WriteFile(envFile, []byte("LITCLOCK_API_PORT=8089\nLITCLOCK_DATASET_PATH=~/quotes.json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("LITCLOCK_API_PORT")
		os.Unsetenv("LITCLOCK_DATASET_PATH")
	})
	cfg, err = loadConfig("", envFile)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.APIPort != 8089 || cfg.APIAddr != "127.0.0.1:8089" {
		t.Fatalf("api = %d %q, want 8089 from env file", cfg.APIPort, cfg.APIAddr)
	}
	if cfg.DatasetPath != filepath.Join(home, "quotes.json") {
		t.Fatalf("DatasetPath = %q, want expanded", cfg.DatasetPath)
	}
	if cfg.EnvFile != envFile {
		t.Fatalf("EnvFile = %q, want %q", cfg.EnvFile, envFile)
	}
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LITCLOCK_API_PORT", "70000")

	if _, err := loadConfig("", ""); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestReloader_ImportsAndPublishes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "quotes.json")
	if err := os.WriteFile(path, []byte(sampleDataset), 0644); err != nil {
		t.Fatal(err)
	}
	store := newTestStore(t)
	out := filepath.Join(dir, "site")
	pub, err := publish.NewPublisher(publish.Config{OutDir: out}, store, nil)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	r := &reloader{cfg: appConfig{DatasetPath: path}, store: store, publisher: pub, logger: zap.NewNop()}
	if err := r.initialImport(context.Background()); err != nil {
		t.Fatalf("initialImport: %v", err)
	}

	cur, err := store.CurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	m, err := dataset.ReadManifest(out)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Version != cur.Version || m.Total != 1 {
		t.Fatalf("published manifest = %+v, store version %q", m, cur.Version)
	}
}

func TestReloader_InitialImportFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"99:99": []}`), 0644); err != nil {
		t.Fatal(err)
	}

	// Empty store: the failure is fatal.
	store := newTestStore(t)
	r := &reloader{cfg: appConfig{DatasetPath: bad}, store: store, logger: zap.NewNop()}
	if err := r.initialImport(context.Background()); !errors.Is(err, importer.ErrInvalidDataset) {
		t.Fatalf("initialImport err = %v, want ErrInvalidDataset", err)
	}

	// With a previous dataset the server keeps serving it.
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(sampleDataset), 0644); err != nil {
		t.Fatal(err)
	}
	r.cfg.DatasetPath = good
	if err := r.initialImport(context.Background()); err != nil {
		t.Fatalf("initialImport good: %v", err)
	}
	r.cfg.DatasetPath = bad
	if err := r.initialImport(context.Background()); err != nil {
		t.Fatalf("initialImport with fallback: %v", err)
	}
}

func TestShortenPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := shortenPath(filepath.Join(home, "a", "b")); got != "~/a/b" {
		t.Fatalf("shortenPath = %q", got)
	}
	if got := shortenPath("/srv/x"); got != "/srv/x" {
		t.Fatalf("shortenPath = %q", got)
	}
}
