package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/litclock/internal/dataset"
	"github.com/tinytelemetry/litclock/internal/model"
)

const sampleDataset = `{
  "10:15": [{
    "quote_first": "The church bells rang out at ",
    "quote_time_case": "a quarter past ten",
    "quote_last": ", and the whole village turned to look.",
    "author": "Jane Doe",
    "title": "The Long Room"
  }],
  "22:40": [{
    "quote_first": "It was ",
    "quote_time_case": "22:40",
    "quote_last": " by the station clock when the last train finally left the platform.",
    "author": "John Roe",
    "title": "Night Lines"
  }]
}`

// isolate points HOME at a temp dir so no real config or prefs leak in.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"LITCLOCK_SOURCE", "LITCLOCK_DB_PATH", "LITCLOCK_PREFETCH_WINDOW"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return home
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultSource, cfg.Source)
	assert.Equal(t, model.DefaultDatasetVersion, cfg.DatasetVersion)
	assert.Equal(t, model.DefaultPrefetchWindow, cfg.PrefetchWindow)
	assert.Equal(t, model.DefaultTransitionCover, cfg.TransitionCover)
	assert.Equal(t, filepath.Join(home, ".local", "share", "litclock", "litclock.duckdb"), cfg.DBPath)
	assert.Equal(t, filepath.Join(home, ".config", "litclock", "prefs.yml"), cfg.PrefsPath)
	assert.Empty(t, cfg.ConfigPath)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "config.yml", "source: dir:~/quotes\nprefetch-window: 2m\ndataset-version: v9\n")

	t.Setenv("LITCLOCK_DATASET_VERSION", "v10")
	cfg, err := loadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "dir:~/quotes", cfg.Source)
	assert.Equal(t, 2*time.Minute, cfg.PrefetchWindow)
	assert.Equal(t, "v10", cfg.DatasetVersion, "env overrides the file")
	assert.Equal(t, path, cfg.ConfigPath)
}

func TestLoadConfig_ExpandsDuckDBSource(t *testing.T) {
	home := isolate(t)
	t.Setenv("LITCLOCK_SOURCE", "duckdb:~/q.duckdb")

	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "duckdb:"+filepath.Join(home, "q.duckdb"), cfg.Source)
}

func TestLoadConfig_Invalid(t *testing.T) {
	home := isolate(t)

	cases := map[string]string{
		"negative duration": "transition-cover: -1s\n",
		"window too large":  "prefetch-window: 2h\n",
		"empty source":      "source: \" \"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, home, strings.ReplaceAll(name, " ", "_")+".yml", body)
			_, err := loadConfig(path, nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "bad.yml", "source: [unterminated\n")
	_, err := loadConfig(path, nil)
	assert.Error(t, err)
}

func TestSplitAndNow(t *testing.T) {
	home := isolate(t)
	ds := writeFile(t, home, "quotes.json", sampleDataset)
	out := filepath.Join(home, "parts")

	stdout, err := run(t, "split", ds, out, "--version", "v1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 2 quotes")

	m, err := dataset.ReadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, "v1", m.Version)
	assert.Equal(t, 1, m.Counts["10"])

	stdout, err = run(t, "now", "--source", "dir:"+out, "--at", "10:15", "--tz", "UTC")
	require.NoError(t, err)
	assert.Contains(t, stdout, "10:15 AM")
	assert.Contains(t, stdout, "a quarter past ten")
	assert.Contains(t, stdout, "The Long Room, Jane Doe")

	stdout, err = run(t, "now", "--source", "dir:"+out, "--at", "03:00")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No quote available")
}

func TestSplit_MergesSeveralDatasets(t *testing.T) {
	home := isolate(t)
	first := writeFile(t, home, "quotes.json", sampleDataset)
	extra := `var quotes = {
  "10:15": [{
    "quote_first": "The church bells rang out at ",
    "quote_time_case": "a quarter past ten",
    "quote_last": ", and the whole village turned to look.",
    "author": "Jane Doe",
    "title": "The Long Room"
  }],
  "10:16": [{
    "quote_first": "By ",
    "quote_time_case": "sixteen minutes past ten",
    "quote_last": " the square was empty and the baker had closed his shutters.",
    "author": "Ann Poe",
    "title": "Market Day",
  }],
};`
	second := writeFile(t, home, "quotes.js", extra)
	out := filepath.Join(home, "parts")

	stdout, err := run(t, "split", first, second, out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 3 quotes")

	m, err := dataset.ReadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Counts["10"])
}

func TestNow_FallsBackToAnyFormat(t *testing.T) {
	home := isolate(t)
	ds := writeFile(t, home, "quotes.json", sampleDataset)
	out := filepath.Join(home, "parts")
	_, err := run(t, "split", ds, out)
	require.NoError(t, err)

	// Only a 24-hour quote exists for 22:40, so the 12-hour clock still
	// shows it.
	stdout, err := run(t, "now", "--source", "dir:"+out, "--at", "22:40")
	require.NoError(t, err)
	assert.Contains(t, stdout, "10:40 PM")
	assert.Contains(t, stdout, "Night Lines")
}

func TestValidate(t *testing.T) {
	home := isolate(t)
	good := writeFile(t, home, "good.json", sampleDataset)
	bad := writeFile(t, home, "bad.json", `{"25:00": [{"quote_first": "a", "quote_time_case": "b", "quote_last": "c", "author": "x", "title": "y"}]}`)

	stdout, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 quotes, 0 errors")

	stdout, err = run(t, "validate", "--quiet", bad)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, stdout, "bad-key")
	assert.NotContains(t, stdout, "warning")
}

func TestStats_File(t *testing.T) {
	home := isolate(t)
	ds := writeFile(t, home, "quotes.json", sampleDataset)

	stdout, err := run(t, "stats", ds)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total quotes:    2")
	assert.Contains(t, stdout, "Minutes covered: 2/1440")
}

func TestImportQueryPublish(t *testing.T) {
	home := isolate(t)
	ds := writeFile(t, home, "quotes.json", sampleDataset)
	db := filepath.Join(home, "q.duckdb")

	stdout, err := run(t, "import", "--db-path", db, "--version", "v3", ds)
	require.NoError(t, err)
	assert.Contains(t, stdout, "imported 2 quotes as version v3")

	stdout, err = run(t, "query", "--db-path", db, "SELECT count(*) AS n FROM quotes")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"n":2`)

	_, err = run(t, "query", "--db-path", db, "DELETE FROM quotes")
	assert.Error(t, err)

	out := filepath.Join(home, "site")
	stdout, err = run(t, "publish", "--db-path", db, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "published version v3")
	_, err = os.Stat(filepath.Join(out, "v3", "10.json"))
	require.NoError(t, err)

	// The clock can read partitions straight from the store.
	stdout, err = run(t, "now", "--source", "duckdb:"+db, "--at", "10:15")
	require.NoError(t, err)
	assert.Contains(t, stdout, "a quarter past ten")
}
