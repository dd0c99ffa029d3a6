package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "prefs.yml"), nil)
	assert.Equal(t, Defaults(), s.Load())
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yml")
	s := NewFileStore(path, nil)

	want := Prefs{Timezone: "Asia/Tokyo", Use24Hour: true, Animation: false, Theme: "light"}
	s.Save(want)
	assert.Equal(t, want, s.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "use-24-hour: true")
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	require.NoError(t, os.WriteFile(path, []byte("use-24-hour: true\n"), 0644))

	got := NewFileStore(path, nil).Load()
	assert.True(t, got.Use24Hour)
	assert.True(t, got.Animation, "animation default lost")
	assert.Equal(t, Defaults().Theme, got.Theme)
}

func TestLoad_MalformedDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: [unterminated\n"), 0644))

	core, logs := observer.New(zap.WarnLevel)
	got := NewFileStore(path, zap.New(core)).Load()
	assert.Equal(t, Defaults(), got)
	assert.Equal(t, 1, logs.FilterMessage("parse prefs failed, using defaults").Len())
}

func TestLoad_InvalidTimezoneFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus\ntheme: light\n"), 0644))

	got := NewFileStore(path, nil).Load()
	assert.Equal(t, Defaults().Timezone, got.Timezone)
	assert.Equal(t, "light", got.Theme)
}

func TestSave_UnwritableIsSilent(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	core, logs := observer.New(zap.WarnLevel)
	s := NewFileStore(filepath.Join(blocker, "prefs.yml"), zap.New(core))
	s.Save(Defaults())
	assert.Equal(t, 1, logs.FilterMessage("write prefs failed").Len())
}

func TestEmptyPathDisablesPersistence(t *testing.T) {
	s := NewFileStore("", nil)
	s.Save(Prefs{Theme: "light"})
	assert.Equal(t, Defaults(), s.Load())
}

// useZoneSources points detection at the given host zone and files and
// clears $TZ, restoring everything when the test ends.
func useZoneSources(t *testing.T, local *time.Location, link, file string) {
	t.Helper()
	oldLocal, oldLink, oldFile := time.Local, localtimePath, timezoneFile
	time.Local, localtimePath, timezoneFile = local, link, file
	t.Cleanup(func() {
		time.Local, localtimePath, timezoneFile = oldLocal, oldLink, oldFile
	})
	t.Setenv("TZ", "")
}

func TestSystemTimezone_PrefersTZ(t *testing.T) {
	t.Setenv("TZ", "Europe/Paris")
	assert.Equal(t, "Europe/Paris", SystemTimezone())
}

func TestSystemTimezone_ResolvesLocaltimeLink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "localtime")
	require.NoError(t, os.Symlink("/usr/share/zoneinfo/America/New_York", link))
	useZoneSources(t, time.FixedZone(LocalZone, -4*3600), link, filepath.Join(dir, "timezone"))

	assert.Equal(t, "America/New_York", SystemTimezone())
	assert.Equal(t, "America/New_York", Defaults().Timezone)
}

func TestSystemTimezone_ReadsTimezoneFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "timezone")
	require.NoError(t, os.WriteFile(file, []byte("Europe/Berlin\n"), 0644))
	useZoneSources(t, time.FixedZone(LocalZone, 3600), filepath.Join(dir, "localtime"), file)

	assert.Equal(t, "Europe/Berlin", SystemTimezone())
}

func TestSystemTimezone_UnnamedHostZone(t *testing.T) {
	dir := t.TempDir()
	local := time.FixedZone(LocalZone, -5*3600)
	useZoneSources(t, local, filepath.Join(dir, "localtime"), filepath.Join(dir, "timezone"))

	assert.Equal(t, LocalZone, SystemTimezone())
	loc, err := time.LoadLocation(SystemTimezone())
	require.NoError(t, err)
	_, offset := time.Date(2024, 3, 10, 12, 0, 0, 0, loc).Zone()
	assert.Equal(t, -5*3600, offset)
}

func TestZoneFromPath(t *testing.T) {
	cases := map[string]string{
		"/usr/share/zoneinfo/Asia/Tokyo":              "Asia/Tokyo",
		"../usr/share/zoneinfo/posix/Europe/Lisbon":   "Europe/Lisbon",
		"/var/db/timezone/zoneinfo/America/Sao_Paulo": "America/Sao_Paulo",
		"/etc/localtime":                              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, zoneFromPath(in), in)
	}
}
