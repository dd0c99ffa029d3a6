// Package prefs persists the clock's user preferences in a small YAML file.
// Reads and writes never fail the caller: problems are logged and the
// defaults are used instead.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/litclock/internal/model"
)

// Prefs are the user-facing settings.
type Prefs struct {
	Timezone  string `yaml:"timezone"`
	Use24Hour bool   `yaml:"use-24-hour"`
	Animation bool   `yaml:"animation"`
	Theme     string `yaml:"theme"`
}

// Defaults returns the settings used when nothing is persisted.
func Defaults() Prefs {
	return Prefs{
		Timezone:  SystemTimezone(),
		Use24Hour: false,
		Animation: true,
		Theme:     model.DefaultTheme,
	}
}

// LocalZone stands for the host zone when no IANA id can be found for it.
// time.LoadLocation resolves it to time.Local.
const LocalZone = "Local"

var (
	localtimePath = "/etc/localtime"
	timezoneFile  = "/etc/timezone"
)

// SystemTimezone detects the host zone as an IANA id. It tries $TZ, the
// name of time.Local, the /etc/localtime link target, then /etc/timezone,
// and returns LocalZone when none of them resolves.
func SystemTimezone() string {
	candidates := []string{
		os.Getenv("TZ"),
		time.Local.String(),
		zoneFromLink(localtimePath),
		zoneFromFile(timezoneFile),
	}
	for _, name := range candidates {
		if zone, ok := loadableZone(name); ok {
			return zone
		}
	}
	return LocalZone
}

func loadableZone(name string) (string, bool) {
	name = strings.TrimPrefix(strings.TrimSpace(name), ":")
	if strings.HasPrefix(name, "/") {
		name = zoneFromPath(name)
	}
	if name == "" || name == LocalZone {
		return "", false
	}
	if _, err := time.LoadLocation(name); err != nil {
		return "", false
	}
	return name, true
}

// zoneFromLink reads the zoneinfo path a symlink such as /etc/localtime
// points at.
func zoneFromLink(path string) string {
	target, err := os.Readlink(path)
	if err != nil {
		return ""
	}
	return zoneFromPath(target)
}

// zoneFromPath turns .../zoneinfo/America/New_York into America/New_York.
func zoneFromPath(path string) string {
	const marker = "zoneinfo/"
	i := strings.LastIndex(path, marker)
	if i < 0 {
		return ""
	}
	zone := path[i+len(marker):]
	for _, variant := range []string{"posix/", "right/"} {
		zone = strings.TrimPrefix(zone, variant)
	}
	return zone
}

func zoneFromFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return line
}

// FileStore reads and writes Prefs at a fixed path.
type FileStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore returns a store for path. An empty path disables
// persistence.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger.Named("prefs")}
}

// DefaultPath returns ~/.config/litclock/prefs.yml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "litclock", "prefs.yml")
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load returns the persisted prefs layered over Defaults. Missing keys
// keep their default; an unreadable or malformed file yields Defaults.
func (s *FileStore) Load() Prefs {
	p := Defaults()
	if s.path == "" {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("read prefs failed, using defaults", zap.String("path", s.path), zap.Error(err))
		}
		return p
	}

	loaded := p
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("parse prefs failed, using defaults", zap.String("path", s.path), zap.Error(err))
		return p
	}
	if _, err := time.LoadLocation(loaded.Timezone); err != nil || loaded.Timezone == "" {
		s.logger.Warn("persisted timezone invalid, using system zone",
			zap.String("timezone", loaded.Timezone))
		loaded.Timezone = p.Timezone
	}
	if loaded.Theme == "" {
		loaded.Theme = p.Theme
	}
	return loaded
}

// Save writes p. Failures are logged and swallowed.
func (s *FileStore) Save(p Prefs) {
	if s.path == "" {
		return
	}
	if err := s.write(p); err != nil {
		s.logger.Warn("write prefs failed", zap.String("path", s.path), zap.Error(err))
	}
}

func (s *FileStore) write(p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
