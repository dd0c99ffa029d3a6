package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/litclock/internal/logging"
	"github.com/tinytelemetry/litclock/internal/model"
	"github.com/tinytelemetry/litclock/internal/prefs"
)

const (
	envPrefix            = "LITCLOCK"
	defaultSource        = "http://127.0.0.1:3000/quotes"
	defaultFetchTimeout  = 10 * time.Second
	defaultPublishKeep   = 5
	defaultPublishRegion = "us-east-1"
	defaultQueryTimeout  = 30 * time.Second
	duckdbSourcePrefix   = "duckdb:"
)

// appConfig is internal runtime configuration for the clock binary.
type appConfig struct {
	Source            string        `mapstructure:"source"`
	DatasetVersion    string        `mapstructure:"dataset-version"`
	FetchTimeout      time.Duration `mapstructure:"fetch-timeout"`
	PrefsPath         string        `mapstructure:"prefs-path"`
	LogPath           string        `mapstructure:"log-path"`
	PrefetchWindow    time.Duration `mapstructure:"prefetch-window"`
	TransitionCover   time.Duration `mapstructure:"transition-cover"`
	TransitionPause   time.Duration `mapstructure:"transition-pause"`
	TransitionUncover time.Duration `mapstructure:"transition-uncover"`
	DBPath            string        `mapstructure:"db-path"`
	QueryTimeout      time.Duration `mapstructure:"query-timeout"`

	PublishOutDir         string `mapstructure:"publish-out-dir"`
	PublishKeepLast       int    `mapstructure:"publish-keep-last"`
	PublishSnapshot       bool   `mapstructure:"publish-snapshot"`
	PublishBucketURL      string `mapstructure:"publish-bucket-url"`
	PublishS3Endpoint     string `mapstructure:"publish-s3-endpoint"`
	PublishS3Region       string `mapstructure:"publish-s3-region"`
	PublishS3AccessKey    string `mapstructure:"publish-s3-access-key"`
	PublishS3SecretKey    string `mapstructure:"publish-s3-secret-key"`
	PublishS3SessionToken string `mapstructure:"publish-s3-session-token"`
	PublishS3UseSSL       bool   `mapstructure:"publish-s3-use-ssl"`

	ConfigPath string `mapstructure:"-"`
}

// loadConfig merges defaults, the optional config file, LITCLOCK_* env
// vars and any flags bound from flags, in increasing precedence.
func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("source", defaultSource)
	v.SetDefault("dataset-version", model.DefaultDatasetVersion)
	v.SetDefault("fetch-timeout", defaultFetchTimeout)
	v.SetDefault("prefs-path", prefs.DefaultPath())
	v.SetDefault("log-path", logging.DefaultPath())
	v.SetDefault("prefetch-window", model.DefaultPrefetchWindow)
	v.SetDefault("transition-cover", model.DefaultTransitionCover)
	v.SetDefault("transition-pause", model.DefaultTransitionPause)
	v.SetDefault("transition-uncover", model.DefaultTransitionUncover)
	v.SetDefault("db-path", filepath.Join(home, ".local", "share", "litclock", "litclock.duckdb"))
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("publish-out-dir", "")
	v.SetDefault("publish-keep-last", defaultPublishKeep)
	v.SetDefault("publish-snapshot", false)
	v.SetDefault("publish-bucket-url", "")
	v.SetDefault("publish-s3-endpoint", "")
	v.SetDefault("publish-s3-region", defaultPublishRegion)
	v.SetDefault("publish-s3-access-key", "")
	v.SetDefault("publish-s3-secret-key", "")
	v.SetDefault("publish-s3-session-token", "")
	v.SetDefault("publish-s3-use-ssl", true)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return cfg, fmt.Errorf("binding flags: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "litclock", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if strings.TrimSpace(cfg.Source) == "" {
		return cfg, errors.New("source must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"fetch-timeout":      cfg.FetchTimeout,
		"prefetch-window":    cfg.PrefetchWindow,
		"transition-cover":   cfg.TransitionCover,
		"transition-pause":   cfg.TransitionPause,
		"transition-uncover": cfg.TransitionUncover,
		"query-timeout":      cfg.QueryTimeout,
	} {
		if d < 0 {
			return cfg, fmt.Errorf("invalid %s: %s", name, d)
		}
	}
	if cfg.PrefetchWindow > time.Hour {
		return cfg, fmt.Errorf("invalid prefetch-window: %s exceeds one hour", cfg.PrefetchWindow)
	}

	cfg.PrefsPath = expandHome(home, cfg.PrefsPath)
	cfg.LogPath = expandHome(home, cfg.LogPath)
	cfg.DBPath = expandHome(home, cfg.DBPath)
	cfg.PublishOutDir = expandHome(home, cfg.PublishOutDir)
	if rest, ok := strings.CutPrefix(cfg.Source, duckdbSourcePrefix); ok {
		cfg.Source = duckdbSourcePrefix + expandHome(home, rest)
	}

	return cfg, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
