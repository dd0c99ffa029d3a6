package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/litclock/internal/watch"
)

const (
	defaultBindHost        = "127.0.0.1"
	defaultAPIPort         = 3000
	defaultQueryTimeout    = 30 * time.Second
	defaultHistoryKeep     = 10
	defaultHistoryInterval = time.Hour
	defaultPublishKeep     = 5
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the entrypoint.
type appConfig struct {
	DBPath          string        `mapstructure:"db-path"`
	DatasetPath     string        `mapstructure:"dataset-path"`
	WatchDataset    bool          `mapstructure:"watch-dataset"`
	WatchDebounce   time.Duration `mapstructure:"watch-debounce"`
	ForceImport     bool          `mapstructure:"force-import"`
	APIHost         string        `mapstructure:"api-host"`
	APIPort         int           `mapstructure:"api-port"`
	APIAddr         string        `mapstructure:"api-addr"`
	QueryTimeout    time.Duration `mapstructure:"query-timeout"`
	HistoryKeep     int           `mapstructure:"history-keep"`
	HistoryInterval time.Duration `mapstructure:"history-interval"`
	Verbose         bool          `mapstructure:"verbose"`

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

	ConfigPath string `mapstructure:"-"` // not from config file
	EnvFile    string `mapstructure:"-"`
}

// loadEnvFile loads KEY=VALUE pairs from path into the process
// environment without overriding variables that are already set. A
// missing file is not an error.
func loadEnvFile(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("loading %s: %w", path, err)
	}
	return true, nil
}

func loadConfig(configPath, envFile string) (appConfig, error) {
	var cfg appConfig

	loaded, err := loadEnvFile(envFile)
	if err != nil {
		return cfg, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LITCLOCK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("db-path", filepath.Join(home, ".local", "share", "litclock", "litclock.duckdb"))
	v.SetDefault("dataset-path", "")
	v.SetDefault("watch-dataset", true)
	v.SetDefault("watch-debounce", watch.DefaultDebounce)
	v.SetDefault("force-import", false)
	v.SetDefault("api-host", defaultBindHost)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("history-keep", defaultHistoryKeep)
	v.SetDefault("history-interval", defaultHistoryInterval)
	v.SetDefault("verbose", false)
	v.SetDefault("publish-out-dir", "")
	v.SetDefault("publish-keep-last", defaultPublishKeep)
	v.SetDefault("publish-snapshot", false)
	v.SetDefault("publish-bucket-url", "")
	v.SetDefault("publish-s3-endpoint", "")
	v.SetDefault("publish-s3-region", "us-east-1")
	v.SetDefault("publish-s3-access-key", "")
	v.SetDefault("publish-s3-secret-key", "")
	v.SetDefault("publish-s3-session-token", "")
	v.SetDefault("publish-s3-use-ssl", true)

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
	if loaded {
		cfg.EnvFile = envFile
	}

	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.QueryTimeout < 0 || cfg.HistoryInterval < 0 || cfg.WatchDebounce < 0 {
		return cfg, errors.New("durations must not be negative")
	}
	if cfg.HistoryKeep < 0 {
		return cfg, fmt.Errorf("invalid history-keep: %d", cfg.HistoryKeep)
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.DBPath, &cfg.DatasetPath, &cfg.PublishOutDir} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.APIHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}
