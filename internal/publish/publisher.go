// Package publish writes versioned partition sets for static hosting and
// optionally mirrors them to S3.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tinytelemetry/litclock/internal/dataset"
	"github.com/tinytelemetry/litclock/internal/model"
)

const (
	defaultKeepLast = 5
	snapshotFile    = "quotes.duckdb"
)

// Publisher lays out {out}/{version}/00.json..23.json with a manifest per
// version and a top-level manifest.json naming the current version.
type Publisher struct {
	cfg      Config
	store    Snapshotter
	uploader Uploader
	logger   *zap.Logger
}

// NewPublisher validates cfg. store may be nil when snapshots are off.
func NewPublisher(cfg Config, store Snapshotter, logger *zap.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.OutDir) == "" {
		return nil, fmt.Errorf("publish: out-dir is required")
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if cfg.Snapshot {
		if store == nil {
			return nil, fmt.Errorf("publish: snapshot needs a quote store")
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("publish: create out-dir: %w", err)
	}

	var uploader Uploader
	if strings.TrimSpace(cfg.BucketURL) != "" {
		s3u, err := NewS3Uploader(S3Config{
			BucketURL:    cfg.BucketURL,
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			SessionToken: cfg.S3SessionToken,
			UseSSL:       cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("publish: init s3 uploader: %w", err)
		}
		uploader = s3u
	}

	return &Publisher{
		cfg:      cfg,
		store:    store,
		uploader: uploader,
		logger:   logger.Named("publish"),
	}, nil
}

// Publish writes ds as version, uploads it when configured, points the
// top-level manifest at it and prunes old versions.
func (p *Publisher) Publish(ctx context.Context, ds dataset.Dataset, version string) (model.DatasetManifest, error) {
	if version == "" {
		version = dataset.Version(ds)
	}
	if strings.ContainsAny(version, `/\`) || version == "." || version == ".." {
		return model.DatasetManifest{}, fmt.Errorf("publish: invalid version %q", version)
	}

	dir := filepath.Join(p.cfg.OutDir, version)
	manifest, err := dataset.WritePartitions(dir, dataset.Split(ds), version)
	if err != nil {
		return model.DatasetManifest{}, fmt.Errorf("write partitions: %w", err)
	}
	p.logger.Info("partitions written", zap.String("dir", dir), zap.Int("quotes", manifest.Total))

	if p.cfg.Snapshot {
		if err := p.store.SnapshotTo(ctx, filepath.Join(dir, snapshotFile)); err != nil {
			return manifest, fmt.Errorf("snapshot: %w", err)
		}
	}

	if p.uploader != nil {
		if err := p.uploader.Upload(ctx, dir, version, true); err != nil {
			return manifest, fmt.Errorf("upload: %w", err)
		}
		p.logger.Info("version uploaded", zap.String("version", version))
	}

	current := filepath.Join(p.cfg.OutDir, dataset.ManifestFile)
	if err := writeManifest(current, manifest); err != nil {
		return manifest, err
	}
	if p.uploader != nil {
		if err := p.uploader.Upload(ctx, current, dataset.ManifestFile, false); err != nil {
			return manifest, fmt.Errorf("upload manifest: %w", err)
		}
	}

	if err := pruneVersions(p.cfg.OutDir, p.cfg.KeepLast, version); err != nil {
		return manifest, fmt.Errorf("prune versions: %w", err)
	}
	return manifest, nil
}

func writeManifest(path string, m model.DatasetManifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Versions lists published versions, newest first.
func Versions(outDir string) ([]model.DatasetManifest, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	var out []model.DatasetManifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := dataset.ReadManifest(filepath.Join(outDir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out, nil
}

// pruneVersions removes all but the newest keepLast version directories.
// current is never removed.
func pruneVersions(outDir string, keepLast int, current string) error {
	if keepLast <= 0 {
		return nil
	}
	versions, err := Versions(outDir)
	if err != nil {
		return err
	}
	if len(versions) <= keepLast {
		return nil
	}
	for _, m := range versions[keepLast:] {
		if m.Version == current || m.Version == "" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(outDir, m.Version)); err != nil {
			return err
		}
	}
	return nil
}
