package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tinytelemetry/litclock/internal/model"
)

// ManifestFile is the name of the manifest written beside the partitions.
const ManifestFile = "manifest.json"

// PartitionFile returns the file name for an hour partition.
func PartitionFile(hour int) string {
	return model.HourKey(hour) + ".json"
}

// WritePartitions writes 00.json..23.json and manifest.json into dir. Each
// file is written to a temp name and renamed into place; the manifest goes
// last so readers never see a manifest for partitions that are not there.
func WritePartitions(dir string, parts [model.HoursPerDay]model.QuotePartition, version string) (model.DatasetManifest, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return model.DatasetManifest{}, fmt.Errorf("create partition dir: %w", err)
	}

	manifest := model.DatasetManifest{
		Version:     version,
		GeneratedAt: time.Now().UTC(),
		Counts:      make(map[string]int, model.HoursPerDay),
	}
	for h, part := range parts {
		if part == nil {
			part = model.QuotePartition{}
		}
		if err := writeJSON(filepath.Join(dir, PartitionFile(h)), part); err != nil {
			return model.DatasetManifest{}, err
		}
		n := part.Count()
		manifest.Counts[model.HourKey(h)] = n
		manifest.Total += n
	}
	if err := writeJSON(filepath.Join(dir, ManifestFile), manifest); err != nil {
		return model.DatasetManifest{}, err
	}
	return manifest, nil
}

// ReadManifest loads dir/manifest.json.
func ReadManifest(dir string) (model.DatasetManifest, error) {
	var m model.DatasetManifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
