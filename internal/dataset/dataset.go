// Package dataset reads the full quote dataset, checks it, and splits it
// into the 24 hour partitions the clock loads.
package dataset

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"github.com/tinytelemetry/litclock/internal/model"
)

// Dataset maps every "HH:MM" key to its quotes.
type Dataset map[string][]model.QuoteRecord

// Count returns the number of quotes.
func (ds Dataset) Count() int {
	return model.QuotePartition(ds).Count()
}

// Keys returns the minute keys in order.
func (ds Dataset) Keys() []string {
	keys := make([]string, 0, len(ds))
	for k := range ds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	jsAssignment  = regexp.MustCompile(`(?s)=\s*(\{.*\})\s*;?\s*$`)
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// Load reads a dataset. Plain JSON is accepted, as is a script file of the
// form "var quotes = {...};" with trailing commas.
func Load(r io.Reader) (Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		m := jsAssignment.FindSubmatch(data)
		if m == nil {
			return nil, fmt.Errorf("read dataset: no object literal found")
		}
		data = trailingComma.ReplaceAll(m[1], []byte("$1"))
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if ds == nil {
		ds = Dataset{}
	}
	return ds, nil
}

// LoadFile reads the dataset at path.
func LoadFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Merge combines sources minute by minute, in argument order. A quote whose
// excerpt, author and title match one already kept for that minute is
// dropped.
func Merge(sources ...Dataset) Dataset {
	out := Dataset{}
	seen := map[string]map[string]bool{}
	for _, src := range sources {
		for _, key := range src.Keys() {
			if seen[key] == nil {
				seen[key] = map[string]bool{}
			}
			for _, q := range src[key] {
				sig := signature(q)
				if seen[key][sig] {
					continue
				}
				seen[key][sig] = true
				out[key] = append(out[key], q)
			}
		}
	}
	return out
}

// LoadFiles reads and merges the datasets at paths.
func LoadFiles(paths ...string) (Dataset, error) {
	sources := make([]Dataset, 0, len(paths))
	for _, path := range paths {
		ds, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		sources = append(sources, ds)
	}
	return Merge(sources...), nil
}

// signature identifies a quote for duplicate detection.
func signature(q model.QuoteRecord) string {
	return q.Excerpt() + "\x00" + q.Author + "\x00" + q.Title
}

// Split partitions ds by hour. Keys that do not parse are dropped; Validate
// reports them.
func Split(ds Dataset) [model.HoursPerDay]model.QuotePartition {
	var parts [model.HoursPerDay]model.QuotePartition
	for h := range parts {
		parts[h] = model.QuotePartition{}
	}
	for key, quotes := range ds {
		t, err := model.ParseMinuteKey(key)
		if err != nil {
			continue
		}
		parts[t.Hour][key] = append([]model.QuoteRecord(nil), quotes...)
	}
	return parts
}

// Stats summarises ds.
func Stats(ds Dataset) model.DatasetStats {
	var st model.DatasetStats
	for key, quotes := range ds {
		t, err := model.ParseMinuteKey(key)
		if err != nil || len(quotes) == 0 {
			continue
		}
		st.MinutesCovered++
		st.Total += len(quotes)
		st.ByHour[t.Hour] += len(quotes)
	}
	return st
}

// Version derives a content token from ds: the first 12 hex characters of
// the SHA-256 of its canonical JSON encoding.
func Version(ds Dataset) string {
	// encoding/json sorts map keys, so the encoding is canonical.
	data, err := json.Marshal(ds)
	if err != nil {
		return model.DefaultDatasetVersion
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}
