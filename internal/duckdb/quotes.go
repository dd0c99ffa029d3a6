package duckdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/litclock/internal/dataset"
	"github.com/tinytelemetry/litclock/internal/model"
	"github.com/tinytelemetry/litclock/internal/quote"
)

// ErrNoDataset is returned when nothing has been imported yet.
var ErrNoDataset = errors.New("duckdb: no dataset imported")

// DatasetVersion is one row of the import history.
type DatasetVersion struct {
	Version    string
	Source     string
	Total      int
	ImportedAt time.Time
}

// ReplaceDataset swaps the stored quotes for ds in one transaction and
// records version in the import history. Records with malformed keys are
// skipped.
func (s *Store) ReplaceDataset(ctx context.Context, ds dataset.Dataset, version, source string) (int, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quotes`); err != nil {
		return 0, fmt.Errorf("clear quotes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quotes
		(minute_key, hour, minute, position, quote_first, quote_time_case, quote_last, author, title, sfw, excerpt, format)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted, skipped := 0, 0
	for _, key := range ds.Keys() {
		t, err := model.ParseMinuteKey(key)
		if err != nil {
			skipped += len(ds[key])
			continue
		}
		for i, q := range ds[key] {
			if _, err := stmt.ExecContext(ctx,
				key, t.Hour, t.Minute, i,
				q.QuoteFirst, q.QuoteTimeCase, q.QuoteLast, q.Author, q.Title,
				nullString(q.SFW), nullString(q.Original),
				quote.Classify(q.QuoteTimeCase).String(),
			); err != nil {
				return 0, fmt.Errorf("insert %s#%d: %w", key, i, err)
			}
			inserted++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO dataset_versions (version, source, total, imported_at) VALUES (?, ?, ?, ?)`,
		version, source, inserted, time.Now().UTC(),
	); err != nil {
		return 0, fmt.Errorf("record version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true

	if skipped > 0 {
		s.logger.Warn("skipped records with malformed keys", zap.Int("skipped", skipped))
	}
	s.logger.Info("dataset replaced",
		zap.String("version", version),
		zap.String("source", source),
		zap.Int("quotes", inserted))
	return inserted, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Partition returns the quotes of one hour keyed by minute, in import
// order.
func (s *Store) Partition(ctx context.Context, hourKey string) (model.QuotePartition, error) {
	hour, err := model.ParseHourKey(hourKey)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT minute_key, quote_first, quote_time_case, quote_last, author, title,
		       COALESCE(sfw, ''), COALESCE(excerpt, '')
		FROM quotes
		WHERE hour = ?
		ORDER BY minute_key, position`, hour)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	part := model.QuotePartition{}
	for rows.Next() {
		var key string
		var q model.QuoteRecord
		if err := rows.Scan(&key, &q.QuoteFirst, &q.QuoteTimeCase, &q.QuoteLast, &q.Author, &q.Title, &q.SFW, &q.Original); err != nil {
			s.logger.Warn("scan error (Partition)", zap.Error(err))
			continue
		}
		part[key] = append(part[key], q)
	}
	return part, rows.Err()
}

// Fetch serves partitions straight from the database. The version token
// is ignored because the store only holds the current dataset.
func (s *Store) Fetch(ctx context.Context, hourKey, _ string) (model.QuotePartition, error) {
	return s.Partition(ctx, hourKey)
}

// Dataset reads back every stored quote.
func (s *Store) Dataset(ctx context.Context) (dataset.Dataset, error) {
	ds := dataset.Dataset{}
	for h := 0; h < model.HoursPerDay; h++ {
		part, err := s.Partition(ctx, model.HourKey(h))
		if err != nil {
			return nil, fmt.Errorf("hour %02d: %w", h, err)
		}
		for k, v := range part {
			ds[k] = v
		}
	}
	return ds, nil
}

// HourCounts returns the number of quotes per hour.
func (s *Store) HourCounts(ctx context.Context) ([model.HoursPerDay]int, error) {
	var counts [model.HoursPerDay]int

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT hour, COUNT(*) FROM quotes GROUP BY hour`)
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	for rows.Next() {
		var hour, n int
		if err := rows.Scan(&hour, &n); err != nil {
			s.logger.Warn("scan error (HourCounts)", zap.Error(err))
			continue
		}
		if hour >= 0 && hour < model.HoursPerDay {
			counts[hour] = n
		}
	}
	return counts, rows.Err()
}

// Stats summarises the stored dataset.
func (s *Store) Stats(ctx context.Context) (model.DatasetStats, error) {
	var st model.DatasetStats
	byHour, err := s.HourCounts(ctx)
	if err != nil {
		return st, err
	}
	st.ByHour = byHour

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT minute_key) FROM quotes`).Scan(&st.Total, &st.MinutesCovered)
	return st, err
}

// FormatCounts returns the number of quotes per time format.
func (s *Store) FormatCounts(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT format, COUNT(*) FROM quotes GROUP BY format`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var format string
		var n int64
		if err := rows.Scan(&format, &n); err != nil {
			s.logger.Warn("scan error (FormatCounts)", zap.Error(err))
			continue
		}
		counts[format] = n
	}
	return counts, rows.Err()
}

// CurrentVersion returns the most recently imported dataset version.
func (s *Store) CurrentVersion(ctx context.Context) (DatasetVersion, error) {
	versions, err := s.Versions(ctx, 1)
	if err != nil {
		return DatasetVersion{}, err
	}
	if len(versions) == 0 {
		return DatasetVersion{}, ErrNoDataset
	}
	return versions[0], nil
}

// Versions lists the import history, newest first.
func (s *Store) Versions(ctx context.Context, limit int) ([]DatasetVersion, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT version, source, total, imported_at
		FROM dataset_versions
		ORDER BY imported_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DatasetVersion
	for rows.Next() {
		var v DatasetVersion
		if err := rows.Scan(&v.Version, &v.Source, &v.Total, &v.ImportedAt); err != nil {
			s.logger.Warn("scan error (Versions)", zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// PruneVersions deletes import history beyond the newest keep rows.
func (s *Store) PruneVersions(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM dataset_versions
		WHERE version NOT IN (
			SELECT version FROM dataset_versions ORDER BY imported_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
