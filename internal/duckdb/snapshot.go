package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// snapshotTables are copied row by row into a snapshot, in this order.
var snapshotTables = []string{"quotes", "dataset_versions"}

// SnapshotTo writes a standalone DuckDB file at dstPath holding the quotes
// and the version history. The file is built next to dstPath and renamed
// into place once it is closed.
func (s *Store) SnapshotTo(ctx context.Context, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := dstPath + ".tmp"
	removeDBFiles(tmp)

	snap, err := NewStore(tmp, WithQueryTimeout(s.QueryTimeout))
	if err != nil {
		removeDBFiles(tmp)
		return fmt.Errorf("create snapshot store: %w", err)
	}
	copyErr := s.copyInto(ctx, snap)
	if err := errors.Join(copyErr, snap.Close()); err != nil {
		removeDBFiles(tmp)
		return err
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		removeDBFiles(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	s.logger.Debug("snapshot written", zap.String("source", s.dbPath), zap.String("path", dstPath))
	return nil
}

func (s *Store) copyInto(ctx context.Context, dst *Store) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := dst.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	for _, table := range snapshotTables {
		n, err := copyTable(ctx, s.db, tx, table)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("copy %s: %w", table, err)
		}
		s.logger.Debug("snapshot table copied", zap.String("table", table), zap.Int("rows", n))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// copyTable inserts every row of table from src into the same table in dst.
// Table names come from snapshotTables, never from callers.
func copyTable(ctx context.Context, src *sql.DB, dst *sql.Tx, table string) (int, error) {
	rows, err := src.QueryContext(ctx, "SELECT * FROM "+sqlIdent(table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = sqlIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := dst.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqlIdent(table), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}

func removeDBFiles(path string) {
	_ = os.Remove(path)
	_ = os.Remove(path + ".wal")
}

func sqlIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
