package duckdb

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// maxQueryRows caps ExecuteQuery results.
const maxQueryRows = 1000

// dangerousKeywordPattern matches write and admin keywords at word
// boundaries, so "RESET" does not match "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET|CHECKPOINT)\b`,
)

// fileFunctionPattern matches table functions that read host files. The
// store also runs with external access disabled; this gives a clearer error.
var fileFunctionPattern = regexp.MustCompile(
	`(?i)\b(read_\w+|glob|sniff_csv|parquet_\w+|iceberg_\w+|delta_scan)\s*\(`,
)

// readOnlyPrefix matches the statements ExecuteQuery accepts.
var readOnlyPrefix = regexp.MustCompile(`(?i)^(SELECT|WITH|DESCRIBE|SHOW|EXPLAIN)\b`)

// blockCommentPattern matches C-style block comments (/* ... */).
var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// stripSQLComments removes -- line comments and /* */ block comments from a query.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// checkReadOnly rejects anything but a single SELECT, WITH, DESCRIBE, SHOW
// or EXPLAIN statement over the store's own tables.
func checkReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("query must not contain semicolons")
	}

	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	if !readOnlyPrefix.MatchString(stripped) {
		return fmt.Errorf("only SELECT, WITH, DESCRIBE, SHOW or EXPLAIN queries are allowed")
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}
	if m := fileFunctionPattern.FindStringSubmatch(stripped); m != nil {
		return fmt.Errorf("query reads files: %s is not allowed", strings.ToLower(m[1]))
	}
	return nil
}

// ExecuteQuery runs a read-only SQL query over the quote tables and returns
// up to 1000 rows as column maps.
func (s *Store) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	if err := checkReadOnly(query); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() && len(results) < maxQueryRows {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			s.logger.Warn("scan error (ExecuteQuery)", zap.Error(err))
			continue
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// SchemaDescription documents the queryable tables.
func SchemaDescription() string {
	return `Table 'quotes': minute_key (VARCHAR "HH:MM"), hour (INTEGER), minute (INTEGER), ` +
		`position (INTEGER), quote_first, quote_time_case, quote_last, author, title (VARCHAR), ` +
		`sfw (VARCHAR), excerpt (VARCHAR), format (VARCHAR: ambiguous/12h/24h). ` +
		`Table 'dataset_versions': version, source (VARCHAR), total (INTEGER), imported_at (TIMESTAMP).`
}

// TableRowCounts returns the row count for each known table.
func (s *Store) TableRowCounts(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	allowedTables := []string{"quotes", "dataset_versions"}
	counts := make(map[string]int64, len(allowedTables))
	for _, table := range allowedTables {
		var count int64
		// Table names are constants, not user input.
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}
