package duckdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExecuteQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.ReplaceDataset(ctx, testDataset(), "v1", "test"); err != nil {
		t.Fatalf("ReplaceDataset: %v", err)
	}

	rows, err := store.ExecuteQuery(ctx, "SELECT author FROM quotes WHERE hour = 15 ORDER BY author")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0]["author"] != "B" {
		t.Errorf("first author = %v, want B", rows[0]["author"])
	}
}

func TestExecuteQueryRejectsWrites(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		query string
		want  string
	}{
		{"DELETE FROM quotes", "only SELECT, WITH"},
		{"DESCRIBE quotes", ""},
		{"SHOW TABLES", ""},
		{"explain SELECT * FROM quotes", ""},
		{"SELECT 1; DROP TABLE quotes", "semicolons"},
		{"SELECT * FROM quotes WHERE 1=1 /* x */ AND hour IN (SELECT 1) -- ok", ""},
		{"WITH x AS (SELECT 1) INSERT INTO quotes SELECT * FROM x", "INSERT"},
		{"SELECT * FROM read_csv('x') /* COPY */", "read_csv"},
		{"SELECT content FROM read_text('/etc/hostname')", "read_text"},
		{"SELECT * FROM GLOB ('/etc/*')", "glob"},
		{"SELECT * FROM quotes WHERE title = 'read_me'", ""},
		{"SELECT * FROM quotes WHERE title = 'reset'", ""},
		{"select 1 from quotes where hour = 1 or attach", "ATTACH"},
	}
	for _, tt := range tests {
		err := checkReadOnly(tt.query)
		if tt.want == "" {
			if err != nil {
				t.Errorf("checkReadOnly(%q) = %v, want nil", tt.query, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("checkReadOnly(%q) = %v, want error containing %q", tt.query, err, tt.want)
		}
	}

	if _, err := store.ExecuteQuery(context.Background(), "DROP TABLE quotes"); err == nil {
		t.Error("ExecuteQuery allowed DROP")
	}
}

func TestExecuteQueryIntrospection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows, err := store.ExecuteQuery(ctx, "DESCRIBE quotes")
	if err != nil {
		t.Fatalf("DESCRIBE: %v", err)
	}
	if len(rows) == 0 {
		t.Error("DESCRIBE quotes returned no columns")
	}

	rows, err = store.ExecuteQuery(ctx, "SHOW TABLES")
	if err != nil {
		t.Fatalf("SHOW TABLES: %v", err)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, fmt.Sprint(row["name"]))
	}
	if !strings.Contains(strings.Join(names, ","), "quotes") {
		t.Errorf("SHOW TABLES = %v, want quotes listed", names)
	}
}

func TestExecuteQueryCannotReadHostFiles(t *testing.T) {
	store := newTestStore(t)

	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	query := "SELECT * FROM '" + path + "'"
	if err := checkReadOnly(query); err != nil {
		t.Fatalf("checkReadOnly(%q) = %v, want the database to refuse it", query, err)
	}
	if rows, err := store.ExecuteQuery(context.Background(), query); err == nil {
		t.Fatalf("ExecuteQuery read %d rows from %s", len(rows), path)
	}
}

func TestTableRowCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.ReplaceDataset(ctx, testDataset(), "v1", "test"); err != nil {
		t.Fatalf("ReplaceDataset: %v", err)
	}

	counts, err := store.TableRowCounts(ctx)
	if err != nil {
		t.Fatalf("TableRowCounts: %v", err)
	}
	if counts["quotes"] != 4 || counts["dataset_versions"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestSchemaDescriptionNamesTables(t *testing.T) {
	desc := SchemaDescription()
	for _, table := range []string{"'quotes'", "'dataset_versions'"} {
		if !strings.Contains(desc, table) {
			t.Errorf("schema description missing %s", table)
		}
	}
}
