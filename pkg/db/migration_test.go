package db

import (
	"context"
	"testing"
)

func tableColumns(t *testing.T, conn *DB, table string) map[string]bool {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("pragma %s: %v", table, err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	return cols
}

// TestInitDBCreatesSchema checks the tables downstream loaders and the
// dashboard rely on, including the wide keyword table.
func TestInitDBCreatesSchema(t *testing.T) {
	conn := setupTestDB(t)

	for _, table := range []string{"products", "analysis_runs", "analysis_reports", "scores", "sample_reviews", "keywords_frequency"} {
		var name string
		if err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}

	kw := tableColumns(t, conn, "keywords_frequency")
	if len(kw) != 101 {
		t.Fatalf("keywords_frequency has %d columns, want 101", len(kw))
	}
	for _, c := range []string{"product_id", "keyword1", "frequency1", "keyword50", "frequency50"} {
		if !kw[c] {
			t.Fatalf("keywords_frequency missing %s", c)
		}
	}

	samples := tableColumns(t, conn, "sample_reviews")
	for _, c := range []string{"pos1", "pos3", "neg1", "neg3"} {
		if !samples[c] {
			t.Fatalf("sample_reviews missing %s", c)
		}
	}
}

func TestInitDBIsRepeatable(t *testing.T) {
	conn := setupTestDB(t)
	if err := InitDB(context.Background(), conn.Executor()); err != nil {
		t.Fatalf("second InitDB: %v", err)
	}
}

func TestRebind(t *testing.T) {
	got := rebind(`SELECT a FROM t WHERE x = ? AND y = '?' AND z IN (?, ?)`)
	want := `SELECT a FROM t WHERE x = $1 AND y = '?' AND z IN ($2, $3)`
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
}

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{"": SQLite, "sqlite": SQLite, "SQLite3": SQLite, "postgres": Postgres, "pgx": Postgres}
	for in, want := range cases {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatalf("expected error for mysql")
	}
}
