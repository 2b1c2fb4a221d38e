package db

import (
	"fmt"
	"strings"

	"github.com/japaniel/wifireview/pkg/analysis"
)

// The DDL sticks to types both sqlite and postgres accept. Timestamps are
// RFC 3339 text.
const baseSchema = `
CREATE TABLE IF NOT EXISTS products (
	product_id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	price DOUBLE PRECISION,
	price_text TEXT NOT NULL DEFAULT '',
	sales TEXT NOT NULL DEFAULT '',
	shop_name TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id TEXT PRIMARY KEY,
	review_dir TEXT NOT NULL,
	status TEXT NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	finished_at TEXT
);

CREATE TABLE IF NOT EXISTS analysis_reports (
	product_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	total_reviews INTEGER NOT NULL,
	positive_reviews INTEGER NOT NULL,
	negative_reviews INTEGER NOT NULL,
	overall_score DOUBLE PRECISION NOT NULL,
	report_json TEXT NOT NULL,
	analyzed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scores (
	product_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	category TEXT NOT NULL,
	category_key TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (product_id, category_key)
);

CREATE INDEX IF NOT EXISTS idx_scores_category_key ON scores(category_key);

CREATE TABLE IF NOT EXISTS sample_reviews (
	product_id TEXT PRIMARY KEY,
	pos1 TEXT NOT NULL,
	pos2 TEXT NOT NULL,
	pos3 TEXT NOT NULL,
	neg1 TEXT NOT NULL,
	neg2 TEXT NOT NULL,
	neg3 TEXT NOT NULL
);
`

var (
	keywordCols   = keywordColumns()
	migrationsSQL = baseSchema + keywordTableDDL()
)

// keywordColumns lists keyword1, frequency1, ..., keyword50, frequency50.
func keywordColumns() []string {
	cols := make([]string, 0, 2*analysis.KeywordSlots)
	for i := 1; i <= analysis.KeywordSlots; i++ {
		cols = append(cols, fmt.Sprintf("keyword%d", i), fmt.Sprintf("frequency%d", i))
	}
	return cols
}

func keywordTableDDL() string {
	var b strings.Builder
	b.WriteString("\nCREATE TABLE IF NOT EXISTS keywords_frequency (\n\tproduct_id TEXT PRIMARY KEY")
	for i, c := range keywordCols {
		typ := "TEXT NOT NULL"
		if i%2 == 1 {
			typ = "INTEGER NOT NULL"
		}
		fmt.Fprintf(&b, ",\n\t%s %s", c, typ)
	}
	b.WriteString("\n);\n")
	return b.String()
}
