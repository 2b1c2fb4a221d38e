package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/japaniel/wifireview/pkg/export"
	"github.com/japaniel/wifireview/pkg/segment"
)

// runeBackend treats every rune as a noun, which is enough to exercise the
// pipeline without loading the gse dictionary.
type runeBackend struct{}

func (runeBackend) Cut(text string) []string {
	var out []string
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

func (b runeBackend) Pos(text string) []segment.Token {
	var out []segment.Token
	for _, w := range b.Cut(text) {
		out = append(out, segment.Token{Word: w, POS: "n"})
	}
	return out
}

func stubBackend(t *testing.T) {
	t.Helper()
	orig := newBackend
	newBackend = func([]string) (segment.Backend, error) { return runeBackend{}, nil }
	t.Cleanup(func() { newBackend = orig })
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var out bytes.Buffer
	if err := run(ctx, append([]string{"-env", "", "-log-level", "error"}, args...), &out); err != nil {
		t.Fatalf("cli failed: %v\noutput:\n%s", err, out.String())
	}
	return out.String()
}

func TestCLI_Offline(t *testing.T) {
	stubBackend(t)
	tmp := t.TempDir()
	reviews := filepath.Join(tmp, "reviews")
	if err := os.Mkdir(reviews, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(reviews, "100.json"), `[{"name":"a","评论":"好用"},{"name":"b","评论":"信号差"}]`)
	writeFile(t, filepath.Join(reviews, "200.json"), `[]`)
	writeFile(t, filepath.Join(reviews, "300.json"), `not json`)
	writeFile(t, filepath.Join(tmp, "positive.txt"), "好\n")
	writeFile(t, filepath.Join(tmp, "negative.txt"), "差\n")

	dbPath := filepath.Join(tmp, "wifireview.db")
	outDir := filepath.Join(tmp, "out")
	args := []string{
		"-dir", reviews, "-db", dbPath, "-out", outDir, "-seed", "1",
		"-config", writeConfig(t, tmp),
	}

	outStr := runCLI(t, args...)
	if !strings.Contains(outStr, "Processing complete. 2 processed, 0 skipped, 1 failed of 3 files") {
		t.Fatalf("unexpected CLI output:\n%s", outStr)
	}

	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer dbConn.Close()
	var cnt int
	if err := dbConn.QueryRow("SELECT COUNT(*) FROM analysis_reports").Scan(&cnt); err != nil {
		t.Fatalf("db query failed: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected 2 stored reports, found %d", cnt)
	}
	var status string
	if err := dbConn.QueryRow("SELECT status FROM analysis_runs").Scan(&status); err != nil || status != "completed" {
		t.Fatalf("run status = %q, %v", status, err)
	}

	for _, name := range []string{export.KeywordsFile, export.ScoresFile, export.SamplesFile} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	a, err := export.ReadReport(filepath.Join(outDir, export.ReportsDir, "100.json"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if a.Report.Statistics.Total != 2 || a.Report.Statistics.Positive != 1 || a.Report.Statistics.Negative != 1 {
		t.Fatalf("report statistics = %+v", a.Report.Statistics)
	}

	// A second run resumes: stored products are skipped, the bad file fails again.
	outStr = runCLI(t, args...)
	if !strings.Contains(outStr, "0 processed, 2 skipped, 1 failed") {
		t.Fatalf("unexpected resume output:\n%s", outStr)
	}
}

func TestCLI_ImportProducts(t *testing.T) {
	tmp := t.TempDir()
	csvPath := filepath.Join(tmp, "products.csv")
	writeFile(t, csvPath, "商品ID,标题,价格,销量,店铺名\n100,测试路由器,¥199.00,1万+,官方旗舰店\n")
	dbPath := filepath.Join(tmp, "wifireview.db")

	outStr := runCLI(t, "-db", dbPath, "-import-products", csvPath)
	if !strings.Contains(outStr, "Imported 1 products") {
		t.Fatalf("unexpected CLI output:\n%s", outStr)
	}

	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer dbConn.Close()
	var title string
	var price float64
	if err := dbConn.QueryRow("SELECT title, price FROM products WHERE product_id = '100'").Scan(&title, &price); err != nil {
		t.Fatalf("db query failed: %v", err)
	}
	if title != "测试路由器" || price != 199 {
		t.Fatalf("stored product = %q %v", title, price)
	}
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "lexicon:\n  positive: "+filepath.Join(dir, "positive.txt")+
		"\n  negative: "+filepath.Join(dir, "negative.txt")+
		"\n  stopwords: "+filepath.Join(dir, "stopwords.txt")+"\n")
	return path
}
