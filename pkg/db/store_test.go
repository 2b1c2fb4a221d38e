package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/japaniel/wifireview/pkg/analysis"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	conn, err := Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := InitDB(context.Background(), conn.Executor()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func sampleSummary(id string) analysis.Summary {
	return analysis.Summary{
		ProductID: id,
		Report: analysis.Report{
			Positive:   map[string][]analysis.WordCount{"信号": {{Word: "信号", Count: 2}}},
			Negative:   map[string][]analysis.WordCount{"稳定性": {{Word: "断流", Count: 1}}},
			Statistics: analysis.Statistics{Total: 4, Positive: 2, Negative: 1},
		},
		Scores: analysis.Scores{
			{Name: "信号", Key: "signal_score", Score: 9.4},
			{Name: "稳定性", Key: "stability", Score: 1},
		},
		Keywords:        analysis.TopKeywords([]string{"信号", "信号", "速度"}, analysis.KeywordSlots, nil),
		PositiveSamples: []string{"信号很强", analysis.Placeholder, analysis.Placeholder},
		NegativeSamples: []string{"经常断流"},
	}
}

func TestSaveSummaryAndDetail(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	ex := conn.Executor()

	if err := SaveSummary(ctx, ex, "run-1", sampleSummary("p1"), time.Now()); err != nil {
		t.Fatalf("save: %v", err)
	}
	d, err := GetProductDetail(ctx, ex, "p1")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if d.TotalReviews != 4 || d.PositiveReviews != 2 || d.NegativeReviews != 1 {
		t.Fatalf("counts = %d/%d/%d", d.TotalReviews, d.PositiveReviews, d.NegativeReviews)
	}
	if len(d.Scores) != 2 || d.Scores[0].Key != "signal_score" || d.Scores[1].Score != 1 {
		t.Fatalf("scores = %+v", d.Scores)
	}
	if d.Overall != 5.2 {
		t.Fatalf("overall = %v, want 5.2", d.Overall)
	}
	if len(d.Keywords) != analysis.KeywordSlots || d.Keywords[0] != (analysis.WordCount{Word: "信号", Count: 2}) {
		t.Fatalf("keywords head = %+v", d.Keywords[:2])
	}
	if d.Keywords[2].Word != analysis.Placeholder {
		t.Fatalf("keyword padding missing: %+v", d.Keywords[2])
	}
	if d.NegativeSamples[0] != "经常断流" || d.NegativeSamples[2] != analysis.Placeholder {
		t.Fatalf("negative samples = %v", d.NegativeSamples)
	}
	if d.Report.FeatureScores["信号"] != 9.4 {
		t.Fatalf("report feature scores = %v", d.Report.FeatureScores)
	}
	if d.Report.Positive["信号"][0].Count != 2 {
		t.Fatalf("report positive = %v", d.Report.Positive)
	}
}

func TestSaveSummaryReplacesScores(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	ex := conn.Executor()

	if err := SaveSummary(ctx, ex, "run-1", sampleSummary("p1"), time.Now()); err != nil {
		t.Fatalf("save: %v", err)
	}
	s := sampleSummary("p1")
	s.Scores = analysis.Scores{{Name: "服务", Key: "service", Score: 7}}
	if err := SaveSummary(ctx, ex, "run-2", s, time.Now()); err != nil {
		t.Fatalf("save again: %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM scores WHERE product_id = 'p1'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 score row after replace, got %d", n)
	}
	var reports int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM analysis_reports`).Scan(&reports); err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if reports != 1 {
		t.Fatalf("expected 1 report row, got %d", reports)
	}
}

func TestIsProcessed(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	ex := conn.Executor()

	ok, err := IsProcessed(ctx, ex, "p1")
	if err != nil || ok {
		t.Fatalf("IsProcessed before save = %v, %v", ok, err)
	}
	if err := SaveSummary(ctx, ex, "run-1", sampleSummary("p1"), time.Now()); err != nil {
		t.Fatalf("save: %v", err)
	}
	ok, err = IsProcessed(ctx, ex, "p1")
	if err != nil || !ok {
		t.Fatalf("IsProcessed after save = %v, %v", ok, err)
	}
	ids, err := ProcessedIDs(ctx, ex)
	if err != nil || !ids["p1"] || len(ids) != 1 {
		t.Fatalf("ProcessedIDs = %v, %v", ids, err)
	}
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	ex := conn.Executor()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := StartRun(ctx, ex, Run{ID: "r1", ReviewDir: "jd", StartedAt: start}); err != nil {
		t.Fatalf("start: %v", err)
	}
	end := start.Add(time.Minute)
	if err := FinishRun(ctx, ex, Run{ID: "r1", Status: RunCompleted, Processed: 3, Skipped: 1, Failed: 1, FinishedAt: &end}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	r, err := GetRun(ctx, ex, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Status != RunCompleted || r.Processed != 3 || r.Failed != 1 || !r.StartedAt.Equal(start) {
		t.Fatalf("run = %+v", r)
	}
	if r.FinishedAt == nil || !r.FinishedAt.Equal(end) {
		t.Fatalf("finished_at = %v", r.FinishedAt)
	}
	latest, err := LatestRun(ctx, ex)
	if err != nil || latest.ID != "r1" {
		t.Fatalf("latest = %+v, %v", latest, err)
	}

	if _, err := GetRun(ctx, ex, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRun(missing) err = %v", err)
	}
	if err := FinishRun(ctx, ex, Run{ID: "missing", Status: RunCompleted}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FinishRun(missing) err = %v", err)
	}
}

func TestGetProductDetailNotFound(t *testing.T) {
	conn := setupTestDB(t)
	_, err := GetProductDetail(context.Background(), conn.Executor(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImportProductsCSVAndList(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	ex := conn.Executor()

	csv := "\ufeff商品ID,标题,价格,销量,店铺名\n" +
		"p1,小米路由器 AX3000,¥199.00,1万+,小米官方旗舰店\n" +
		"p2,TP-LINK AX1500,暂无报价,500+,TP-LINK旗舰店\n" +
		",无ID商品,10,1,某店\n"
	n, err := ImportProductsCSV(ctx, ex, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d rows, want 2", n)
	}

	for _, id := range []string{"p1", "p2"} {
		if err := SaveSummary(ctx, ex, "run-1", sampleSummary(id), time.Now()); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	list, err := ListProducts(ctx, ex)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list has %d rows", len(list))
	}
	p1 := list[0]
	if p1.Title != "小米路由器 AX3000" || p1.Price == nil || *p1.Price != 199 || p1.ShopName != "小米官方旗舰店" {
		t.Fatalf("p1 = %+v", p1.Product)
	}
	if list[1].Price != nil || list[1].PriceText != "暂无报价" {
		t.Fatalf("p2 price = %v %q", list[1].Price, list[1].PriceText)
	}
	if len(p1.Scores) != 2 {
		t.Fatalf("p1 scores = %+v", p1.Scores)
	}
}

func TestImportProductsCSVMissingIDColumn(t *testing.T) {
	conn := setupTestDB(t)
	_, err := ImportProductsCSV(context.Background(), conn.Executor(), strings.NewReader("标题,价格\nx,1\n"))
	if err == nil {
		t.Fatalf("expected error for missing id column")
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"¥199.00", 199, true},
		{"1,299", 1299, true},
		{" 89元 ", 89, true},
		{"暂无报价", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParsePrice(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParsePrice(%q) = %v, %v", c.in, got, ok)
		}
	}
}
