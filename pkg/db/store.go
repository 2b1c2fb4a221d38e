package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/japaniel/wifireview/pkg/analysis"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrNotFound is returned by lookups of a product or run that is not stored.
var ErrNotFound = errors.New("not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upsertKeywordsSQL = func() string {
	set := make([]string, len(keywordCols))
	for i, c := range keywordCols {
		set[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return fmt.Sprintf(`INSERT INTO keywords_frequency (product_id, %s) VALUES (?%s)
		ON CONFLICT(product_id) DO UPDATE SET %s`,
		strings.Join(keywordCols, ", "),
		strings.Repeat(", ?", len(keywordCols)),
		strings.Join(set, ", "))
}()

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SaveSummary replaces everything stored for one product: report, scores,
// sampled reviews and the keyword row. Run it inside a transaction when the
// rows must appear together.
func SaveSummary(ctx context.Context, db DBExecutor, runID string, s analysis.Summary, at time.Time) error {
	id := strings.TrimSpace(s.ProductID)
	if id == "" {
		return fmt.Errorf("product id must be non-empty")
	}

	report := s.Report
	report.FeatureScores = s.Scores.Map()
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO analysis_reports
		(product_id, run_id, total_reviews, positive_reviews, negative_reviews, overall_score, report_json, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
		  run_id = excluded.run_id,
		  total_reviews = excluded.total_reviews,
		  positive_reviews = excluded.positive_reviews,
		  negative_reviews = excluded.negative_reviews,
		  overall_score = excluded.overall_score,
		  report_json = excluded.report_json,
		  analyzed_at = excluded.analyzed_at`,
		id, runID, report.Statistics.Total, report.Statistics.Positive, report.Statistics.Negative,
		s.Scores.Overall(), string(reportJSON), formatTime(at))
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}

	// The category table may have changed since the last run.
	if _, err := db.ExecContext(ctx, `DELETE FROM scores WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	for i, c := range s.Scores {
		_, err := db.ExecContext(ctx,
			`INSERT INTO scores (product_id, position, category, category_key, score) VALUES (?, ?, ?, ?, ?)`,
			id, i, c.Name, c.Key, c.Score)
		if err != nil {
			return fmt.Errorf("insert score %s: %w", c.Key, err)
		}
	}

	pos := pad(s.PositiveSamples, analysis.SampleSlots)
	neg := pad(s.NegativeSamples, analysis.SampleSlots)
	_, err = db.ExecContext(ctx, `INSERT INTO sample_reviews (product_id, pos1, pos2, pos3, neg1, neg2, neg3)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
		  pos1 = excluded.pos1, pos2 = excluded.pos2, pos3 = excluded.pos3,
		  neg1 = excluded.neg1, neg2 = excluded.neg2, neg3 = excluded.neg3`,
		id, pos[0], pos[1], pos[2], neg[0], neg[1], neg[2])
	if err != nil {
		return fmt.Errorf("upsert samples: %w", err)
	}

	args := make([]any, 0, 1+len(keywordCols))
	args = append(args, id)
	for i := 0; i < analysis.KeywordSlots; i++ {
		wc := analysis.WordCount{Word: analysis.Placeholder}
		if i < len(s.Keywords) {
			wc = s.Keywords[i]
		}
		args = append(args, wc.Word, wc.Count)
	}
	if _, err := db.ExecContext(ctx, upsertKeywordsSQL, args...); err != nil {
		return fmt.Errorf("upsert keywords: %w", err)
	}
	return nil
}

func pad(texts []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = analysis.Placeholder
		if i < len(texts) {
			out[i] = texts[i]
		}
	}
	return out
}

// IsProcessed reports whether a product already has a stored report.
func IsProcessed(ctx context.Context, db DBExecutor, productID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_reports WHERE product_id = ?`, productID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ProcessedIDs returns the ids of every product with a stored report.
func ProcessedIDs(ctx context.Context, db DBExecutor) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT product_id FROM analysis_reports`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// StartRun records a new run.
func StartRun(ctx context.Context, db DBExecutor, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id must be non-empty")
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, review_dir, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.ReviewDir, run.Status, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run.
func FinishRun(ctx context.Context, db DBExecutor, run Run) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	res, err := db.ExecContext(ctx,
		`UPDATE analysis_runs SET status = ?, processed = ?, skipped = ?, failed = ?, finished_at = ? WHERE id = ?`,
		run.Status, run.Processed, run.Skipped, run.Failed, formatTime(finished), run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, review_dir, status, processed, skipped, failed, started_at, finished_at`

func scanRun(row *sql.Row) (Run, error) {
	var r Run
	var started string
	var finished sql.NullString
	err := row.Scan(&r.ID, &r.ReviewDir, &r.Status, &r.Processed, &r.Skipped, &r.Failed, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = parseTime(started)
	if finished.Valid {
		t := parseTime(finished.String)
		r.FinishedAt = &t
	}
	return r, nil
}

// GetRun loads one run by id.
func GetRun(ctx context.Context, db DBExecutor, id string) (Run, error) {
	return scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id))
}

// LatestRun returns the most recently started run.
func LatestRun(ctx context.Context, db DBExecutor) (Run, error) {
	return scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs ORDER BY started_at DESC LIMIT 1`))
}

// UpsertProduct inserts or refreshes a catalog entry. Empty fields do not
// overwrite stored values.
func UpsertProduct(ctx context.Context, db DBExecutor, p Product, at time.Time) error {
	id := strings.TrimSpace(p.ProductID)
	if id == "" {
		return fmt.Errorf("product id must be non-empty")
	}
	_, err := db.ExecContext(ctx, `INSERT INTO products (product_id, title, price, price_text, sales, shop_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
		  title = COALESCE(NULLIF(excluded.title, ''), products.title),
		  price = COALESCE(excluded.price, products.price),
		  price_text = COALESCE(NULLIF(excluded.price_text, ''), products.price_text),
		  sales = COALESCE(NULLIF(excluded.sales, ''), products.sales),
		  shop_name = COALESCE(NULLIF(excluded.shop_name, ''), products.shop_name),
		  updated_at = excluded.updated_at`,
		id, p.Title, p.Price, p.PriceText, p.Sales, p.ShopName, formatTime(at))
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

const overviewQuery = `SELECT r.product_id, COALESCE(p.title, ''), p.price, COALESCE(p.price_text, ''),
	COALESCE(p.sales, ''), COALESCE(p.shop_name, ''),
	r.total_reviews, r.positive_reviews, r.negative_reviews, r.overall_score, r.run_id, r.analyzed_at
	FROM analysis_reports r LEFT JOIN products p ON p.product_id = r.product_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanOverview(s scanner) (ProductOverview, error) {
	var o ProductOverview
	var price sql.NullFloat64
	var analyzed string
	err := s.Scan(&o.ProductID, &o.Title, &price, &o.PriceText, &o.Sales, &o.ShopName,
		&o.TotalReviews, &o.PositiveReviews, &o.NegativeReviews, &o.Overall, &o.RunID, &analyzed)
	if err != nil {
		return ProductOverview{}, err
	}
	if price.Valid {
		v := price.Float64
		o.Price = &v
	}
	o.AnalyzedAt = parseTime(analyzed)
	return o, nil
}

// ListProducts returns every analysed product ordered by id, with scores.
func ListProducts(ctx context.Context, db DBExecutor) ([]ProductOverview, error) {
	rows, err := db.QueryContext(ctx, overviewQuery+` ORDER BY r.product_id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	var out []ProductOverview
	for rows.Next() {
		o, err := scanOverview(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scores, err := loadScores(ctx, db, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Scores = scores[out[i].ProductID]
	}
	return out, nil
}

// loadScores groups stored scores by product; a non-empty productID limits
// the query to that product.
func loadScores(ctx context.Context, db DBExecutor, productID string) (map[string]analysis.Scores, error) {
	q := `SELECT product_id, category, category_key, score FROM scores`
	var args []any
	if productID != "" {
		q += ` WHERE product_id = ?`
		args = append(args, productID)
	}
	rows, err := db.QueryContext(ctx, q+` ORDER BY product_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	defer rows.Close()
	out := make(map[string]analysis.Scores)
	for rows.Next() {
		var id string
		var c analysis.CategoryScore
		if err := rows.Scan(&id, &c.Name, &c.Key, &c.Score); err != nil {
			return nil, err
		}
		out[id] = append(out[id], c)
	}
	return out, rows.Err()
}

// GetProductDetail loads everything stored for one product.
func GetProductDetail(ctx context.Context, db DBExecutor, productID string) (ProductDetail, error) {
	o, err := scanOverview(db.QueryRowContext(ctx, overviewQuery+` WHERE r.product_id = ?`, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return ProductDetail{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return ProductDetail{}, err
	}
	d := ProductDetail{ProductOverview: o}

	scores, err := loadScores(ctx, db, productID)
	if err != nil {
		return ProductDetail{}, err
	}
	d.Scores = scores[productID]

	var reportJSON string
	if err := db.QueryRowContext(ctx, `SELECT report_json FROM analysis_reports WHERE product_id = ?`, productID).Scan(&reportJSON); err != nil {
		return ProductDetail{}, fmt.Errorf("load report: %w", err)
	}
	if err := json.UnmarshalFromString(reportJSON, &d.Report); err != nil {
		return ProductDetail{}, fmt.Errorf("decode report: %w", err)
	}

	samples := make([]string, 2*analysis.SampleSlots)
	dest := make([]any, len(samples))
	for i := range samples {
		dest[i] = &samples[i]
	}
	err = db.QueryRowContext(ctx, `SELECT pos1, pos2, pos3, neg1, neg2, neg3 FROM sample_reviews WHERE product_id = ?`, productID).Scan(dest...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ProductDetail{}, fmt.Errorf("load samples: %w", err)
	}
	if err == nil {
		d.PositiveSamples = samples[:analysis.SampleSlots]
		d.NegativeSamples = samples[analysis.SampleSlots:]
	}

	d.Keywords, err = loadKeywords(ctx, db, productID)
	if err != nil {
		return ProductDetail{}, err
	}
	return d, nil
}

func loadKeywords(ctx context.Context, db DBExecutor, productID string) ([]analysis.WordCount, error) {
	words := make([]analysis.WordCount, analysis.KeywordSlots)
	dest := make([]any, 0, len(keywordCols))
	for i := range words {
		dest = append(dest, &words[i].Word, &words[i].Count)
	}
	q := fmt.Sprintf(`SELECT %s FROM keywords_frequency WHERE product_id = ?`, strings.Join(keywordCols, ", "))
	err := db.QueryRowContext(ctx, q, productID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	return words, nil
}
