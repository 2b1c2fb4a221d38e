package db

import (
	"time"

	"github.com/japaniel/wifireview/pkg/analysis"
)

// Product is a catalog entry imported from the shop listing export.
type Product struct {
	ProductID string   `json:"product_id"`
	Title     string   `json:"title"`
	Price     *float64 `json:"price,omitempty"`
	PriceText string   `json:"price_text,omitempty"`
	Sales     string   `json:"sales,omitempty"`
	ShopName  string   `json:"shop_name,omitempty"`
}

// Run states.
const (
	RunRunning     = "running"
	RunCompleted   = "completed"
	RunInterrupted = "interrupted"
)

// Run is the bookkeeping row of one batch invocation.
type Run struct {
	ID         string     `json:"id"`
	ReviewDir  string     `json:"review_dir"`
	Status     string     `json:"status"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ProductOverview is one ranking row: catalog data joined with the
// analysis headline numbers.
type ProductOverview struct {
	Product
	TotalReviews    int             `json:"total_reviews"`
	PositiveReviews int             `json:"positive_reviews"`
	NegativeReviews int             `json:"negative_reviews"`
	Overall         float64         `json:"overall_score"`
	Scores          analysis.Scores `json:"scores"`
	RunID           string          `json:"run_id"`
	AnalyzedAt      time.Time       `json:"analyzed_at"`
}

// ProductDetail adds everything else stored for a product.
type ProductDetail struct {
	ProductOverview
	Keywords        []analysis.WordCount `json:"keywords"`
	PositiveSamples []string             `json:"positive_samples"`
	NegativeSamples []string             `json:"negative_samples"`
	Report          analysis.Report      `json:"report"`
}
