package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/japaniel/wifireview/pkg/analysis"
)

// ReportsDir is the directory, relative to the output dir, holding one
// JSON artifact per product.
const ReportsDir = "reports"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReportArtifact is the content of reports/<id>.json.
type ReportArtifact struct {
	ProductID string               `json:"product_id"`
	RunID     string               `json:"run_id"`
	Overall   float64              `json:"overall_score"`
	Report    analysis.Report      `json:"report"`
	Scores    analysis.Scores      `json:"scores"`
	Keywords  []analysis.WordCount `json:"keywords"`
}

// ReportSink writes one indented JSON file per product.
type ReportSink struct {
	dir string
}

// NewReportSink creates <outDir>/reports.
func NewReportSink(outDir string) (*ReportSink, error) {
	dir := filepath.Join(outDir, ReportsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	return &ReportSink{dir: dir}, nil
}

// Path returns the artifact path of a product.
func (s *ReportSink) Path(productID string) string {
	return filepath.Join(s.dir, productID+".json")
}

// Write replaces the product's artifact. The file is written next to its
// final name and renamed so readers never see a partial report.
func (s *ReportSink) Write(ctx context.Context, runID string, sum analysis.Summary) error {
	if strings.ContainsAny(sum.ProductID, `/\`) || sum.ProductID == "" {
		return fmt.Errorf("invalid product id %q", sum.ProductID)
	}
	report := sum.Report
	report.FeatureScores = sum.Scores.Map()
	data, err := json.MarshalIndent(ReportArtifact{
		ProductID: sum.ProductID,
		RunID:     runID,
		Overall:   sum.Scores.Overall(),
		Report:    report,
		Scores:    sum.Scores,
		Keywords:  nonPlaceholder(sum.Keywords),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	path := s.Path(sum.ProductID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Close is a no-op; every Write is complete on return.
func (s *ReportSink) Close() error { return nil }

// ReadReport loads an artifact written by ReportSink.
func ReadReport(path string) (ReportArtifact, error) {
	var a ReportArtifact
	data, err := os.ReadFile(path)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("decode %s: %w", path, err)
	}
	return a, nil
}

func nonPlaceholder(words []analysis.WordCount) []analysis.WordCount {
	out := make([]analysis.WordCount, 0, len(words))
	for _, w := range words {
		if w.Word == analysis.Placeholder && w.Count == 0 {
			continue
		}
		out = append(out, w)
	}
	return out
}
