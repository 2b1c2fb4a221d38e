// Package export writes product summaries to flat files: the three CSV
// tables consumed by spreadsheet users and one JSON report per product.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/japaniel/wifireview/pkg/analysis"
	"github.com/japaniel/wifireview/pkg/lexicon"
)

// File names inside the output directory.
const (
	KeywordsFile = "keywords.csv"
	ScoresFile   = "scores.csv"
	SamplesFile  = "sampled_reviews.csv"
)

// bom makes Excel detect UTF-8.
const bom = "\ufeff"

// KeywordsHeader is id followed by 关键词i/频率i pairs.
func KeywordsHeader() []string {
	h := make([]string, 0, 1+2*analysis.KeywordSlots)
	h = append(h, "id")
	for i := 1; i <= analysis.KeywordSlots; i++ {
		h = append(h, fmt.Sprintf("关键词%d", i), fmt.Sprintf("频率%d", i))
	}
	return h
}

// SamplesHeader is product_id followed by pos1..posN and neg1..negN.
func SamplesHeader() []string {
	h := []string{"product_id"}
	for _, prefix := range []string{"pos", "neg"} {
		for i := 1; i <= analysis.SampleSlots; i++ {
			h = append(h, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	return h
}

type table struct {
	f *os.File
	w *csv.Writer
	// ids already present in the file; a product gets at most one row.
	ids map[string]bool
}

// openTable creates path with a BOM and header, or appends to it when it
// already holds data and truncate is false.
func openTable(path string, header []string, truncate bool) (*table, error) {
	fresh := truncate
	if !fresh {
		info, err := os.Stat(path)
		fresh = err != nil || info.Size() == 0
	}
	flags := os.O_CREATE | os.O_WRONLY
	if fresh {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	ids := make(map[string]bool)
	if !fresh {
		var err error
		if ids, err = readIDs(path); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	t := &table{f: f, w: csv.NewWriter(f), ids: ids}
	if fresh {
		if _, err := f.WriteString(bom); err != nil {
			f.Close()
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		if err := t.write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return t, nil
}

// readIDs collects the first column of every data row of an existing table.
func readIDs(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	ids := make(map[string]bool)
	header := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) > 0 {
			ids[rec[0]] = true
		}
	}
}

// add writes row unless its product already has one.
func (t *table) add(row []string) error {
	if t.ids[row[0]] {
		return nil
	}
	if err := t.write(row); err != nil {
		return err
	}
	t.ids[row[0]] = true
	return nil
}

// write emits one row and flushes it so rows of finished products survive
// an interrupted run.
func (t *table) write(row []string) error {
	if err := t.w.Write(row); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

func (t *table) close() error {
	t.w.Flush()
	return errors.Join(t.w.Error(), t.f.Close())
}

// CSVSink appends one row per product to keywords.csv, scores.csv and
// sampled_reviews.csv.
type CSVSink struct {
	keywords *table
	scores   *table
	samples  *table
}

// NewCSVSink opens the three tables under dir, creating dir if needed.
// With truncate the tables are rewritten; otherwise rows are appended so a
// resumed run extends the output of the previous one. A product that already
// has a row keeps it; products re-analysed after a failed store write do not
// get a second row.
func NewCSVSink(dir string, categories lexicon.CategoryTable, truncate bool) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	s := &CSVSink{}
	var err error
	if s.keywords, err = openTable(filepath.Join(dir, KeywordsFile), KeywordsHeader(), truncate); err != nil {
		return nil, err
	}
	scoreHeader := append([]string{"id"}, categories.Names()...)
	if s.scores, err = openTable(filepath.Join(dir, ScoresFile), scoreHeader, truncate); err != nil {
		s.keywords.close()
		return nil, err
	}
	if s.samples, err = openTable(filepath.Join(dir, SamplesFile), SamplesHeader(), truncate); err != nil {
		s.keywords.close()
		s.scores.close()
		return nil, err
	}
	return s, nil
}

// Write appends the rows of one product, skipping tables that already hold it.
func (s *CSVSink) Write(ctx context.Context, runID string, sum analysis.Summary) error {
	if err := s.keywords.add(keywordRow(sum)); err != nil {
		return fmt.Errorf("keywords row: %w", err)
	}
	if err := s.scores.add(scoreRow(sum)); err != nil {
		return fmt.Errorf("scores row: %w", err)
	}
	if err := s.samples.add(sampleRow(sum)); err != nil {
		return fmt.Errorf("samples row: %w", err)
	}
	return nil
}

// Close flushes and closes every table.
func (s *CSVSink) Close() error {
	return errors.Join(s.keywords.close(), s.scores.close(), s.samples.close())
}

func keywordRow(sum analysis.Summary) []string {
	row := make([]string, 0, 1+2*analysis.KeywordSlots)
	row = append(row, sum.ProductID)
	for i := 0; i < analysis.KeywordSlots; i++ {
		wc := analysis.WordCount{Word: analysis.Placeholder}
		if i < len(sum.Keywords) {
			wc = sum.Keywords[i]
		}
		row = append(row, wc.Word, strconv.Itoa(wc.Count))
	}
	return row
}

func scoreRow(sum analysis.Summary) []string {
	row := make([]string, 0, 1+len(sum.Scores))
	row = append(row, sum.ProductID)
	for _, c := range sum.Scores {
		row = append(row, FormatScore(c.Score))
	}
	return row
}

func sampleRow(sum analysis.Summary) []string {
	row := []string{sum.ProductID}
	row = append(row, padTexts(sum.PositiveSamples)...)
	return append(row, padTexts(sum.NegativeSamples)...)
}

func padTexts(texts []string) []string {
	out := make([]string, analysis.SampleSlots)
	for i := range out {
		out[i] = analysis.Placeholder
		if i < len(texts) {
			out[i] = texts[i]
		}
	}
	return out
}

// FormatScore renders a score without trailing zeros ("9.4", "5").
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
