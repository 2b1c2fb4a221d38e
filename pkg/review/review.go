// Package review loads scraped per-product review files and prepares the
// records for analysis.
package review

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// JSON keys written by the scraper.
const (
	KeyName   = "name"
	KeyRating = "评分"
	KeySpec   = "产品"
	KeyDate   = "日期"
	KeyText   = "评论"
)

// ErrMalformedFile is returned when a review file is not a JSON list of
// objects, or when no record carries the text field.
var ErrMalformedFile = errors.New("malformed review file")

// meaningless are texts the shop fills in when the buyer wrote nothing.
var meaningless = map[string]bool{
	"此用户没有填写评价": true,
	"评价方未及时评价":  true,
}

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Record is one raw review object. Values are whatever the scraper wrote:
// strings, numbers, null, occasionally something else.
type Record map[string]any

// Review is a prepared review with a usable text.
type Review struct {
	Name   string
	Rating string
	Spec   string
	Date   string
	Text   string // raw, uncleaned
}

// ProductReviews are the records of one product file, in file order.
type ProductReviews struct {
	ProductID string
	Path      string
	Records   []Record
}

// Source is a review file found on disk.
type Source struct {
	ProductID string
	Path      string
}

// ProductID derives the product identifier from a review file name.
func ProductID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Discover lists the *.json files of dir in lexical order.
func Discover(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read review dir: %w", err)
	}
	var out []Source
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		out = append(out, Source{ProductID: ProductID(p), Path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// LoadFile reads one review file. An empty list is valid; anything that
// is not a list of objects, or a non-empty list where no record has a
// text field, yields an error wrapping ErrMalformedFile.
func LoadFile(path string) (ProductReviews, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProductReviews{}, fmt.Errorf("read %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return ProductReviews{}, fmt.Errorf("%w: %s: %v", ErrMalformedFile, path, err)
	}
	if len(records) > 0 && !anyHasText(records) {
		return ProductReviews{}, fmt.Errorf("%w: %s: no record has field %q", ErrMalformedFile, path, KeyText)
	}
	return ProductReviews{ProductID: ProductID(path), Path: path, Records: records}, nil
}

func anyHasText(records []Record) bool {
	for _, r := range records {
		if _, ok := r[KeyText]; ok {
			return true
		}
	}
	return false
}

// Prepare deduplicates records on (name, text), keeping the first, and
// drops records whose text is missing, null, not a string or one of the
// shop's placeholder texts. Order is preserved.
func Prepare(records []Record) []Review {
	seen := make(map[[2]string]bool, len(records))
	out := make([]Review, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		key := [2]string{r.field(KeyName), r.field(KeyText)}
		if seen[key] {
			continue
		}
		seen[key] = true

		text, ok := r[KeyText].(string)
		if !ok || meaningless[strings.TrimSpace(text)] {
			continue
		}
		out = append(out, Review{
			Name:   r.field(KeyName),
			Rating: r.field(KeyRating),
			Spec:   r.field(KeySpec),
			Date:   r.field(KeyDate),
			Text:   text,
		})
	}
	return out
}

// field renders a value as text. Missing and null values are "".
func (r Record) field(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer: // json.Number under UseNumber
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
