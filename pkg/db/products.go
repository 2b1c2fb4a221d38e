package db

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Column headers of the shop listing export.
const (
	ColProductID = "商品ID"
	ColTitle     = "标题"
	ColPrice     = "价格"
	ColSales     = "销量"
	ColShopName  = "店铺名"
)

// ImportProductsCSV upserts every row of a shop listing export into
// products. Only the product id column is required; rows without an id
// are skipped. It returns the number of rows stored.
func ImportProductsCSV(ctx context.Context, db DBExecutor, r io.Reader) (int, error) {
	df := dataframe.ReadCSV(skipBOM(r),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return 0, fmt.Errorf("read product csv: %w", df.Err)
	}

	cols := map[string][]string{}
	for _, name := range df.Names() {
		cols[strings.TrimSpace(name)] = df.Col(name).Records()
	}
	ids, ok := cols[ColProductID]
	if !ok {
		return 0, fmt.Errorf("product csv: missing column %q", ColProductID)
	}

	now := time.Now()
	n := 0
	for i, raw := range ids {
		p := Product{
			ProductID: cell(raw),
			Title:     cell(at(cols[ColTitle], i)),
			PriceText: cell(at(cols[ColPrice], i)),
			Sales:     cell(at(cols[ColSales], i)),
			ShopName:  cell(at(cols[ColShopName], i)),
		}
		if p.ProductID == "" {
			continue
		}
		if v, ok := ParsePrice(p.PriceText); ok {
			p.Price = &v
		}
		if err := UpsertProduct(ctx, db, p, now); err != nil {
			return n, fmt.Errorf("row %d: %w", i+2, err)
		}
		n++
	}
	return n, nil
}

// ParsePrice reads prices such as "¥199.00" or "1,299".
func ParsePrice(s string) (float64, bool) {
	s = strings.NewReplacer("¥", "", "￥", "", ",", "", "元", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func at(col []string, i int) string {
	if i < len(col) {
		return col[i]
	}
	return ""
}

// cell normalises a dataframe string cell; missing values come back as NaN.
func cell(s string) string {
	s = strings.TrimSpace(s)
	if s == "NaN" {
		return ""
	}
	return s
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	return br
}
