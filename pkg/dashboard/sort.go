package dashboard

import (
	"cmp"
	"slices"

	"github.com/japaniel/wifireview/pkg/db"
)

// Built-in sort keys. Category keys (signal_score, stability, ...) are
// accepted as well and sort by that category's score.
const (
	SortOverall   = "overall"
	SortReviews   = "reviews"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// SortOption is one choice offered on the ranking page.
type SortOption struct {
	Key   string
	Label string
	// Category is set when the option sorts by a category score.
	Category string
}

// SortOptions lists the built-in options followed by one per category
// found in the stored scores.
func SortOptions(products []db.ProductOverview) []SortOption {
	opts := []SortOption{
		{Key: SortOverall, Label: "综合评分"},
		{Key: SortReviews, Label: "评论数"},
		{Key: SortPriceAsc, Label: "价格 (低到高)"},
		{Key: SortPriceDesc, Label: "价格 (高到低)"},
	}
	seen := map[string]bool{}
	for _, p := range products {
		for _, c := range p.Scores {
			if seen[c.Key] {
				continue
			}
			seen[c.Key] = true
			opts = append(opts, SortOption{Key: c.Key, Label: c.Name, Category: c.Name})
		}
	}
	return opts
}

// ResolveSort maps a sort_by value to an option. Category names work as
// well as keys; anything unknown falls back to the overall score.
func ResolveSort(sortBy string, opts []SortOption) SortOption {
	for _, o := range opts {
		if o.Key == sortBy || (o.Category != "" && o.Category == sortBy) {
			return o
		}
	}
	return opts[0]
}

// SortProducts orders products in place. Score and review sorts are
// descending; products without a price sort after priced ones. Ties keep
// product id order.
func SortProducts(products []db.ProductOverview, opt SortOption) {
	slices.SortStableFunc(products, func(a, b db.ProductOverview) int {
		switch {
		case opt.Category != "":
			return cmp.Compare(categoryScore(b, opt.Category), categoryScore(a, opt.Category))
		case opt.Key == SortReviews:
			return cmp.Compare(b.TotalReviews, a.TotalReviews)
		case opt.Key == SortPriceAsc || opt.Key == SortPriceDesc:
			if a.Price == nil || b.Price == nil {
				return boolRank(a.Price == nil) - boolRank(b.Price == nil)
			}
			if opt.Key == SortPriceAsc {
				return cmp.Compare(*a.Price, *b.Price)
			}
			return cmp.Compare(*b.Price, *a.Price)
		default:
			return cmp.Compare(b.Overall, a.Overall)
		}
	})
}

func categoryScore(p db.ProductOverview, name string) float64 {
	for _, c := range p.Scores {
		if c.Name == name {
			return c.Score
		}
	}
	return 0
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
