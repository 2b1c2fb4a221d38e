package lexicon

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OtherCategory is the bucket for nouns that match no configured category.
const OtherCategory = "其他"

// Category is one product aspect and the literal keywords that trigger it.
type Category struct {
	Name     string   `yaml:"name"`
	Key      string   `yaml:"key"` // column name used by the score table
	Keywords []string `yaml:"keywords"`
}

// CategoryTable is an ordered list of categories. Order matters: when a word
// appears under more than one category the earliest one wins.
type CategoryTable struct {
	categories []Category
	// index maps keyword -> position of the first category listing it.
	index map[string]int
}

// DefaultCategories returns the built-in router aspect table.
func DefaultCategories() CategoryTable {
	t, _ := NewCategoryTable([]Category{
		{Name: "信号", Key: "signal_score", Keywords: []string{"信号", "穿墙", "覆盖", "强度", "接收"}},
		{Name: "性能", Key: "performance", Keywords: []string{"速度", "带宽", "传输", "延迟", "丢包", "卡顿"}},
		{Name: "稳定性", Key: "stability", Keywords: []string{"稳定", "断流", "掉线", "重启", "波动"}},
		{Name: "操作", Key: "usability", Keywords: []string{"设置", "界面", "APP", "管理", "配置", "固件"}},
		{Name: "硬件", Key: "hardware", Keywords: []string{"外观", "材质", "接口", "天线", "散热", "发热", "温度"}},
		{Name: "服务", Key: "service", Keywords: []string{"售后", "保修", "客服", "咨询", "回复"}},
		{Name: "性价比", Key: "cost_effectiveness", Keywords: []string{"价格", "划算", "优惠", "赠品", "价值"}},
	})
	return t
}

// NewCategoryTable validates categories and builds the first-match index.
func NewCategoryTable(categories []Category) (CategoryTable, error) {
	if len(categories) == 0 {
		return CategoryTable{}, errors.New("category table is empty")
	}
	seen := make(map[string]bool, len(categories))
	idx := make(map[string]int)
	cats := make([]Category, 0, len(categories))
	for i, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return CategoryTable{}, fmt.Errorf("category %d has no name", i)
		}
		if name == OtherCategory {
			return CategoryTable{}, fmt.Errorf("category name %q is reserved", OtherCategory)
		}
		if seen[name] {
			return CategoryTable{}, fmt.Errorf("duplicate category %q", name)
		}
		seen[name] = true
		key := strings.TrimSpace(c.Key)
		if key == "" {
			key = name
		}
		kws := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			kws = append(kws, kw)
			if _, taken := idx[kw]; !taken {
				idx[kw] = i
			}
		}
		cats = append(cats, Category{Name: name, Key: key, Keywords: kws})
	}
	return CategoryTable{categories: cats, index: idx}, nil
}

// Categories returns a copy of the ordered categories.
func (t CategoryTable) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// Names returns the category names in table order.
func (t CategoryTable) Names() []string {
	names := make([]string, len(t.categories))
	for i, c := range t.categories {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of categories.
func (t CategoryTable) Len() int { return len(t.categories) }

// Match returns the first category listing word.
func (t CategoryTable) Match(word string) (string, bool) {
	i, ok := t.index[word]
	if !ok {
		return "", false
	}
	return t.categories[i].Name, true
}

type categoryFile struct {
	Categories []Category `yaml:"categories"`
}

// LoadCategories reads a YAML category table. An empty path or missing file
// falls back to DefaultCategories and the Origin is marked Defaulted; a file
// that exists but does not parse is an error.
func LoadCategories(path string) (CategoryTable, Origin, error) {
	origin := Origin{Path: path}
	if path == "" {
		origin.Defaulted = true
		origin.Err = errors.New("no path configured")
		return DefaultCategories(), origin, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			origin.Defaulted = true
			origin.Err = err
			return DefaultCategories(), origin, nil
		}
		return CategoryTable{}, origin, fmt.Errorf("read categories: %w", err)
	}
	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return CategoryTable{}, origin, fmt.Errorf("parse categories: %w", err)
	}
	t, err := NewCategoryTable(f.Categories)
	if err != nil {
		return CategoryTable{}, origin, fmt.Errorf("categories %s: %w", path, err)
	}
	return t, origin, nil
}
