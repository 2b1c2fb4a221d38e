package dashboard

import (
	"fmt"
	"html"
	"html/template"
	"slices"
	"strings"

	"github.com/russross/blackfriday/v2"

	"github.com/japaniel/wifireview/pkg/analysis"
)

// SummaryMarkdown describes a report as Markdown: one section for 优点 and
// one for 缺点, each listing the feature words of every category.
func SummaryMarkdown(r analysis.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "共 %d 条评论，正面 %d 条，负面 %d 条。\n\n",
		r.Statistics.Total, r.Statistics.Positive, r.Statistics.Negative)
	section(&b, "优点", r.Positive)
	section(&b, "缺点", r.Negative)
	return b.String()
}

func section(b *strings.Builder, title string, cats map[string][]analysis.WordCount) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(cats) == 0 {
		b.WriteString("暂无\n\n")
		return
	}
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		words := make([]string, 0, len(cats[name]))
		for _, wc := range cats[name] {
			words = append(words, fmt.Sprintf("%s (%d)", html.EscapeString(wc.Word), wc.Count))
		}
		fmt.Fprintf(b, "- **%s**: %s\n", html.EscapeString(name), strings.Join(words, "、"))
	}
	b.WriteString("\n")
}

// RenderSummary renders SummaryMarkdown to HTML. Words are escaped before
// they reach the Markdown, so the output is safe to embed.
func RenderSummary(r analysis.Report) template.HTML {
	out := blackfriday.Run([]byte(SummaryMarkdown(r)), blackfriday.WithExtensions(blackfriday.CommonExtensions))
	return template.HTML(out)
}
