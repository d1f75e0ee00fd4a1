package memory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const exportSeparator = "--------------------------"

// ExportText renders a character's memory archive as plain text: refined
// summaries first (by key), then every fragment in ascending date order
// under year and month headings.
func ExportText(name string, fragments []Fragment, refined RefinedIndex, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "【角色档案】\nName: %s\nExported: %s\n\n", name, now.Format("2006-01-02 15:04:05"))

	if len(refined) > 0 {
		b.WriteString("=== 核心记忆 (AI精炼版) ===\n")
		for _, k := range refined.Keys() {
			fmt.Fprintf(&b, "[%s]: %s\n", k, refined[k])
		}
		b.WriteString("\n=== 详细日志 ===\n")
	}

	sorted := make([]Fragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	var curYear, curMonth string
	for _, f := range sorted {
		if y, m, ok := ParseMonth(f.Date); ok {
			if y != curYear {
				fmt.Fprintf(&b, "\n[ %s年 ]\n", y)
				curYear, curMonth = y, ""
			}
			if m != curMonth {
				n, _ := strconv.Atoi(m)
				fmt.Fprintf(&b, "\n-- %d月 --\n\n", n)
				curMonth = m
			}
		}
		mood := ""
		if f.Mood != "" {
			mood = " (#" + f.Mood + ")"
		}
		fmt.Fprintf(&b, "📅 %s%s\n%s\n\n%s\n\n", f.Date, mood, f.Summary, exportSeparator)
	}
	return b.String()
}
