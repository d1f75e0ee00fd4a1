package chat

import (
	"regexp"
	"strings"

	"github.com/bdobrica/aether/internal/aether/memory"
)

// recallPattern matches a recall directive such as [[RECALL: 2023-05]].
// The separator class is shared with fragment date parsing.
var recallPattern = regexp.MustCompile(`\[\[RECALL:\s*(\d{4})` + memory.MonthSeparators + `(\d{1,2})\s*\]\]`)

// directiveResidue matches any directive marker, well-formed or not, so the
// final text never carries one.
var directiveResidue = regexp.MustCompile(`\[\[RECALL[^\]]*(\]\])?`)

// Placeholder is delivered when a reply is empty after stripping.
const Placeholder = "..."

// ParseRecall reports the year and month requested by a recall directive in
// reply. The month is returned zero-padded.
func ParseRecall(reply string) (year, month string, ok bool) {
	m := recallPattern.FindStringSubmatch(reply)
	if m == nil {
		return "", "", false
	}
	year, month, ok = memory.ParseMonth(m[1] + "-" + m[2])
	return year, month, ok
}

// FinalText strips every directive marker from reply and trims it. An empty
// result becomes Placeholder.
func FinalText(reply string) string {
	text := strings.TrimSpace(directiveResidue.ReplaceAllString(reply, ""))
	if text == "" {
		return Placeholder
	}
	return text
}
