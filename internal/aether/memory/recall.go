package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoDetails is returned by Details when no fragment belongs to the
// requested month. It is not a failure of the conversation: the engine tells
// the model the recall missed and carries on.
var ErrNoDetails = errors.New("memory: no detailed logs for month")

// FragmentsForMonth returns the fragments whose date parses to the given
// year and month, in chronological (ascending date) order. Month may be
// unpadded ("5") or padded ("05").
func FragmentsForMonth(fragments []Fragment, year, month string) []Fragment {
	month = padMonth(month)
	var out []Fragment
	for _, f := range fragments {
		if y, m, ok := ParseMonth(f.Date); ok && y == year && m == month {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Details renders the detail block injected during a recall: one
// "[{date}] ({mood}): {summary}" line per matching fragment.
func Details(fragments []Fragment, year, month string) (string, error) {
	matches := FragmentsForMonth(fragments, year, month)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoDetails, MonthKey(year, month))
	}

	var b strings.Builder
	for i, f := range matches {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] (%s): %s", f.Date, moodOr(f.Mood, "normal"), f.Summary)
	}
	return b.String(), nil
}
