// Package memory implements the tiered memory of a character: raw dated
// memory fragments, AI-refined monthly summaries ("core memories") and the
// detail lookup used when the model recalls a month mid-conversation.
//
// Fragments are organised into a year → month tree by parsing their free-form
// date strings. A month can be refined into a short summary through an
// external completion endpoint; refined summaries are stored under a
// "YYYY-MM" key and injected into every chat prompt as an index, while the
// raw fragments stay available for on-demand recall.
package memory

import (
	"fmt"
	"sort"
)

// Fragment is a single dated, free-text recollection attached to a character.
type Fragment struct {
	ID      string `json:"id" yaml:"id,omitempty"`
	Date    string `json:"date" yaml:"date"`       // free-form, e.g. "2023-05-10", "2023年5月", "unknown"
	Summary string `json:"summary" yaml:"summary"` // the recollection itself
	Mood    string `json:"mood,omitempty" yaml:"mood,omitempty"`
}

// RefinedIndex maps a "YYYY-MM" key to the refined summary for that month.
type RefinedIndex map[string]string

// Keys returns the index keys in ascending order.
func (r RefinedIndex) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MonthKey formats the refined-index key for a year and month. The month is
// zero-padded to two digits when it is numeric.
func MonthKey(year, month string) string {
	return year + "-" + padMonth(month)
}

func moodOr(mood, fallback string) string {
	if mood == "" {
		return fallback
	}
	return mood
}

func padMonth(month string) string {
	var n int
	if _, err := fmt.Sscanf(month, "%d", &n); err != nil || n < 0 || n > 99 {
		return month
	}
	return fmt.Sprintf("%02d", n)
}
