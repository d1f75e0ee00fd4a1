package memory

import (
	"sort"
	"unicode/utf8"
)

// Tree is the year → month → fragments hierarchy. Years and months are
// ordered descending by key; fragments within a month are ordered by their
// raw date string, descending.
type Tree []YearNode

// YearNode is one year bucket of the tree.
type YearNode struct {
	Year   string      `json:"year"`
	Months []MonthNode `json:"months"`
}

// MonthNode is one month bucket of a year.
type MonthNode struct {
	Month     string     `json:"month"`
	Fragments []Fragment `json:"fragments"`
}

// Stats are aggregate figures over a fragment list.
type Stats struct {
	TotalChars int `json:"total_chars"` // characters (runes) across all summaries
	Count      int `json:"count"`
}

// BuildTree groups fragments into year/month buckets and computes stats.
// It is pure: the same input always yields the same tree, and every input
// fragment lands in exactly one bucket.
func BuildTree(fragments []Fragment) (Tree, Stats) {
	stats := Stats{Count: len(fragments)}
	buckets := make(map[string]map[string][]Fragment)

	for _, f := range fragments {
		stats.TotalChars += utf8.RuneCountInString(f.Summary)

		year, month := bucketOf(f.Date)
		if buckets[year] == nil {
			buckets[year] = make(map[string][]Fragment)
		}
		buckets[year][month] = append(buckets[year][month], f)
	}

	tree := make(Tree, 0, len(buckets))
	for _, year := range sortedDesc(buckets) {
		months := buckets[year]
		node := YearNode{Year: year, Months: make([]MonthNode, 0, len(months))}
		for _, month := range sortedDesc(months) {
			frags := months[month]
			sort.SliceStable(frags, func(i, j int) bool { return frags[i].Date > frags[j].Date })
			node.Months = append(node.Months, MonthNode{Month: month, Fragments: frags})
		}
		tree = append(tree, node)
	}
	return tree, stats
}

// Month returns the fragments of one bucket, or nil when the bucket does
// not exist.
func (t Tree) Month(year, month string) []Fragment {
	for _, y := range t {
		if y.Year != year {
			continue
		}
		for _, m := range y.Months {
			if m.Month == month {
				return m.Fragments
			}
		}
	}
	return nil
}

// Count returns the number of fragments filed under the year.
func (y YearNode) Count() int {
	n := 0
	for _, m := range y.Months {
		n += len(m.Fragments)
	}
	return n
}

func sortedDesc[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}
