package catalog

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NewLabelCollator returns a collator that compares labels at base strength:
// case and accents are ignored.
func NewLabelCollator(tag language.Tag) *collate.Collator {
	return collate.New(tag, collate.IgnoreCase, collate.IgnoreDiacritics)
}

// CompareLabels compares two labels with base-strength collation.
func CompareLabels(c *collate.Collator, a, b string) int {
	return c.CompareString(a, b)
}

// SortByLabel orders rows by their label column, stable on ties.
func SortByLabel(rows []Row, tag language.Tag) {
	c := NewLabelCollator(tag)
	sort.SliceStable(rows, func(i, j int) bool {
		return c.CompareString(rows[i].String("label"), rows[j].String("label")) < 0
	})
}
