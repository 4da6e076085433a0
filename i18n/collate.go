package i18n

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator orders display strings by locale collation on case-folded text.
// A Collator is not safe for concurrent use.
type Collator struct {
	collator *collate.Collator
	folder   cases.Caser
}

// NewCollator returns a collator for tag.
func NewCollator(tag language.Tag) *Collator {
	return &Collator{
		collator: collate.New(tag, collate.IgnoreCase),
		folder:   cases.Fold(),
	}
}

// Compare returns -1, 0 or +1 as a sorts before, equal to or after b.
func (c *Collator) Compare(a, b string) int {
	return c.collator.CompareString(c.folder.String(a), c.folder.String(b))
}

// Fold returns the case-folded form of s used for comparisons.
func Fold(s string) string {
	return cases.Fold().String(s)
}
