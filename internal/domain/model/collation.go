package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collation orders names the way people of a given locale expect.
// The zero value uses the root collation.
type Collation struct {
	tag language.Tag
}

// DefaultCollation orders names by English rules.
var DefaultCollation = Collation{tag: language.English}

// ParseCollation builds a Collation from a BCP 47 tag such as "en" or "de-CH".
func ParseCollation(locale string) (Collation, error) {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return Collation{}, fmt.Errorf("parse collation locale %q: %w", locale, err)
	}
	return Collation{tag: tag}, nil
}

// String returns the locale tag.
func (c Collation) String() string { return c.tag.String() }

// Comparer returns a three-way name comparison for c.
// The returned func is not safe for concurrent use.
func (c Collation) Comparer() func(a, b string) int {
	return collate.New(c.tag).CompareString
}

// ComparePersons orders by name under cmp, then by ID.
func ComparePersons(cmp func(a, b string) int, a, b Person) int {
	if n := cmp(a.Name, b.Name); n != 0 {
		return n
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
