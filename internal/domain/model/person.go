// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// DefaultMaxNameLength bounds person and action names, in runes.
const DefaultMaxNameLength = 100

// Person is somebody who collects points.
type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NormalizeName trims surrounding whitespace from a user supplied name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// NameKey returns the case-folded form used for uniqueness checks.
func NameKey(name string) string {
	// Casers are stateful, so one per call.
	return cases.Fold().String(NormalizeName(name))
}

// NameProblem describes why name is unusable, or returns "" when it is fine.
// The name is expected to be normalized already.
func NameProblem(name string, maxLen int) string {
	if name == "" {
		return "name must not be empty"
	}
	if maxLen > 0 && utf8.RuneCountInString(name) > maxLen {
		return "name must be at most " + strconv.Itoa(maxLen) + " characters"
	}
	return ""
}
