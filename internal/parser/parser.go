package parser

import (
	"regexp"
	"strings"
)

// commentRegex matches a /* ... */ comment, including ones spanning lines.
var commentRegex = regexp.MustCompile(`(?s)/\*.*?\*/`)

// NormalizeSelector strips comments from a selector and collapses every run
// of whitespace to a single space. Case is preserved.
func NormalizeSelector(selector string) string {
	selector = commentRegex.ReplaceAllString(selector, "")
	return strings.Join(strings.Fields(selector), " ")
}
