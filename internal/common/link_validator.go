package common

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Link lists (linkedCharacters, linkedPlots, tags ...) are opaque identifier
// lists. Broken links are tolerated, only blank and duplicated entries are dropped.

// maxLinkLength bounds a single identifier or tag, in characters
const maxLinkLength = 200

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// NormalizeLinks trims every entry, drops blanks and duplicates, and keeps the
// first-seen order. The result is never nil.
func NormalizeLinks(links []string) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		link = strings.TrimSpace(controlChars.ReplaceAllString(link, ""))
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

// ValidateLinks rejects link entries that exceed the identifier length limit
func ValidateLinks(field string, links []string) error {
	for _, link := range links {
		if utf8.RuneCountInString(link) > maxLinkLength {
			return NewValidationError(field, "entry exceeds 200 characters")
		}
	}
	return nil
}
