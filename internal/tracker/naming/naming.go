// Package naming cleans raw company names as they appear across emails and
// derives the normalized matching key that serves as a company's true
// identity. Display names vary by whitespace, corporate suffixes and
// addressing artifacts; keys do not.
package naming

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxNameRunes caps cleaned names against garbage extraction.
const maxNameRunes = 50

var (
	spaceRe = regexp.MustCompile(`\s+`)
	// Trailing addressing clause: optional の + recruiting/HR department or
	// honorific, plus everything after it.
	addresseeRe = regexp.MustCompile(`(?:の)?(?:新卒採用(?:部|課|チーム)?|採用(?:担当|課|チーム)?|人事(?:部)?|御中|各位|様).*$`)
	bracketsRe = regexp.MustCompile(`[「」『』【】（）()]`)
	// The abbreviated corporate marker is removed as a unit during cleaning;
	// stripping the brackets alone would leave a stray 株 that no longer
	// reads as a marker.
	corpAbbrevRe = regexp.MustCompile(`（株）|\(株\)`)
	corpMarkRe   = regexp.MustCompile(`株式会社`)
	// Phrases that mean the "company name" was mis-scoped to email prose.
	boilerplateRe = regexp.MustCompile(`お世話になっております|ありがとうございます|ご連絡|以下の日程`)
)

// Clean normalizes a raw company name for display and persistence:
// NFKC fold, whitespace collapse, addressing-clause, abbreviated-marker and
// bracket removal, length cap. Clean is idempotent, and Key(Clean(raw))
// equals Key(raw): the stored display name derives the same matching key as
// the raw input it came from.
func Clean(raw string) string {
	s := norm.NFKC.String(raw)
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = addresseeRe.ReplaceAllString(s, "")
	s = corpAbbrevRe.ReplaceAllString(s, "")
	s = bracketsRe.ReplaceAllString(s, "")
	if r := []rune(s); len(r) > maxNameRunes {
		s = string(r[:maxNameRunes])
	}
	return strings.TrimSpace(s)
}

// Key derives the matching key for a raw name: cleaned, corporate markers
// stripped, whitespace removed, lower-cased. Two companies are the same
// company when their keys are equal. Keys are for lookup only and are never
// shown to the user.
func Key(raw string) string {
	s := corpMarkRe.ReplaceAllString(Clean(raw), "")
	s = spaceRe.ReplaceAllString(s, "")
	return strings.ToLower(s)
}

// IsBoilerplate reports whether a cleaned name is empty or looks like email
// greeting prose rather than a company name. Such names must not create
// company records.
func IsBoilerplate(clean string) bool {
	return clean == "" || boilerplateRe.MatchString(clean)
}
