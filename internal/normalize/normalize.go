package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	nonSlugRe  = regexp.MustCompile(`[^a-z0-9]+`)
	edgeDashRe = regexp.MustCompile(`^-+|-+$`)
)

// CollapseWhitespace trims and folds runs of whitespace (NBSP included) into
// single spaces.
func CollapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00A0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Key derives the stable artifact key from a display name. Case, accents and
// punctuation do not affect the result, so "Jane Q. Doe" and "jane q. doe"
// collide on purpose. Empty names must be rejected by the caller before key
// derivation.
func Key(displayName string) string {
	s := strings.ToLower(CollapseWhitespace(displayName))
	s = stripDiacritics(s)
	s = nonSlugRe.ReplaceAllString(s, "-")
	return edgeDashRe.ReplaceAllString(s, "")
}

func stripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if folded, ok := asciiFold[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Common Latin-1 letters seen in staff names. Anything else passes through
// and lands in the slug's dash folding.
var asciiFold = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'ç': 'c',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ñ': 'n',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ý': 'y', 'ÿ': 'y',
}

// officeLocations maps the variants staff type into the location field to
// canonical office names. Unrecognized input is passed through title-cased
// rather than dropped.
var officeLocations = map[string]string{
	"new york":      "New York",
	"ny":            "New York",
	"nyc":           "New York",
	"new york city": "New York",
	"shanghai":      "Shanghai",
	"california":    "California",
	"ca":            "California",
	"los angeles":   "California",
	"san francisco": "California",
	"sf":            "California",
}

// OfficeLocation canonicalizes an office-location string.
func OfficeLocation(raw string) string {
	cleaned := strings.ToLower(CollapseWhitespace(raw))
	if cleaned == "" {
		return ""
	}
	if canonical, ok := officeLocations[cleaned]; ok {
		return canonical
	}
	for variant, canonical := range officeLocations {
		// Short variants are exact-match only: "ca" must not hit "chicago".
		if len(variant) > 3 && strings.Contains(cleaned, variant) {
			return canonical
		}
	}
	return titleCase(cleaned)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
