package compare

import (
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/net/html"
)

// DefaultDiffThreshold is the edit similarity under which two bodies count as different.
const DefaultDiffThreshold = 0.95

// EditSimilarity returns 1 - distance/maxLen using the Levenshtein distance over runes.
// Two empty strings are identical.
func EditSimilarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.Distance(a, b, nil)
	return 1.0 - float64(distance)/float64(maxLen)
}

// IsDifferentResponse checks if two responses are sufficiently different using Levenshtein distance.
// The cheap length bound is checked first: edit similarity never exceeds shorter/longer.
func IsDifferentResponse(original, modified string) bool {
	if len(original) == 0 && len(modified) == 0 {
		return false
	}
	shorter, longer := utf8.RuneCountInString(original), utf8.RuneCountInString(modified)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if float64(shorter)/float64(longer) < DefaultDiffThreshold {
		return true
	}
	return EditSimilarity(original, modified) < DefaultDiffThreshold
}

// VisibleText returns the text content of an HTML document with script and style
// blocks removed and whitespace collapsed. Non-HTML input comes back mostly unchanged.
func VisibleText(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isHidden(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHidden(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func isHidden(tag []byte) bool {
	switch string(tag) {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

// MatchesAny reports whether body is FuzzyEqual to any of the known pages,
// e.g. the failure pages recorded for a login form.
func MatchesAny(body string, known []string, threshold float64) bool {
	for _, k := range known {
		if FuzzyEqual(body, k, threshold) {
			return true
		}
	}
	return false
}
