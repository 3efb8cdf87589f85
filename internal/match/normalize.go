package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize converts the input in to the canonical form used when
// comparing entity names against file paths:
//   - compatibility decomposition, with combining marks removed (é -> e),
//   - case folded,
//   - every run of characters which are not letters or digits (path
//     separators, dots, underscores, dashes, whitespace) collapsed
//     to a single space,
//   - leading/trailing space trimmed.
//
// The transformers used here are stateful, so a fresh chain is
// constructed for each call.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}

	var sb strings.Builder
	sb.Grow(len(folded))

	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
			}
			pendingSpace = false
			sb.WriteRune(r)
		} else {
			pendingSpace = true
		}
	}

	return sb.String()
}
