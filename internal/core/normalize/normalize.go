// Package normalize canonicalizes matched raw values and provides the
// tolerant text folding used by anchor and regex matching.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	phoneDigits    = regexp.MustCompile(`[^0-9]`)
)

// FoldAccents removes combining diacritics: "Situação" -> "Situacao".
func FoldAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// Collapse trims and collapses runs of whitespace into single spaces.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MatchKey folds a string for tolerant matching: accents stripped,
// whitespace collapsed, lowercased.
func MatchKey(s string) string {
	return strings.ToLower(Collapse(FoldAccents(s)))
}

// Field canonicalizes a matched raw value according to the field name:
// accents folded, whitespace collapsed, plus per-type formatting. Shape
// failures degrade to the best-effort folded raw value; a match is never
// rejected here.
func Field(key, value string) string {
	v := Collapse(FoldAccents(value))
	if v == "" {
		return ""
	}
	k := strings.ToLower(key)

	switch {
	case strings.Contains(k, "seccional") || k == "uf":
		v = strings.ReplaceAll(v, "UF", "")
		v = strings.ReplaceAll(v, ":", "")
		return strings.ToUpper(strings.TrimSpace(v))
	case strings.Contains(k, "situacao"):
		return strings.ToUpper(v)
	case strings.Contains(k, "categoria"):
		return strings.ToUpper(v)
	case strings.Contains(k, "telefone"):
		return formatPhone(v)
	default:
		return v
	}
}

// formatPhone renders Brazilian numbers as (DD) NNNNN-NNNN / (DD) NNNN-NNNN.
func formatPhone(v string) string {
	digits := phoneDigits.ReplaceAllString(v, "")
	switch len(digits) {
	case 11:
		return "(" + digits[:2] + ") " + digits[2:7] + "-" + digits[7:]
	case 10:
		return "(" + digits[:2] + ") " + digits[2:6] + "-" + digits[6:]
	default:
		return v
	}
}

// All applies Field to every entry of a value map, in place semantics on a
// fresh map.
func All(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = Field(k, v)
	}
	return out
}
