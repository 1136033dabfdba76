package aggregator

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticsRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeVendorName folds a free-text vendor name to its matching form:
// trimmed, lowercased, diacritics stripped, inner whitespace collapsed.
func NormalizeVendorName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	stripped, _, err := transform.String(diacriticsRemover, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(stripped), " ")
}

// AliasTable maps known misspellings of vendor names (normalized form) to
// the canonical normalized name. It is data, not code: adding an alias is
// a table change, and Version lets reports state which table produced them.
type AliasTable struct {
	Version int
	Aliases map[string]string
}

// DefaultAliasTable carries the spelling variants seen in production
// invoice feeds so far.
func DefaultAliasTable() AliasTable {
	return AliasTable{
		Version: 2,
		Aliases: map[string]string{
			"billy cocinelle": "billy coccinelle",
			"atelier zoe":     "atelier zoe creations",
			"l atelier zoe":   "atelier zoe creations",
		},
	}
}

// Resolve returns the canonical normalized name for a raw display name,
// applying the alias table after normalization.
func (t AliasTable) Resolve(rawName string) string {
	normalized := NormalizeVendorName(rawName)
	if canonical, ok := t.Aliases[normalized]; ok {
		return canonical
	}
	return normalized
}
