package domain

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 80

// Slugify lowercases s, strips accents and joins ASCII words with "-".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}

	out := b.String()
	if len(out) > maxSlugLength {
		out = strings.TrimRight(out[:maxSlugLength], "-")
	}
	if out == "" {
		return "presupuesto"
	}
	return out
}

// BudgetSlug is the base slug for a budget: the associated person's name
// followed by the title.
func BudgetSlug(associatedName, title string) string {
	return Slugify(strings.TrimSpace(associatedName + " " + title))
}

// NextFreeSlug returns base when unused, otherwise base-2, base-3, ...
func NextFreeSlug(base string, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, s := range taken {
		used[s] = true
	}
	if !used[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
	}
}
