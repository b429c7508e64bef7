// Package reference decides which fetched sources ground a generation:
// it detects exact reference-code hits and assembles the size-bounded
// text bundle passed to the generator.
package reference

import (
	"regexp"
	"strings"
)

var separatorPattern = regexp.MustCompile(`[\s.\-_/]`)

// refVariants normalizes a reference code for matching: uppercased, and
// uppercased with whitespace and separator characters stripped.
func refVariants(reference string) []string {
	r := strings.TrimSpace(reference)
	if r == "" {
		return nil
	}
	up := strings.ToUpper(r)
	nosep := separatorPattern.ReplaceAllString(up, "")

	variants := []string{up}
	if nosep != up {
		variants = append(variants, nosep)
	}
	return variants
}

// RefHit reports whether the product reference code appears in the URL or
// the fetched text. A hit distinguishes "about this exact unit" from
// "about the model family", which gates factual grounding.
func RefHit(url, text, reference string) bool {
	variants := refVariants(reference)
	if len(variants) == 0 {
		return false
	}

	hay := strings.ToUpper(url + "\n" + text)
	hayNoSep := separatorPattern.ReplaceAllString(hay, "")

	for _, v := range variants {
		if v == "" {
			continue
		}
		if strings.Contains(hay, v) || strings.Contains(hayNoSep, v) {
			return true
		}
	}
	return false
}
