// Package similarity measures draft-vs-source overlap with character
// 3-gram Jaccard similarity. Character n-grams work for both Japanese
// and English text, so no tokenizer is involved.
package similarity

import (
	"math"
	"regexp"
	"strings"

	"github.com/isaomisk/HoroloGen/pkg/article"
)

const (
	ngramSize = 3
	maxRunes  = 9000
)

// Thresholds for the policy levels.
const (
	RedThreshold    = 35
	YellowThreshold = 20
)

var urlPattern = regexp.MustCompile(`https?://\S+`)
var spacePattern = regexp.MustCompile(`\s+`)

// Percent returns the Jaccard similarity of the two texts' character
// 3-gram sets as an integer percentage. Either side empty scores 0.
func Percent(a, b string) int {
	setA := ngramSet(a)
	setB := ngramSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for g := range setA {
		if _, ok := setB[g]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return int(math.Round(float64(inter) / float64(union) * 100))
}

// Level maps a percentage to the policy level.
func Level(percent int) string {
	switch {
	case percent >= RedThreshold:
		return article.LevelRed
	case percent >= YellowThreshold:
		return article.LevelYellow
	default:
		return article.LevelBlue
	}
}

// Score computes percent and level in one call.
func Score(a, b string) article.SimilarityScore {
	pct := Percent(a, b)
	return article.SimilarityScore{Percent: pct, Level: Level(pct)}
}

func ngramSet(text string) map[string]struct{} {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	t = urlPattern.ReplaceAllString(t, " ")
	t = spacePattern.ReplaceAllString(t, "")

	runes := []rune(t)
	if len(runes) > maxRunes {
		runes = runes[:maxRunes]
	}

	set := make(map[string]struct{})
	if len(runes) < ngramSize {
		set[string(runes)] = struct{}{}
		return set
	}
	for i := 0; i+ngramSize <= len(runes); i++ {
		set[string(runes[i:i+ngramSize])] = struct{}{}
	}
	return set
}
