package fetcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors is the ordered list of structural selectors tried by
// the generic strategy. Ordering matters only for method reporting; the
// best-scoring candidate wins.
var contentSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	".article",
	".post",
	".content",
	".entry-content",
	".post-content",
}

// nonContentTags never contain article body and are removed before any
// candidate scoring.
var nonContentTags = "script, style, noscript, header, footer, nav, aside"

// partTags are the elements whose text makes up the extracted body.
var partTags = "h1, h2, h3, p, li"

const minPartLen = 15

// ExtractionStrategy turns a parsed document into body text. The method
// string is recorded in provenance so staff can see how a page was read.
type ExtractionStrategy interface {
	Name() string
	Extract(doc *goquery.Document, minChars int) (text string, method string)
}

// StrategyTable maps normalized hosts to dedicated strategies, with a
// generic fallback. Registered patterns match subdomains too.
type StrategyTable struct {
	byHost  map[string]ExtractionStrategy
	generic ExtractionStrategy
}

// NewStrategyTable builds the default table: a generic strategy plus the
// best-block strategy for hosts whose "main" wrapper is routinely empty
// while real content lives in a sibling div.
func NewStrategyTable() *StrategyTable {
	t := &StrategyTable{
		byHost:  make(map[string]ExtractionStrategy),
		generic: &genericStrategy{},
	}
	for _, host := range []string{"webchronos.net", "note.com", "chrono24.com"} {
		t.Register(host, &bestBlockStrategy{})
	}
	return t
}

// Register installs a dedicated strategy for a host pattern.
func (t *StrategyTable) Register(host string, s ExtractionStrategy) {
	t.byHost[strings.ToLower(host)] = s
}

// For resolves the strategy for a host; exact or suffix match, generic
// otherwise.
func (t *StrategyTable) For(host string) ExtractionStrategy {
	host = strings.ToLower(host)
	if s, ok := t.byHost[host]; ok {
		return s
	}
	for pattern, s := range t.byHost {
		if strings.HasSuffix(host, "."+pattern) {
			return s
		}
	}
	return t.generic
}

// genericStrategy: score each structural selector candidate by extracted
// text length; below minChars fall back to the whole document, then to
// the largest contiguous block.
type genericStrategy struct{}

func (g *genericStrategy) Name() string { return "generic" }

func (g *genericStrategy) Extract(doc *goquery.Document, minChars int) (string, string) {
	stripNonContent(doc.Selection)

	bestText := ""
	bestSelector := ""
	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := collectParts(sel)
		if utf8.RuneCountInString(text) > utf8.RuneCountInString(bestText) {
			bestText = text
			bestSelector = selector
		}
	}
	if bestSelector != "" && utf8.RuneCountInString(bestText) >= minChars {
		return bestText, "selector:" + bestSelector
	}

	// Whole-document fallback.
	docText := collectParts(doc.Selection)
	if docText == "" {
		docText = walkDocument(doc.Get(0))
	}
	if utf8.RuneCountInString(docText) >= minChars {
		return docText, "fallback:document"
	}

	// Largest contiguous block: a lightweight readability approximation
	// scoring container nodes by their total paragraph text length.
	if blockText, ok := largestBlock(doc); ok &&
		utf8.RuneCountInString(blockText) > utf8.RuneCountInString(docText) {
		return blockText, "fallback:largest_block"
	}

	// Nothing reached minChars; return the best we saw so the caller can
	// record too_short with an honest char count.
	if utf8.RuneCountInString(bestText) > utf8.RuneCountInString(docText) {
		return bestText, "selector:" + bestSelector
	}
	return docText, "fallback:document"
}

// bestBlockStrategy handles known high-noise hosts: every top-level
// candidate block is extracted independently, each cleaned of
// non-content tags before scoring, and the block with the highest
// paragraph-text score wins. This avoids adopting a near-empty "main"
// wrapper when the real content lives in a sibling div.
type bestBlockStrategy struct{}

func (b *bestBlockStrategy) Name() string { return "best_block" }

func (b *bestBlockStrategy) Extract(doc *goquery.Document, minChars int) (string, string) {
	bestScore := 0
	bestText := ""
	bestIdx := -1

	doc.Find("body > div, body > main, body > article, body > section").Each(func(i int, sel *goquery.Selection) {
		stripNonContent(sel)
		score := paragraphScore(sel)
		if score > bestScore {
			bestScore = score
			bestText = collectParts(sel)
			bestIdx = i
		}
	})

	if bestIdx >= 0 && bestText != "" {
		return bestText, fmt.Sprintf("noisy_host:block_%d", bestIdx)
	}

	// Degenerate markup; fall through to the generic path.
	text, method := (&genericStrategy{}).Extract(doc, minChars)
	return text, "noisy_host->" + method
}

func stripNonContent(sel *goquery.Selection) {
	sel.Find(nonContentTags).Remove()
}

// collectParts gathers heading, paragraph and list-item text. Paragraph
// fragments too short to be prose are skipped; headings are kept whole
// because section headings ("関連記事" and friends) are what the
// denoiser cuts on.
func collectParts(sel *goquery.Selection) string {
	var parts []string
	sel.Find(partTags).Each(func(_ int, el *goquery.Selection) {
		text := normalizeSpace(el.Text())
		if text == "" {
			return
		}
		if !isHeading(el) && utf8.RuneCountInString(text) < minPartLen {
			return
		}
		parts = append(parts, text)
	})
	return strings.Join(parts, "\n")
}

func isHeading(el *goquery.Selection) bool {
	return el.Is("h1, h2, h3")
}

// paragraphScore totals the paragraph text length directly inside a
// block, the signal used to rank candidate blocks.
func paragraphScore(sel *goquery.Selection) int {
	score := 0
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		score += utf8.RuneCountInString(normalizeSpace(p.Text()))
	})
	return score
}

// largestBlock scans container elements and returns the parts of the one
// with the highest paragraph score.
func largestBlock(doc *goquery.Document) (string, bool) {
	bestScore := 0
	var best *goquery.Selection
	doc.Find("div, section, article, td").Each(func(_ int, sel *goquery.Selection) {
		if score := paragraphScore(sel); score > bestScore {
			bestScore = score
			best = sel
		}
	})
	if best == nil {
		return "", false
	}
	text := collectParts(best)
	return text, text != ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
