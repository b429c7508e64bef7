package reference

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/isaomisk/HoroloGen/pkg/article"
	"github.com/isaomisk/HoroloGen/pkg/logging"
)

// Budgets for the combined bundle. Earlier sources win ties: combination
// is first-fit, never partial beyond the per-source cap.
const (
	MaxEntries   = 4
	PerSourceCap = 2500
	TotalCap     = 8000
)

// Adoption reasons surfaced to staff, verbatim in the UI.
const (
	reasonRefHit     = "リファレンス一致のため採用"
	reasonSufficient = "本文が十分だったので採用"
	reasonLongest    = "一番長い本文だったので採用"
	reasonNoSource   = "参考URLなし（本文なし）"
)

// FilteredReason recorded when the payload carried no URLs at all; the
// explicit debug entry keeps "not attempted" distinguishable from
// "attempted, zero results" in logs.
const NoURLsReason = "no_reference_urls_in_payload"

// FetchFunc retrieves one reference URL. Implementations must never
// return an error; failures are encoded in the FetchResult itself.
type FetchFunc func(ctx context.Context, entry article.ReferenceEntry) article.FetchResult

// Selector picks a representative source and combines fetched texts.
type Selector struct {
	fetch FetchFunc
}

// NewSelector wires the selector to a fetch implementation.
func NewSelector(fetch FetchFunc) *Selector {
	return &Selector{fetch: fetch}
}

// SelectAndCombine fetches every candidate entry (or serves it from the
// caller-supplied prefetch), picks the representative source, and builds
// the combined grounding text. The second return value lists URLs whose
// body was sufficient but did not contain the reference code; those may
// describe the model family rather than this exact unit.
func (s *Selector) SelectAndCombine(ctx context.Context, entries []article.ReferenceEntry, prefetch []article.PrefetchedPage, refCode string) (article.ReferenceBundle, []string) {
	logger := logging.GetLogger("reference")

	entries = dedupeEntries(entries)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	prefetched := make(map[string]article.PrefetchedPage, len(prefetch))
	for _, p := range prefetch {
		if p.URL != "" {
			prefetched[p.URL] = p
		}
	}

	var results []article.FetchResult
	if len(entries) == 0 {
		results = append(results, article.FetchResult{
			URL:            "(no urls)",
			FilteredReason: NoURLsReason,
		})
	}

	for _, entry := range entries {
		var res article.FetchResult
		if page, ok := prefetched[entry.URL]; ok {
			res = page.Meta
			res.URL = entry.URL
			res.Text = page.Text
			res.Sufficient = page.OK
			res.CharCount = utf8.RuneCountInString(page.Text)
			if res.Preview == "" {
				res.Preview = article.Preview(page.Text, 220)
			}
			if res.ExtractionMethod == "" {
				res.ExtractionMethod = "prefetch"
			}
		} else {
			res = s.fetch(ctx, entry)
		}
		if res.Lang == "" {
			res.Lang = entry.Lang
		}
		if res.SourceKind == "" {
			res.SourceKind = entry.Source
		}
		res.RefHit = RefHit(entry.URL, res.Text, refCode)
		results = append(results, res)

		logger.Debug().
			Str("url", entry.URL).
			Bool("ok", res.Sufficient).
			Bool("ref_hit", res.RefHit).
			Int("chars", res.CharCount).
			Str("filtered_reason", res.FilteredReason).
			Msg("Reference fetched")
	}

	chosen, reason := chooseRepresentative(results)
	combined := combineTexts(results)

	bundle := article.ReferenceBundle{
		ChosenURL:         chosen.URL,
		ChosenReason:      reason,
		ChosenCharCount:   chosen.CharCount,
		CombinedText:      combined,
		CombinedCharCount: utf8.RuneCountInString(combined),
		CombinedPreview:   article.Preview(combined, 260),
		PerURLDebug:       results,
	}

	var missURLs []string
	for _, r := range results {
		if r.Sufficient && !r.RefHit {
			missURLs = append(missURLs, r.URL)
		}
	}

	logger.Info().
		Str("chosen_url", bundle.ChosenURL).
		Str("chosen_reason", bundle.ChosenReason).
		Int("combined_chars", bundle.CombinedCharCount).
		Int("ref_miss_urls", len(missURLs)).
		Msg("Reference bundle assembled")

	return bundle, missURLs
}

// chooseRepresentative applies the adoption priority: reference hit with
// sufficient body, then any sufficient body, then the longest body.
func chooseRepresentative(results []article.FetchResult) (article.FetchResult, string) {
	for _, r := range results {
		if r.Sufficient && r.RefHit {
			return r, reasonRefHit
		}
	}
	for _, r := range results {
		if r.Sufficient {
			return r, reasonSufficient
		}
	}

	var longest article.FetchResult
	for _, r := range results {
		if r.CharCount > longest.CharCount {
			longest = r
		}
	}
	if longest.URL != "" && longest.CharCount > 0 {
		return longest, reasonLongest
	}
	return article.FetchResult{}, reasonNoSource
}

const blockSeparator = "\n\n---\n\n"

// combineTexts concatenates every fetched text in input order, each
// truncated to PerSourceCap, stopping before the block (separator
// included) that would push the total past TotalCap.
func combineTexts(results []article.FetchResult) string {
	var blocks []string
	total := 0
	sepLen := utf8.RuneCountInString(blockSeparator)
	for _, r := range results {
		t := strings.TrimSpace(r.Text)
		if t == "" {
			continue
		}
		t = truncateRunes(t, PerSourceCap)
		block := fmt.Sprintf("URL: %s\nlang: %s / source: %s / ref_hit: %t\n本文抜粋:\n%s",
			r.URL, orUnknown(r.Lang), orUnknown(r.SourceKind), r.RefHit, t)
		cost := utf8.RuneCountInString(block)
		if len(blocks) > 0 {
			cost += sepLen
		}
		if total+cost > TotalCap {
			break
		}
		blocks = append(blocks, block)
		total += cost
	}
	return strings.TrimSpace(strings.Join(blocks, blockSeparator))
}

func dedupeEntries(entries []article.ReferenceEntry) []article.ReferenceEntry {
	seen := make(map[string]struct{}, len(entries))
	var out []article.ReferenceEntry
	for _, e := range entries {
		u := strings.TrimSpace(e.URL)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		e.URL = u
		out = append(out, e)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}
