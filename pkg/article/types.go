// Package article defines the value types exchanged with the generation
// pipeline: the caller-supplied payload, per-URL fetch provenance, the
// combined reference bundle, and the generated draft with its metadata.
package article

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Product identifies the watch the article is about.
type Product struct {
	Brand     string `json:"brand"`
	Reference string `json:"reference"`
}

// Style selects the writing tone for the intro text.
type Style struct {
	Tone string `json:"tone"`
}

// Options toggles optional intro sections.
type Options struct {
	IncludeBrandProfile  bool `json:"include_brand_profile"`
	IncludeWearingScenes bool `json:"include_wearing_scenes"`
}

// Constraints carries caller length hints. Zero values mean "no hint".
type Constraints struct {
	TargetIntroChars int `json:"target_intro_chars,omitempty"`
	MaxSpecsChars    int `json:"max_specs_chars,omitempty"`
}

// ReferenceEntry is one candidate source URL. Callers may send either a
// bare URL string or an object with language and source kind annotations.
type ReferenceEntry struct {
	URL    string `json:"url"`
	Lang   string `json:"lang,omitempty"`
	Source string `json:"source,omitempty"`
}

// UnmarshalJSON accepts both `"https://..."` and `{"url": ...}` forms.
func (e *ReferenceEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.URL = strings.TrimSpace(s)
		return nil
	}
	type plain ReferenceEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = ReferenceEntry(p)
	e.URL = strings.TrimSpace(e.URL)
	return nil
}

// PrefetchedPage lets a caller bypass the live fetch for a URL, supplying
// text it already retrieved (used for testing and caller-side caching).
type PrefetchedPage struct {
	URL  string      `json:"url"`
	Text string      `json:"text"`
	OK   bool        `json:"ok"`
	Meta FetchResult `json:"meta"`
}

// GenerationPayload is the full input to one pipeline invocation.
type GenerationPayload struct {
	Product       Product           `json:"product"`
	Facts         map[string]string `json:"facts"`
	Style         Style             `json:"style"`
	Options       Options           `json:"options"`
	Constraints   Constraints       `json:"constraints"`
	StaffNote     string            `json:"staff_additional_input"`
	ReferenceURLs []ReferenceEntry  `json:"reference_urls"`
	Prefetch      []PrefetchedPage  `json:"reference_prefetch,omitempty"`
}

// Validate rejects malformed payloads before any network call.
func (p *GenerationPayload) Validate() error {
	if strings.TrimSpace(p.Product.Brand) == "" {
		return fmt.Errorf("payload product.brand cannot be empty")
	}
	if strings.TrimSpace(p.Product.Reference) == "" {
		return fmt.Errorf("payload product.reference cannot be empty")
	}
	return nil
}

// FetchResult records everything that happened while fetching one
// reference URL. It is created once per URL per generation call and never
// mutated afterwards; every failure path still fills the provenance
// fields so "why was this source excluded" is always answerable.
type FetchResult struct {
	URL              string `json:"url"`
	Lang             string `json:"lang,omitempty"`
	SourceKind       string `json:"source,omitempty"`
	Allowed          bool   `json:"allowed"`
	Host             string `json:"host"`
	FetchOK          bool   `json:"fetch_ok"`
	HTTPStatus       int    `json:"status,omitempty"`
	ExtractionMethod string `json:"method"`
	CharCount        int    `json:"chars"`
	Cleaned          bool   `json:"cleaned"`
	CutTrigger       string `json:"cut_trigger,omitempty"`
	FilteredReason   string `json:"filtered_reason,omitempty"`
	Sufficient       bool   `json:"ok"`
	RefHit           bool   `json:"ref_hit"`
	Preview          string `json:"preview"`
	Text             string `json:"-"`
}

// ReferenceBundle is the selector/combiner output: one representative
// source for display plus the budget-capped concatenation of all fetched
// texts that is actually sent to the generator.
type ReferenceBundle struct {
	ChosenURL         string        `json:"chosen_url"`
	ChosenReason      string        `json:"chosen_reason"`
	ChosenCharCount   int           `json:"chosen_chars"`
	CombinedText      string        `json:"-"`
	CombinedCharCount int           `json:"combined_chars"`
	CombinedPreview   string        `json:"combined_preview"`
	PerURLDebug       []FetchResult `json:"per_url_debug"`
}

// ArticleDraft is the two-field generation result.
type ArticleDraft struct {
	IntroText string `json:"intro_text"`
	SpecsText string `json:"specs_text"`
}

// Valid reports whether both fields are non-empty after trimming.
func (d ArticleDraft) Valid() bool {
	return strings.TrimSpace(d.IntroText) != "" && strings.TrimSpace(d.SpecsText) != ""
}

// Similarity levels, from safe to near-duplicate.
const (
	LevelBlue   = "blue"
	LevelYellow = "yellow"
	LevelRed    = "red"
)

// SimilarityScore is the char n-gram Jaccard overlap between a draft and
// its combined source text, mapped to a policy level.
type SimilarityScore struct {
	Percent int    `json:"percent"`
	Level   string `json:"level"`
}

// RewriteMode controls the optional second generation pass.
type RewriteMode string

const (
	RewriteNone  RewriteMode = "none"
	RewriteAuto  RewriteMode = "auto"
	RewriteForce RewriteMode = "force"
)

// ParseRewriteMode maps a request string to a mode, defaulting to none.
func ParseRewriteMode(s string) (RewriteMode, error) {
	switch RewriteMode(strings.ToLower(strings.TrimSpace(s))) {
	case RewriteAuto:
		return RewriteAuto, nil
	case RewriteForce:
		return RewriteForce, nil
	case RewriteNone, "":
		return RewriteNone, nil
	}
	return RewriteNone, fmt.Errorf("unknown rewrite mode %q", s)
}

// RefMeta is the provenance bundle returned next to every draft. The
// caller relies on these field names for audit logging and UI display,
// so they are a stable interface.
type RefMeta struct {
	GenerationID            string        `json:"generation_id"`
	SelectedReferenceURL    string        `json:"selected_reference_url"`
	SelectedReferenceReason string        `json:"selected_reference_reason"`
	SelectedReferenceChars  int           `json:"selected_reference_chars"`
	CombinedReferenceChars  int           `json:"combined_reference_chars"`
	CombinedReferencePrev   string        `json:"combined_reference_preview"`
	ReferenceURLsDebug      []FetchResult `json:"reference_urls_debug"`
	SimilarityPercent       int           `json:"similarity_percent"`
	SimilarityLevel         string        `json:"similarity_level"`
	SimilarityBeforePercent int           `json:"similarity_before_percent"`
	SimilarityBeforeLevel   string        `json:"similarity_before_level"`
	RewriteApplied          bool          `json:"rewrite_applied"`
}

// Preview shortens text to n runes for logging and debug records.
func Preview(text string, n int) string {
	t := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	r := []rune(t)
	if len(r) <= n {
		return t
	}
	return string(r[:n]) + "…"
}
