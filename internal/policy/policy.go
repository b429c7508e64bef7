// Package policy rejects drafts containing high-pressure sales phrasing.
// A hit means the prompt constraints were not honored, so the draft is
// aborted rather than silently sanitized.
package policy

import (
	"fmt"
	"strings"
)

// defaultBannedPhrases is the hype denylist. Matching is plain substring;
// the phrases are concrete enough that false positives are acceptable
// compared to letting one through.
var defaultBannedPhrases = []string{
	"買うのは今です",
	"買うのは今",
	"今買わないと損",
	"絶対買い",
	"買わない理由がない",
	"マストバイ",
	"値上げ前に急げ",
	"入手困難で後悔",
	"このチャンスを逃すな",
	"必ず値上がり",
	"資産になる",
}

// Violation is the typed error raised when a draft contains banned
// phrases. Callers branch on the type, not on the message.
type Violation struct {
	Phrases []string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("banned phrase detected: %s", strings.Join(v.Phrases, ", "))
}

// Filter scans text against a fixed denylist.
type Filter struct {
	phrases []string
}

// NewFilter returns a filter with the built-in denylist.
func NewFilter() *Filter {
	return &Filter{phrases: defaultBannedPhrases}
}

// NewFilterWithPhrases returns a filter over a custom denylist, used when
// operators extend the list through configuration.
func NewFilterWithPhrases(phrases []string) *Filter {
	if len(phrases) == 0 {
		return NewFilter()
	}
	return &Filter{phrases: phrases}
}

// Check returns every banned phrase present in text, in denylist order.
func (f *Filter) Check(text string) []string {
	var hits []string
	for _, p := range f.phrases {
		if strings.Contains(text, p) {
			hits = append(hits, p)
		}
	}
	return hits
}

// Validate returns a *Violation error when the text contains banned
// phrases, nil otherwise.
func (f *Filter) Validate(text string) error {
	if hits := f.Check(text); len(hits) > 0 {
		return &Violation{Phrases: hits}
	}
	return nil
}
