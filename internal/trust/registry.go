// Package trust maps reference URL hosts to a trust tier and the uses a
// source is allowed to serve (facts, context, opinion, market). The
// registry is read-only after construction; a URL is trusted iff its
// hostname equals or is a subdomain of a registered pattern.
package trust

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tiers rank source authority: A is brand-official, E is user-generated.
const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
	TierD = "D"
	TierE = "E"
)

// Allowed uses for a source.
const (
	UseFacts   = "facts"
	UseContext = "context"
	UseOpinion = "opinion"
	UseMarket  = "market"
)

// Policy describes one registered source domain.
type Policy struct {
	Pattern     string   `yaml:"pattern"`
	Tier        string   `yaml:"tier"`
	AllowedUses []string `yaml:"allowed_uses"`
	Lang        string   `yaml:"lang"` // ja, en, or both
}

// AllowsUse reports whether the policy permits the given use.
func (p Policy) AllowsUse(use string) bool {
	for _, u := range p.AllowedUses {
		if u == use {
			return true
		}
	}
	return false
}

// Registry is an immutable host-pattern lookup table.
type Registry struct {
	policies map[string]Policy
	patterns []string // sorted, for deterministic iteration
}

// NewRegistry builds a registry from the supplied policies. Later
// policies win on duplicate patterns.
func NewRegistry(policies []Policy) *Registry {
	r := &Registry{policies: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		pattern := normalizeHost(p.Pattern)
		if pattern == "" {
			continue
		}
		if _, exists := r.policies[pattern]; !exists {
			r.patterns = append(r.patterns, pattern)
		}
		p.Pattern = pattern
		r.policies[pattern] = p
	}
	sort.Strings(r.patterns)
	return r
}

// DefaultRegistry returns the built-in source table.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultPolicies())
}

type registryFile struct {
	Sources []Policy `yaml:"sources"`
}

// LoadRegistry merges YAML-defined sources over the built-in table.
// Operators extend the whitelist through configuration, not code.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trust registry %s: %w", path, err)
	}
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse trust registry %s: %w", path, err)
	}
	merged := defaultPolicies()
	merged = append(merged, file.Sources...)
	// Later entries must win, so rebuild with file sources overriding.
	byPattern := make(map[string]Policy, len(merged))
	for _, p := range merged {
		byPattern[normalizeHost(p.Pattern)] = p
	}
	out := make([]Policy, 0, len(byPattern))
	for _, p := range byPattern {
		out = append(out, p)
	}
	return NewRegistry(out), nil
}

// Resolve checks a URL against the registry. It returns allowed=false for
// empty, unparsable, non-http(s) or hostless URLs. The normalized host is
// returned even when the domain is untrusted, for provenance records.
func (r *Registry) Resolve(rawURL string) (allowed bool, host string, policy *Policy) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return false, "", nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, "", nil
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false, "", nil
	}
	host = normalizeHost(parsed.Hostname())
	if host == "" {
		return false, "", nil
	}

	for _, pattern := range r.patterns {
		if host == pattern || strings.HasSuffix(host, "."+pattern) {
			p := r.policies[pattern]
			return true, host, &p
		}
	}
	return false, host, nil
}

// Patterns returns all registered host patterns, sorted.
func (r *Registry) Patterns() []string {
	out := make([]string, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// PatternsByLang returns host patterns whose policy language matches lang
// (entries tagged "both" match any language). Used by URL discovery.
func (r *Registry) PatternsByLang(lang string) []string {
	var out []string
	for _, pattern := range r.patterns {
		p := r.policies[pattern]
		if p.Lang == lang || p.Lang == "both" {
			out = append(out, pattern)
		}
	}
	return out
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimSuffix(h, ".")
	h = strings.TrimPrefix(h, "www.")
	return h
}

func defaultPolicies() []Policy {
	return []Policy{
		// A: brand official
		{Pattern: "omegawatches.com", Tier: TierA, AllowedUses: []string{UseFacts, UseContext}, Lang: "both"},
		{Pattern: "omegawatches.jp", Tier: TierA, AllowedUses: []string{UseFacts, UseContext}, Lang: "ja"},
		{Pattern: "cartier.com", Tier: TierA, AllowedUses: []string{UseFacts, UseContext}, Lang: "both"},
		{Pattern: "grand-seiko.com", Tier: TierA, AllowedUses: []string{UseFacts, UseContext}, Lang: "both"},
		{Pattern: "iwc.com", Tier: TierA, AllowedUses: []string{UseFacts, UseContext}, Lang: "both"},
		{Pattern: "panerai.com", Tier: TierA, AllowedUses: []string{UseFacts, UseContext}, Lang: "both"},

		// B: authorized dealers
		{Pattern: "eye-eye-isuzu.co.jp", Tier: TierB, AllowedUses: []string{UseContext}, Lang: "ja"},
		{Pattern: "rasin.co.jp", Tier: TierB, AllowedUses: []string{UseContext}, Lang: "ja"},
		{Pattern: "evance.co.jp", Tier: TierB, AllowedUses: []string{UseContext}, Lang: "ja"},

		// C: watch media
		{Pattern: "webchronos.net", Tier: TierC, AllowedUses: []string{UseContext, UseOpinion}, Lang: "ja"},
		{Pattern: "hodinkee.com", Tier: TierC, AllowedUses: []string{UseContext, UseOpinion}, Lang: "en"},
		{Pattern: "monochrome-watches.com", Tier: TierC, AllowedUses: []string{UseContext, UseOpinion}, Lang: "en"},
		{Pattern: "timeandtidewatches.com", Tier: TierC, AllowedUses: []string{UseContext, UseOpinion}, Lang: "en"},
		{Pattern: "fratellowatches.com", Tier: TierC, AllowedUses: []string{UseContext, UseOpinion}, Lang: "en"},
		{Pattern: "watchesbysjx.com", Tier: TierC, AllowedUses: []string{UseContext, UseOpinion}, Lang: "en"},
		{Pattern: "revolutionwatch.com", Tier: TierC, AllowedUses: []string{UseContext, UseOpinion}, Lang: "en"},
		{Pattern: "swisswatches-magazine.com", Tier: TierC, AllowedUses: []string{UseContext, UseOpinion}, Lang: "en"},
		{Pattern: "wornandwound.com", Tier: TierC, AllowedUses: []string{UseContext, UseOpinion}, Lang: "en"},

		// D: market data, restricted use
		{Pattern: "chrono24.com", Tier: TierD, AllowedUses: []string{UseMarket, UseContext}, Lang: "both"},

		// E: user-generated, supplementary only
		{Pattern: "wikipedia.org", Tier: TierE, AllowedUses: []string{UseContext}, Lang: "both"},
		{Pattern: "note.com", Tier: TierE, AllowedUses: []string{UseContext}, Lang: "ja"},
	}
}
