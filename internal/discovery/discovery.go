// Package discovery finds candidate reference URLs automatically: Google
// Custom Search for the primary ladder, the hosted web_search tool for
// English articles and for replacing URLs whose fetch failed. Every
// candidate passes the trust registry before it is surfaced; missing API
// credentials degrade to empty results with a reason, never an error.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/isaomisk/HoroloGen/internal/trust"
	"github.com/isaomisk/HoroloGen/pkg/logging"
)

// Official brand domains, queried with site: restrictions before the
// open web.
var officialDomains = map[string][]string{
	"omega":       {"omegawatches.jp", "omegawatches.com"},
	"cartier":     {"cartier.com"},
	"grand_seiko": {"grand-seiko.com"},
	"iwc":         {"iwc.com"},
	"panerai":     {"panerai.com"},
}

// brandJaMap turns romanized brand tokens into the Japanese names used
// in search keywords.
var brandJaMap = map[string]string{
	"cartier":     "カルティエ",
	"omega":       "オメガ",
	"grand_seiko": "グランドセイコー",
	"grand-seiko": "グランドセイコー",
	"iwc":         "IWC",
	"panerai":     "パネライ",
}

// Debug is the discovery audit trail shown to staff next to the found
// URLs.
type Debug struct {
	AutoURLUsed   bool        `json:"auto_url_used"`
	AutoURLReason string      `json:"auto_url_reason"`
	Queries       []QueryMeta `json:"queries"`
	Filtered      []string    `json:"filtered_results"`
}

// Service runs URL discovery against the configured search backends.
type Service struct {
	registry  *trust.Registry
	cse       *cseClient
	searcher  WebSearcher
	client    *http.Client
	userAgent string
	logger    zerolog.Logger
}

// NewService wires discovery from the environment. searcher may be nil
// when no Anthropic key is configured.
func NewService(registry *trust.Registry, searcher WebSearcher) *Service {
	return &Service{
		registry:  registry,
		cse:       newCSEClientFromEnv(),
		searcher:  searcher,
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: "HoroloGen/1.0",
		logger:    logging.GetLogger("discovery"),
	}
}

// DiscoverReferenceURLs returns up to maxURLs trusted candidates for a
// product, using a small query ladder: broad brand+reference, official
// site-restricted queries, then the bare reference code.
func (s *Service) DiscoverReferenceURLs(ctx context.Context, brand, reference string, maxURLs int) ([]string, Debug) {
	debug := Debug{}
	brand = strings.TrimSpace(brand)
	reference = strings.TrimSpace(reference)
	if brand == "" || reference == "" {
		debug.AutoURLReason = "brand_or_reference_empty"
		return nil, debug
	}
	if maxURLs < 1 {
		maxURLs = 1
	}

	queries := []string{fmt.Sprintf("%s %s", brand, reference)}
	official := officialDomains[strings.ToLower(brand)]
	if len(official) > 2 {
		official = official[:2]
	}
	for _, dom := range official {
		queries = append(queries, fmt.Sprintf("site:%s %s", dom, reference))
	}
	queries = append(queries, reference)

	seen := make(map[string]struct{})
	var candidates []string

	for _, q := range queries {
		urls, meta := s.cse.search(ctx, q, 7)
		debug.Queries = append(debug.Queries, meta)

		if meta.Error == MissingCSEEnvReason {
			debug.AutoURLReason = "missing_api_key_or_cx"
			return nil, debug
		}

		for _, u := range urls {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			if allowed, _, _ := s.registry.Resolve(u); !allowed {
				continue
			}
			candidates = append(candidates, u)
			if len(candidates) >= maxURLs {
				break
			}
		}
		if len(candidates) >= maxURLs {
			break
		}
	}

	debug.Filtered = candidates
	debug.AutoURLUsed = true
	if len(candidates) > 0 {
		debug.AutoURLReason = "ok"
	} else {
		debug.AutoURLReason = "no_results_after_whitelist"
	}

	s.logger.Info().
		Str("brand", brand).
		Str("reference", reference).
		Int("candidates", len(candidates)).
		Str("reason", debug.AutoURLReason).
		Msg("reference URL discovery completed")

	return candidates, debug
}

// DiscoverEnglishURLs supplements the reference set with English-language
// articles from trusted media domains. Returns nil without error when no
// web searcher is configured.
func (s *Service) DiscoverEnglishURLs(ctx context.Context, brand, reference, collection string, maxURLs int) []string {
	brand = strings.TrimSpace(brand)
	reference = strings.TrimSpace(reference)
	if brand == "" || reference == "" || s.searcher == nil {
		return nil
	}
	if maxURLs < 1 {
		maxURLs = 1
	}

	enDomains := s.englishOnlyDomains()
	if len(enDomains) == 0 {
		return nil
	}

	queries := []string{
		fmt.Sprintf("%s %s review", brand, reference),
		fmt.Sprintf("%s %s hands-on", brand, reference),
	}
	if c := strings.TrimSpace(collection); c != "" {
		queries = append(queries, fmt.Sprintf("%s %s review", brand, c))
	}

	seen := make(map[string]struct{})
	var out []string
	for _, q := range queries {
		urls, err := s.searcher.Search(ctx, q, enDomains, 8)
		if err != nil {
			s.logger.Warn().Err(err).Str("query", q).Msg("english URL search failed")
			continue
		}
		for _, cand := range urls {
			if _, ok := seen[cand]; ok {
				continue
			}
			seen[cand] = struct{}{}
			allowed, _, policy := s.registry.Resolve(cand)
			if !allowed || policy == nil || policy.Lang != "en" {
				continue
			}
			out = append(out, cand)
			if len(out) >= maxURLs {
				return out
			}
		}
	}
	return out
}

// FallbackSearchFromFailedURL looks for replacement sources when a
// staff-entered URL could not be fetched, keyed on whatever title or
// path keywords the dead URL still yields.
func (s *Service) FallbackSearchFromFailedURL(ctx context.Context, failedURL string, maxURLs int) []string {
	failedURL = strings.TrimSpace(failedURL)
	if failedURL == "" || s.searcher == nil {
		return nil
	}
	if maxURLs < 1 {
		maxURLs = 1
	}

	keyword := s.keywordFromFailedURL(ctx, failedURL)
	if keyword == "" {
		return nil
	}

	urls, err := s.searcher.Search(ctx, keyword, s.registry.Patterns(), 8)
	if err != nil {
		s.logger.Warn().Err(err).Str("failed_url", failedURL).Msg("fallback search failed")
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, cand := range urls {
		if _, ok := seen[cand]; ok {
			continue
		}
		seen[cand] = struct{}{}
		if allowed, _, _ := s.registry.Resolve(cand); !allowed {
			continue
		}
		out = append(out, cand)
		if len(out) >= maxURLs {
			break
		}
	}
	return out
}

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
var pathSplitPattern = regexp.MustCompile(`[\/_\-\.]+`)
var spaceCollapse = regexp.MustCompile(`\s+`)

// keywordFromFailedURL tries headers, then the page title, then the URL
// path itself. A dead page often still serves a title on an error page.
func (s *Service) keywordFromFailedURL(ctx context.Context, failedURL string) string {
	if title := s.titleFromHead(ctx, failedURL); title != "" {
		return title
	}
	if title := s.titleFromGet(ctx, failedURL); title != "" {
		return title
	}
	return keywordsFromPath(failedURL)
}

func (s *Service) titleFromHead(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	for _, key := range []string{"x-title", "title"} {
		if v := strings.TrimSpace(resp.Header.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

func (s *Service) titleFromGet(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	buf := make([]byte, 64*1024)
	n, _ := resp.Body.Read(buf)
	if m := titlePattern.FindSubmatch(buf[:n]); m != nil {
		return strings.TrimSpace(spaceCollapse.ReplaceAllString(string(m[1]), " "))
	}
	return ""
}

// keywordsFromPath decomposes the URL path into search tokens, mapping
// known brand tokens to their Japanese names.
func keywordsFromPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path, err := url.PathUnescape(parsed.Path)
	if err != nil {
		path = parsed.Path
	}

	var tokens []string
	hostBrand := strings.ToLower(strings.Split(parsed.Hostname(), ".")[0])
	if hostBrand != "" {
		if ja, ok := brandJaMap[hostBrand]; ok {
			tokens = append(tokens, ja)
		} else {
			tokens = append(tokens, hostBrand)
		}
	}
	for _, t := range pathSplitPattern.Split(path, -1) {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if ja, ok := brandJaMap[strings.ToLower(t)]; ok {
			t = ja
		}
		tokens = append(tokens, t)
	}

	if len(tokens) > 8 {
		tokens = tokens[:8]
	}
	return strings.TrimSpace(strings.Join(tokens, " "))
}

// englishOnlyDomains lists registry patterns tagged exactly "en"; the
// English supplement deliberately skips bilingual official sites.
func (s *Service) englishOnlyDomains() []string {
	var out []string
	for _, pattern := range s.registry.PatternsByLang("en") {
		_, _, policy := s.registry.Resolve("https://" + pattern + "/")
		if policy != nil && policy.Lang == "en" {
			out = append(out, pattern)
		}
	}
	return out
}
