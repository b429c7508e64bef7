// Package fetcher retrieves and denoises reference page text. Every
// outcome, success or failure, is encoded in a fully populated
// FetchResult so provenance is never ambiguous; the fetcher itself
// never returns an error to its caller.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/isaomisk/HoroloGen/internal/trust"
	"github.com/isaomisk/HoroloGen/pkg/article"
	"github.com/isaomisk/HoroloGen/pkg/logging"
)

// Config bounds one fetch.
type Config struct {
	MaxChars      int
	MinChars      int
	Timeout       time.Duration
	UserAgent     string
	MaxBodyBytes  int64
	CacheSize     int
	RespectRobots bool
}

// DefaultConfig returns the production budgets.
func DefaultConfig() Config {
	return Config{
		MaxChars:      8000,
		MinChars:      600,
		Timeout:       15 * time.Second,
		UserAgent:     "HoroloGen/1.0",
		MaxBodyBytes:  4 * 1024 * 1024,
		CacheSize:     64,
		RespectRobots: true,
	}
}

// Fetcher downloads trusted reference pages and extracts their body text.
type Fetcher struct {
	cfg        Config
	registry   *trust.Registry
	strategies *StrategyTable
	denoiser   *Denoiser
	client     *http.Client
	robots     *robotsChecker
	cache      *lru.Cache[string, article.FetchResult]
	logger     zerolog.Logger
}

// New wires a fetcher. registry must not be nil; nil strategies or
// denoiser fall back to defaults.
func New(cfg Config, registry *trust.Registry, strategies *StrategyTable, denoiser *Denoiser) *Fetcher {
	if strategies == nil {
		strategies = NewStrategyTable()
	}
	if denoiser == nil {
		denoiser = NewDenoiser(DefaultDenoiseConfig())
	}
	client := &http.Client{Timeout: cfg.Timeout}
	cache, _ := lru.New[string, article.FetchResult](max(cfg.CacheSize, 1))
	return &Fetcher{
		cfg:        cfg,
		registry:   registry,
		strategies: strategies,
		denoiser:   denoiser,
		client:     client,
		robots:     newRobotsChecker(client, cfg.UserAgent, max(cfg.CacheSize, 1)),
		cache:      cache,
		logger:     logging.GetLogger("fetcher"),
	}
}

// Filtered reasons for excluded sources.
const (
	ReasonEmptyURL         = "empty_url"
	ReasonUntrustedDomain  = "untrusted_domain"
	ReasonRobotsDisallowed = "robots_disallowed"
	ReasonNoTextExtracted  = "no_text_extracted"
	ReasonTooShort         = "too_short"
)

// Fetch retrieves one reference URL. The returned FetchResult always has
// its provenance fields populated, whatever went wrong.
func (f *Fetcher) Fetch(ctx context.Context, entry article.ReferenceEntry) article.FetchResult {
	res := article.FetchResult{
		URL:        strings.TrimSpace(entry.URL),
		Lang:       entry.Lang,
		SourceKind: entry.Source,
	}

	if res.URL == "" {
		res.FilteredReason = ReasonEmptyURL
		return res
	}

	if cached, ok := f.cache.Get(res.URL); ok {
		f.logger.Debug().Str("url", res.URL).Msg("Fetch served from cache")
		cached.Lang = res.Lang
		cached.SourceKind = res.SourceKind
		return cached
	}

	allowed, host, _ := f.registry.Resolve(res.URL)
	res.Allowed = allowed
	res.Host = host
	if !allowed {
		res.FilteredReason = ReasonUntrustedDomain
		return res
	}

	target, err := url.Parse(res.URL)
	if err != nil {
		res.FilteredReason = ReasonUntrustedDomain
		return res
	}

	if f.cfg.RespectRobots && !f.robots.Allowed(ctx, target) {
		res.FilteredReason = ReasonRobotsDisallowed
		return res
	}

	body, status, err := f.get(ctx, res.URL)
	res.HTTPStatus = status
	if err != nil {
		res.FilteredReason = "request_failed:" + classifyTransportError(err, status)
		f.logger.Warn().Str("url", res.URL).Int("status", status).Err(err).Msg("Reference fetch failed")
		return res
	}
	res.FetchOK = true

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		res.FilteredReason = "request_failed:ParseError"
		return res
	}

	strategy := f.strategies.For(host)
	text, method := strategy.Extract(doc, f.cfg.MinChars)
	res.ExtractionMethod = method

	cleaned, changed, cutTrigger := f.denoiser.Clean(text)
	res.Cleaned = changed
	res.CutTrigger = cutTrigger
	text = cleaned

	if text == "" {
		res.FilteredReason = ReasonNoTextExtracted
		f.cache.Add(res.URL, res)
		return res
	}

	if utf8.RuneCountInString(text) > f.cfg.MaxChars {
		runes := []rune(text)
		text = string(runes[:f.cfg.MaxChars])
		res.CutTrigger = firstNonEmpty(res.CutTrigger, "max_chars")
	}

	res.Text = text
	res.CharCount = utf8.RuneCountInString(text)
	res.Preview = article.Preview(text, 220)
	res.Sufficient = res.CharCount >= f.cfg.MinChars
	if !res.Sufficient && res.FilteredReason == "" {
		res.FilteredReason = ReasonTooShort
	}

	f.logger.Debug().
		Str("url", res.URL).
		Str("method", method).
		Int("chars", res.CharCount).
		Bool("cleaned", res.Cleaned).
		Str("cut_trigger", res.CutTrigger).
		Bool("ok", res.Sufficient).
		Msg("Reference page extracted")

	f.cache.Add(res.URL, res)
	return res
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return string(body), resp.StatusCode, nil
}

// classifyTransportError buckets failures into the coarse classes staff
// see in provenance records.
func classifyTransportError(err error, status int) string {
	if status > 0 {
		return fmt.Sprintf("status_%d", status)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "Canceled"
	}
	return "ConnectionError"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
