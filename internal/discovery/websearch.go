package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/isaomisk/HoroloGen/pkg/logging"
)

// WebSearcher finds candidate URLs for a query, restricted to the given
// domains. Implementations return found URLs in ranking order.
type WebSearcher interface {
	Search(ctx context.Context, query string, allowedDomains []string, maxURLs int) ([]string, error)
}

var urlInTextPattern = regexp.MustCompile(`https?://[^\s\]\)\}\>"']+`)

// extractURLsFromText pulls URLs out of free text, trimming trailing
// punctuation the model tends to attach.
func extractURLsFromText(text string) []string {
	var out []string
	for _, u := range urlInTextPattern.FindAllString(text, -1) {
		u = strings.TrimRight(strings.TrimSpace(u), ".,;:")
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// AnthropicWebSearcher runs the hosted web_search tool through the
// Messages API and scrapes URLs out of whatever block shape comes back.
type AnthropicWebSearcher struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewAnthropicWebSearcherFromEnv returns nil when ANTHROPIC_API_KEY is
// unset; discovery then degrades to manual URL entry instead of failing.
func NewAnthropicWebSearcherFromEnv() *AnthropicWebSearcher {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil
	}
	model := os.Getenv("HOROLOGEN_CLAUDE_MODEL")
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return &AnthropicWebSearcher{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com",
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type webSearchRequest struct {
	Model       string                   `json:"model"`
	MaxTokens   int                      `json:"max_tokens"`
	Temperature float64                  `json:"temperature"`
	Messages    []map[string]string      `json:"messages"`
	Tools       []map[string]interface{} `json:"tools"`
}

// Search implements WebSearcher.
func (s *AnthropicWebSearcher) Search(ctx context.Context, query string, allowedDomains []string, maxURLs int) ([]string, error) {
	logger := logging.GetLogger("websearch")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if len(allowedDomains) > 200 {
		allowedDomains = allowedDomains[:200]
	}

	reqBody := webSearchRequest{
		Model:       s.model,
		MaxTokens:   800,
		Temperature: 0,
		Messages: []map[string]string{{
			"role": "user",
			"content": "検索して、関連するURLだけを返してください。\n" +
				"query: " + query + "\n" +
				"出力はURLのみ（複数行）にしてください。",
		}},
		Tools: []map[string]interface{}{{
			"type":            "web_search_20250305",
			"name":            "web_search",
			"max_uses":        1,
			"allowed_domains": allowedDomains,
		}},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode web search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build web search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", s.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("web search connection failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read web search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search API error (status %d)", resp.StatusCode)
	}

	var msg struct {
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode web search response: %w", err)
	}

	urls := extractURLsFromBlocks(msg.Content)
	logger.Info().Str("query", query).Int("urls", len(urls)).Msg("web search completed")

	if maxURLs < 1 {
		maxURLs = 1
	}
	if len(urls) > maxURLs {
		urls = urls[:maxURLs]
	}
	return urls, nil
}

// extractURLsFromBlocks digs URLs out of the loosely-typed content
// blocks: text, direct url keys, and nested search result payloads.
func extractURLsFromBlocks(blocks []json.RawMessage) []string {
	var urls []string
	for _, rawBlock := range blocks {
		var data map[string]interface{}
		if err := json.Unmarshal(rawBlock, &data); err != nil {
			continue
		}

		if t, ok := data["text"].(string); ok {
			urls = append(urls, extractURLsFromText(t)...)
		}
		urls = append(urls, urlKeys(data)...)

		for _, nestedKey := range []string{"search_results", "results", "content"} {
			nested, ok := data[nestedKey].([]interface{})
			if !ok {
				continue
			}
			for _, item := range nested {
				m, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				urls = append(urls, urlKeys(m)...)
				for _, tk := range []string{"text", "snippet"} {
					if t, ok := m[tk].(string); ok {
						urls = append(urls, extractURLsFromText(t)...)
					}
				}
			}
		}
	}
	return dedupeStrings(urls)
}

func urlKeys(m map[string]interface{}) []string {
	var out []string
	for _, k := range []string{"url", "source_url", "link"} {
		if v, ok := m[k].(string); ok {
			v = strings.TrimSpace(v)
			if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
				out = append(out, v)
			}
		}
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
