package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaomisk/HoroloGen/internal/discovery"
	"github.com/isaomisk/HoroloGen/internal/generation"
	"github.com/isaomisk/HoroloGen/internal/pipeline"
	"github.com/isaomisk/HoroloGen/internal/policy"
	"github.com/isaomisk/HoroloGen/internal/trust"
	"github.com/isaomisk/HoroloGen/pkg/article"
)

type stubBackend struct {
	draft article.ArticleDraft
	err   error
}

func (s *stubBackend) CreateMessage(_ context.Context, _ generation.MessageRequest) (*generation.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	raw, _ := json.Marshal(map[string]string{
		"intro_text": s.draft.IntroText,
		"specs_text": s.draft.SpecsText,
	})
	return &generation.Message{
		Content: []generation.ContentBlock{{Type: "tool_use", Name: generation.ArticleToolName, Input: raw}},
	}, nil
}

func newTestApp(backend generation.Backend) *fiber.App {
	registry := trust.DefaultRegistry()
	fetch := func(_ context.Context, entry article.ReferenceEntry) article.FetchResult {
		return article.FetchResult{URL: entry.URL}
	}
	p := pipeline.New(registry, fetch, backend, policy.NewFilter())
	h := NewHandlers(p, discovery.NewService(registry, nil))

	app := fiber.New()
	SetupRoutes(app, h)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func generateBody() map[string]interface{} {
	return map[string]interface{}{
		"product": map[string]string{"brand": "OMEGA", "reference": "310.30.42.50.01.001"},
		"facts":   map[string]string{"movement": "manual winding"},
		"style":   map[string]string{"tone": "practical"},
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(&stubBackend{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "horologen", body["service"])
}

func TestGenerateArticleSuccess(t *testing.T) {
	app := newTestApp(&stubBackend{draft: article.ArticleDraft{
		IntroText: "店頭でも人気のモデルです。",
		SpecsText: "・ムーブメント：手巻き",
	}})

	resp := postJSON(t, app, "/api/v1/articles/generate", generateBody())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body GenerateResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "店頭でも人気のモデルです。", body.IntroText)
	assert.NotEmpty(t, body.RefMeta.GenerationID)
	assert.Equal(t, "参考URLなし（本文なし）", body.RefMeta.SelectedReferenceReason)
}

func TestGenerateArticleMissingBrand(t *testing.T) {
	app := newTestApp(&stubBackend{})
	body := generateBody()
	body["product"] = map[string]string{"reference": "310"}

	resp := postJSON(t, app, "/api/v1/articles/generate", body)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGenerateArticleUnknownRewriteMode(t *testing.T) {
	app := newTestApp(&stubBackend{})
	body := generateBody()
	body["rewrite_mode"] = "twice"

	resp := postJSON(t, app, "/api/v1/articles/generate", body)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGenerateArticlePolicyViolation(t *testing.T) {
	app := newTestApp(&stubBackend{draft: article.ArticleDraft{
		IntroText: "今買わないと損です。",
		SpecsText: "・ムーブメント：手巻き",
	}})

	resp := postJSON(t, app, "/api/v1/articles/generate", generateBody())
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "POLICY_VIOLATION", body.Code)
	assert.False(t, body.Retryable)
	assert.Contains(t, body.Error, "表現ルール")
	assert.Contains(t, body.Error, "ERR-")
	assert.NotContains(t, body.Error, "今買わないと損")
}

func TestGenerateArticleBackendFailure(t *testing.T) {
	app := newTestApp(&stubBackend{err: errors.New("messages API rate limit (status 429): details")})

	resp := postJSON(t, app, "/api/v1/articles/generate", generateBody())
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "RATE_CREDIT", body.Code)
	assert.True(t, body.Retryable)
	assert.NotContains(t, body.Error, "status 429")
}

func TestDiscoverRequiresBrandAndReference(t *testing.T) {
	app := newTestApp(&stubBackend{})

	resp := postJSON(t, app, "/api/v1/articles/discover", map[string]string{"brand": "omega"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDiscoverFailedURLWithoutSearcher(t *testing.T) {
	app := newTestApp(&stubBackend{})

	resp := postJSON(t, app, "/api/v1/articles/discover", map[string]string{
		"failed_url": "https://www.webchronos.net/features/gone-article",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body DiscoverResponse
	decodeBody(t, resp, &body)
	assert.Empty(t, body.URLs)
}

func TestDiscoverMissingCredentialsDegradesGracefully(t *testing.T) {
	t.Setenv("GOOGLE_CSE_API_KEY", "")
	t.Setenv("GOOGLE_CSE_CX", "")
	app := newTestApp(&stubBackend{})

	resp := postJSON(t, app, "/api/v1/articles/discover", map[string]string{
		"brand":     "omega",
		"reference": "310.30.42.50.01.001",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body DiscoverResponse
	decodeBody(t, resp, &body)
	assert.Empty(t, body.URLs)
	assert.Equal(t, "missing_api_key_or_cx", body.Debug.AutoURLReason)
}
