package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/isaomisk/HoroloGen/pkg/article"
	"github.com/isaomisk/HoroloGen/pkg/logging"
)

// plainJSONInstruction is appended on the last-resort pass where the
// tool definition is dropped entirely.
const plainJSONInstruction = "\n[出力形式（厳守）]\n" +
	"JSONオブジェクトのみを出力してください。キーは intro_text と specs_text の2つです。\n" +
	"コードブロック・前置き・説明文は一切付けないでください。\n"

// Failure is the typed error for a generation whose output could not be
// turned into a valid draft at any tier. It is retryable by the caller.
type Failure struct {
	Tier   int
	Keys   []string
	Detail string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("tool output invalid after tier %d: keys=%v %s", f.Tier, f.Keys, f.Detail)
}

// Generator drives the backend and the layered extraction.
type Generator struct {
	backend Backend
	logger  zerolog.Logger
}

func NewGenerator(backend Backend) *Generator {
	return &Generator{
		backend: backend,
		logger:  logging.GetLogger("generation"),
	}
}

// Generate produces a draft from prebuilt prompts.
//
// Extraction is tiered: the forced tool call is inspected first, then
// any JSON embedded in the text blocks of the same response. If both
// fail, the tool call is retried once in full. The final fallback
// reissues the prompt without tools and parses the reply as plain JSON.
// specsFallback fills an empty specs_text when the intro is otherwise
// valid; it is the deterministic template rendered from canonical facts.
func (g *Generator) Generate(ctx context.Context, system, user string, temperature float64, specsFallback string) (article.ArticleDraft, error) {
	var lastKeys []string
	var lastDetail string

	for attempt := 0; attempt < 2; attempt++ {
		msg, err := g.backend.CreateMessage(ctx, MessageRequest{
			System:      system,
			User:        user,
			Temperature: temperature,
		})
		if err != nil {
			return article.ArticleDraft{}, fmt.Errorf("generation call failed: %w", err)
		}

		if data := pickToolInput(msg); data != nil {
			if draft, ok := g.accept(data, specsFallback); ok {
				return draft, nil
			}
			lastKeys = mapKeys(data)
		}

		if data := extractJSONObject(messageText(msg)); data != nil {
			if draft, ok := g.accept(data, specsFallback); ok {
				g.logger.Warn().Msg("draft recovered from embedded JSON instead of tool output")
				return draft, nil
			}
			lastKeys = mapKeys(data)
		}

		lastDetail = fmt.Sprintf("stop_reason=%s blocks=%d", msg.StopReason, len(msg.Content))
		g.logger.Warn().
			Int("attempt", attempt+1).
			Str("stop_reason", msg.StopReason).
			Strs("keys", lastKeys).
			Msg("tool output missing or invalid")
	}

	msg, err := g.backend.CreateMessage(ctx, MessageRequest{
		System:      system,
		User:        user + plainJSONInstruction,
		Temperature: temperature,
		PlainJSON:   true,
	})
	if err != nil {
		return article.ArticleDraft{}, fmt.Errorf("plain JSON fallback call failed: %w", err)
	}
	if data := extractJSONObject(messageText(msg)); data != nil {
		if draft, ok := g.accept(data, specsFallback); ok {
			g.logger.Warn().Msg("draft recovered via plain JSON fallback")
			return draft, nil
		}
		lastKeys = mapKeys(data)
	}

	return article.ArticleDraft{}, &Failure{Tier: 3, Keys: lastKeys, Detail: lastDetail}
}

// accept validates a candidate draft, applying the deterministic specs
// fallback when only specs_text is missing.
func (g *Generator) accept(data map[string]string, specsFallback string) (article.ArticleDraft, bool) {
	draft, ok := draftFrom(data)
	if ok {
		return draft, true
	}
	if draft.IntroText != "" && draft.SpecsText == "" && strings.TrimSpace(specsFallback) != "" {
		g.logger.Warn().Msg("specs_text was empty, regenerated from canonical facts")
		draft.SpecsText = strings.TrimSpace(specsFallback)
		return draft, true
	}
	return draft, false
}
