// Package pipeline wires the whole generation flow: payload validation,
// reference selection, prompt assembly, backend generation, the content
// policy gate, similarity scoring and the single optional rewrite pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/isaomisk/HoroloGen/internal/generation"
	"github.com/isaomisk/HoroloGen/internal/policy"
	"github.com/isaomisk/HoroloGen/internal/prompt"
	"github.com/isaomisk/HoroloGen/internal/reference"
	"github.com/isaomisk/HoroloGen/internal/similarity"
	"github.com/isaomisk/HoroloGen/internal/trust"
	"github.com/isaomisk/HoroloGen/pkg/article"
	"github.com/isaomisk/HoroloGen/pkg/logging"
)

// RewriteThreshold is the similarity percent at which auto mode decides
// the draft is too close to its sources and triggers the paraphrase pass.
const RewriteThreshold = 35

// Generator orchestrates one article generation end to end.
type Generator struct {
	registry  *trust.Registry
	selector  *reference.Selector
	assembler *prompt.Assembler
	gen       *generation.Generator
	filter    *policy.Filter
	events    *EventBus
	logger    zerolog.Logger
}

// New wires a Generator from its parts. fetch is the per-URL fetch
// function, typically Fetcher.Fetch.
func New(registry *trust.Registry, fetch reference.FetchFunc, backend generation.Backend, filter *policy.Filter) *Generator {
	return &Generator{
		registry:  registry,
		selector:  reference.NewSelector(fetch),
		assembler: prompt.NewAssembler(registry),
		gen:       generation.NewGenerator(backend),
		filter:    filter,
		logger:    logging.GetLogger("pipeline"),
	}
}

// AttachEventBus enables lifecycle event publishing. Without a bus the
// pipeline stays silent; generation never depends on observers.
func (g *Generator) AttachEventBus(bus *EventBus) {
	g.events = bus
}

func (g *Generator) publish(eventType EventType, generationID string, payload *article.GenerationPayload, fill func(*GenerationEvent)) {
	if g.events == nil {
		return
	}
	event := NewGenerationEvent(eventType, generationID)
	if payload != nil {
		event.Brand = payload.Product.Brand
		event.Reference = payload.Product.Reference
	}
	if fill != nil {
		fill(event)
	}
	_ = g.events.Publish(event)
}

// Generate runs the pipeline for one payload.
//
// The rewrite pass runs at most once, regardless of mode: force always
// rewrites, auto rewrites only when the first draft scores at or above
// RewriteThreshold against the combined reference text, none never
// rewrites. The similarity of the rewritten draft is reported as-is
// without another rewrite decision.
func (g *Generator) Generate(ctx context.Context, payload *article.GenerationPayload, mode article.RewriteMode) (article.ArticleDraft, article.RefMeta, error) {
	meta := article.RefMeta{GenerationID: uuid.New().String()}
	logger := logging.GetGenerationLogger(meta.GenerationID)

	if payload == nil {
		return article.ArticleDraft{}, meta, fmt.Errorf("payload cannot be nil")
	}
	if err := payload.Validate(); err != nil {
		return article.ArticleDraft{}, meta, fmt.Errorf("invalid payload: %w", err)
	}
	g.publish(EventGenerationStarted, meta.GenerationID, payload, nil)

	bundle, missURLs := g.selector.SelectAndCombine(ctx, payload.ReferenceURLs, payload.Prefetch, payload.Product.Reference)
	meta.SelectedReferenceURL = bundle.ChosenURL
	meta.SelectedReferenceReason = bundle.ChosenReason
	meta.SelectedReferenceChars = bundle.ChosenCharCount
	meta.CombinedReferenceChars = bundle.CombinedCharCount
	meta.CombinedReferencePrev = bundle.CombinedPreview
	meta.ReferenceURLsDebug = bundle.PerURLDebug

	if len(missURLs) > 0 {
		logger.Info().Strs("urls", missURLs).Msg("reference URLs excluded from combination")
	}
	g.publish(EventReferenceSelected, meta.GenerationID, payload, func(e *GenerationEvent) {
		e.Metadata["chosen_url"] = bundle.ChosenURL
		e.Metadata["chosen_reason"] = bundle.ChosenReason
		e.Metadata["combined_chars"] = bundle.CombinedCharCount
	})

	hasRef := prompt.HasReferenceText(bundle)
	system := g.assembler.BuildSystem(payload.Style.Tone, hasRef)
	user := g.assembler.BuildUser(payload, bundle, missURLs)
	specsFallback := prompt.SpecsTemplate(prompt.NormalizeFacts(payload.Facts))

	draft, err := g.gen.Generate(ctx, system, user, generation.BaseTemp, specsFallback)
	if err != nil {
		g.publishFailure(meta.GenerationID, payload, err)
		return article.ArticleDraft{}, meta, err
	}
	if err := g.filter.Validate(draft.IntroText); err != nil {
		g.publishFailure(meta.GenerationID, payload, err)
		return article.ArticleDraft{}, meta, err
	}

	score := similarity.Score(draft.IntroText, bundle.CombinedText)
	meta.SimilarityPercent = score.Percent
	meta.SimilarityLevel = score.Level

	logger.Info().
		Str("tone", payload.Style.Tone).
		Bool("has_reference_text", hasRef).
		Int("similarity_percent", score.Percent).
		Str("similarity_level", score.Level).
		Msg("first draft generated")

	if !g.shouldRewrite(mode, score.Percent) {
		g.publish(EventDraftGenerated, meta.GenerationID, payload, func(e *GenerationEvent) {
			e.Metadata["similarity_percent"] = score.Percent
			e.Metadata["similarity_level"] = score.Level
		})
		return draft, meta, nil
	}

	meta.SimilarityBeforePercent = score.Percent
	meta.SimilarityBeforeLevel = score.Level

	rewritten, err := g.gen.Generate(ctx, system, prompt.BuildRewriteUser(user, draft), generation.RewriteTemp, specsFallback)
	if err != nil {
		err = fmt.Errorf("rewrite pass failed: %w", err)
		g.publishFailure(meta.GenerationID, payload, err)
		return article.ArticleDraft{}, meta, err
	}
	if err := g.filter.Validate(rewritten.IntroText); err != nil {
		g.publishFailure(meta.GenerationID, payload, err)
		return article.ArticleDraft{}, meta, err
	}

	after := similarity.Score(rewritten.IntroText, bundle.CombinedText)
	meta.SimilarityPercent = after.Percent
	meta.SimilarityLevel = after.Level
	meta.RewriteApplied = true

	logger.Info().
		Int("before_percent", meta.SimilarityBeforePercent).
		Int("after_percent", after.Percent).
		Msg("rewrite pass applied")
	g.publish(EventRewriteApplied, meta.GenerationID, payload, func(e *GenerationEvent) {
		e.Metadata["before_percent"] = meta.SimilarityBeforePercent
		e.Metadata["after_percent"] = after.Percent
	})

	return rewritten, meta, nil
}

// publishFailure routes an error to the matching event type.
func (g *Generator) publishFailure(generationID string, payload *article.GenerationPayload, err error) {
	eventType := EventGenerationFailed
	var violation *policy.Violation
	if errors.As(err, &violation) {
		eventType = EventPolicyViolation
	}
	g.publish(eventType, generationID, payload, func(e *GenerationEvent) {
		e.Error = err.Error()
	})
}

func (g *Generator) shouldRewrite(mode article.RewriteMode, percent int) bool {
	switch mode {
	case article.RewriteForce:
		return true
	case article.RewriteAuto:
		return percent >= RewriteThreshold
	}
	return false
}
