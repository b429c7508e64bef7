// Package activities implements the Temporal activities backing the
// batch generation workflow.
package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/isaomisk/HoroloGen/internal/pipeline"
	"github.com/isaomisk/HoroloGen/internal/policy"
	"github.com/isaomisk/HoroloGen/internal/temporal/workflows"
	"github.com/isaomisk/HoroloGen/pkg/article"
)

var globalPipeline *pipeline.Generator

// SetGlobalPipeline sets the pipeline instance used by activities. The
// worker wires it once at startup, before registration.
func SetGlobalPipeline(p *pipeline.Generator) {
	globalPipeline = p
}

// GenerateArticleActivity runs the full pipeline for one product.
// Policy violations and malformed payloads are reported as non-retryable
// application errors so the workflow retry policy skips them.
func GenerateArticleActivity(ctx context.Context, input workflows.GenerateArticleInput) (*workflows.GenerateArticleResult, error) {
	if globalPipeline == nil {
		return nil, fmt.Errorf("pipeline not initialized, call SetGlobalPipeline first")
	}

	mode, err := article.ParseRewriteMode(input.RewriteMode)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidPayload", err)
	}
	if err := input.Payload.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidPayload", err)
	}

	draft, meta, err := globalPipeline.Generate(ctx, &input.Payload, mode)
	if err != nil {
		var violation *policy.Violation
		if errors.As(err, &violation) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "PolicyViolation", err)
		}
		return nil, err
	}

	return &workflows.GenerateArticleResult{
		IntroText: draft.IntroText,
		SpecsText: draft.SpecsText,
		RefMeta:   meta,
	}, nil
}
