// Package workflows defines the Temporal workflows for batch article
// generation: one activity invocation per product, executed in parallel,
// with per-item failure isolation.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/isaomisk/HoroloGen/pkg/article"
)

// GenerateArticleActivityName is registered by the worker in cmd/server.
const GenerateArticleActivityName = "GenerateArticleActivity"

// BatchItem is one product to generate an article for.
type BatchItem struct {
	Payload     article.GenerationPayload `json:"payload"`
	RewriteMode string                    `json:"rewrite_mode"`
}

// BatchGenerationInput drives one batch run.
type BatchGenerationInput struct {
	Items []BatchItem `json:"items"`
}

// ItemResult is the per-product outcome. Failed items carry the error
// message so a batch never loses track of what it skipped.
type ItemResult struct {
	Brand     string          `json:"brand"`
	Reference string          `json:"reference"`
	IntroText string          `json:"intro_text,omitempty"`
	SpecsText string          `json:"specs_text,omitempty"`
	RefMeta   article.RefMeta `json:"ref_meta"`
	Error     string          `json:"error,omitempty"`
}

// BatchGenerationResult summarizes the run.
type BatchGenerationResult struct {
	Generated int          `json:"generated"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

// GenerateArticleInput is the activity input for one product.
type GenerateArticleInput struct {
	Payload     article.GenerationPayload `json:"payload"`
	RewriteMode string                    `json:"rewrite_mode"`
}

// GenerateArticleResult is the activity output for one product.
type GenerateArticleResult struct {
	IntroText string          `json:"intro_text"`
	SpecsText string          `json:"specs_text"`
	RefMeta   article.RefMeta `json:"ref_meta"`
}

// BatchGenerationWorkflow fans out one generation activity per item and
// collects the results. A failed item is recorded, not fatal; policy
// violations are non-retryable because the same prompt would produce
// the same banned phrase.
func BatchGenerationWorkflow(ctx workflow.Context, input BatchGenerationInput) (*BatchGenerationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting batch article generation", "items", len(input.Items))

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			NonRetryableErrorTypes: []string{"PolicyViolation", "InvalidPayload"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	futures := make([]workflow.Future, len(input.Items))
	for i, item := range input.Items {
		futures[i] = workflow.ExecuteActivity(ctx, GenerateArticleActivityName, GenerateArticleInput{
			Payload:     item.Payload,
			RewriteMode: item.RewriteMode,
		})
	}

	result := &BatchGenerationResult{Items: make([]ItemResult, len(input.Items))}
	for i, future := range futures {
		item := ItemResult{
			Brand:     input.Items[i].Payload.Product.Brand,
			Reference: input.Items[i].Payload.Product.Reference,
		}

		var out GenerateArticleResult
		if err := future.Get(ctx, &out); err != nil {
			item.Error = err.Error()
			result.Failed++
			logger.Warn("Batch item failed", "reference", item.Reference, "error", err)
		} else {
			item.IntroText = out.IntroText
			item.SpecsText = out.SpecsText
			item.RefMeta = out.RefMeta
			result.Generated++
		}
		result.Items[i] = item
	}

	logger.Info("Batch article generation finished",
		"generated", result.Generated, "failed", result.Failed)
	return result, nil
}
