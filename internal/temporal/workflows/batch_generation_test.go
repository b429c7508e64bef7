package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/isaomisk/HoroloGen/pkg/article"
)

// newBatchEnv registers the activity under its production name so the
// by-name OnActivity mocks resolve against a known signature.
func newBatchEnv() *testsuite.TestWorkflowEnvironment {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(
		func(_ context.Context, _ GenerateArticleInput) (*GenerateArticleResult, error) {
			return &GenerateArticleResult{}, nil
		},
		activity.RegisterOptions{Name: GenerateArticleActivityName},
	)
	return env
}

func batchInput() BatchGenerationInput {
	return BatchGenerationInput{Items: []BatchItem{
		{
			Payload: article.GenerationPayload{
				Product: article.Product{Brand: "OMEGA", Reference: "310.30"},
			},
		},
		{
			Payload: article.GenerationPayload{
				Product: article.Product{Brand: "GRAND SEIKO", Reference: "SBGA211"},
			},
			RewriteMode: "auto",
		},
	}}
}

func TestBatchGenerationWorkflowAllSucceed(t *testing.T) {
	env := newBatchEnv()

	env.OnActivity(GenerateArticleActivityName, mock.Anything, mock.Anything).Return(
		&GenerateArticleResult{
			IntroText: "紹介文",
			SpecsText: "・備考：国内正規品",
		}, nil)

	env.ExecuteWorkflow(BatchGenerationWorkflow, batchInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result BatchGenerationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 2, result.Generated)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "SBGA211", result.Items[1].Reference)
	assert.Equal(t, "紹介文", result.Items[1].IntroText)
}

func TestBatchGenerationWorkflowRecordsFailures(t *testing.T) {
	env := newBatchEnv()

	env.OnActivity(GenerateArticleActivityName, mock.Anything, GenerateArticleInput{
		Payload: batchInput().Items[0].Payload,
	}).Return(nil, errors.New("generation call failed"))
	env.OnActivity(GenerateArticleActivityName, mock.Anything, GenerateArticleInput{
		Payload:     batchInput().Items[1].Payload,
		RewriteMode: "auto",
	}).Return(&GenerateArticleResult{IntroText: "ok", SpecsText: "s"}, nil)

	env.ExecuteWorkflow(BatchGenerationWorkflow, batchInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result BatchGenerationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.Failed)
	assert.NotEmpty(t, result.Items[0].Error)
	assert.Equal(t, "ok", result.Items[1].IntroText)
}
