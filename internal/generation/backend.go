// Package generation talks to the LLM backend and turns its responses
// into article drafts. Extraction is layered: a forced tool call first,
// then JSON embedded in text, then a plain-JSON reissue of the prompt.
package generation

import (
	"context"
	"encoding/json"
)

// Tool and model defaults for the article call.
const (
	ArticleToolName = "return_article"

	defaultModel = "claude-sonnet-4-5"
	maxTokens    = 2300

	// BaseTemp is used for the first pass, RewriteTemp for the
	// paraphrase pass where more variation is wanted.
	BaseTemp    = 0.3
	RewriteTemp = 0.5
)

// MessageRequest is one backend invocation. When PlainJSON is set the
// tool definition is omitted and the model is asked for raw JSON.
type MessageRequest struct {
	System      string
	User        string
	Temperature float64
	PlainJSON   bool
}

// ContentBlock mirrors one element of the response content array.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Message is the backend response: content blocks plus the stop reason,
// kept for diagnostics when extraction fails.
type Message struct {
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Model      string         `json:"model"`
}

// Backend abstracts the model API so the extractor and the pipeline can
// be tested against fakes.
type Backend interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*Message, error)
}
