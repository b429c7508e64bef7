package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/isaomisk/HoroloGen/pkg/apperrors"
	"github.com/isaomisk/HoroloGen/pkg/logging"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// articleToolSchema is the fixed two-field output schema. tool_choice
// forces the model into it so the happy path never parses prose.
var articleToolSchema = map[string]interface{}{
	"name":        ArticleToolName,
	"description": "時計商品紹介文とスペック文を返す。事実はcanonical_specsとremarksとreference_url本文の範囲のみ。",
	"input_schema": map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"intro_text": map[string]interface{}{"type": "string"},
			"specs_text": map[string]interface{}{"type": "string"},
		},
		"required": []string{"intro_text", "specs_text"},
	},
}

// AnthropicClient is a Messages API client. It keeps the rate limiter
// small because article generation is an interactive, staff-driven flow.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	client      *http.Client
	rateLimiter chan struct{}
	logger      zerolog.Logger
}

// NewAnthropicClient builds a client for the given key and model. An
// empty model falls back to the default.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = defaultModel
	}
	return &AnthropicClient{
		apiKey:      apiKey,
		baseURL:     anthropicBaseURL,
		model:       model,
		client:      &http.Client{Timeout: 90 * time.Second},
		rateLimiter: make(chan struct{}, 4),
		logger:      logging.GetLogger("anthropic"),
	}
}

// NewAnthropicClientFromEnv reads ANTHROPIC_API_KEY (required) and
// HOROLOGEN_CLAUDE_MODEL (optional).
func NewAnthropicClientFromEnv() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	return NewAnthropicClient(apiKey, os.Getenv("HOROLOGEN_CLAUDE_MODEL")), nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string { return c.model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string                 `json:"model"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature float64                `json:"temperature"`
	System      string                 `json:"system,omitempty"`
	Messages    []anthropicMessage     `json:"messages"`
	Tools       []interface{}          `json:"tools,omitempty"`
	ToolChoice  map[string]interface{} `json:"tool_choice,omitempty"`
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateMessage implements Backend against the Messages API.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req MessageRequest) (*Message, error) {
	select {
	case c.rateLimiter <- struct{}{}:
		defer func() { <-c.rateLimiter }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	apiReq := anthropicRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.User}},
	}
	if !req.PlainJSON {
		apiReq.Tools = []interface{}{articleToolSchema}
		apiReq.ToolChoice = map[string]interface{}{"type": "tool", "name": ArticleToolName}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("messages API connection failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp.StatusCode, raw)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("stop_reason", msg.StopReason).
		Bool("plain_json", req.PlainJSON).
		Dur("elapsed", time.Since(start)).
		Msg("messages API call completed")

	return &msg, nil
}

// apiError shapes an HTTP failure so the message carries the terms the
// coarse classifier keys on. Response text is masked before it can hit
// a log line downstream.
func (c *AnthropicClient) apiError(status int, raw []byte) error {
	var body anthropicErrorBody
	detail := ""
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		detail = apperrors.Mask(body.Error.Message)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("messages API authentication failed (status %d): %s", status, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("messages API rate limit (status %d): %s", status, detail)
	default:
		return fmt.Errorf("messages API error (status %d, type %s): %s", status, body.Error.Type, detail)
	}
}
