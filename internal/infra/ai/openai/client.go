package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bryanwahyu/testcompanion/internal/domain/ai"
	"github.com/sashabaranov/go-openai"
)

// Decoding parameters shared by both services.
const (
	temperature         = 0.2
	topP                = 0.7
	completionMaxTokens = 300
	chatMaxTokens       = 1024
)

// Client talks to any OpenAI-compatible endpoint (Mistral, OpenAI, local gateways).
type Client struct {
	*openai.Client
	CompletionModel string
	ChatModel       string
	// JSONMode asks the provider for a json_object response on chat calls.
	JSONMode bool
}

// NewClient builds a client for baseURL. httpClient may be nil.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &Client{Client: openai.NewClientWithConfig(cfg)}
}

var (
	_ ai.Completer     = (*Client)(nil)
	_ ai.ChatCompleter = (*Client)(nil)
)

// Complete sends prompt to the completion endpoint and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       c.CompletionModel,
		Prompt:      prompt,
		MaxTokens:   completionMaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
	if err != nil {
		return "", mapError("completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}
	return resp.Choices[0].Text, nil
}

// Chat sends a system and a user message and returns the assistant content.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	model := c.ChatModel
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if c.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// reasoning models reject max_tokens and custom sampling
	if isReasoningModel(model) {
		req.MaxCompletionTokens = chatMaxTokens
	} else {
		req.MaxTokens = chatMaxTokens
		req.Temperature = temperature
		req.TopP = topP
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func mapError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", op, ai.ErrQuotaExceeded)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", op, ai.ErrQuotaExceeded)
	}
	return fmt.Errorf("failed to create %s: %w", op, err)
}
