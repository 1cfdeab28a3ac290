package downstream

import (
	"context"

	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

// CompletionClient calls the completion-analysis service over HTTP.
type CompletionClient struct{ *Client }

func NewCompletionClient(baseURL string, opts Options) *CompletionClient {
	return &CompletionClient{NewClient(baseURL, opts)}
}

var _ analysis.TestCaseGenerator = (*CompletionClient)(nil)

func (c *CompletionClient) GenerateTestCases(ctx context.Context, rec changes.Record) (*analysis.TestCaseResponse, error) {
	var out analysis.TestCaseResponse
	if err := c.PostJSON(ctx, "/generate-testcases", map[string]any{"record": rec}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatClient calls the chat-analysis service over HTTP.
type ChatClient struct{ *Client }

func NewChatClient(baseURL string, opts Options) *ChatClient {
	return &ChatClient{NewClient(baseURL, opts)}
}

var _ analysis.ChangeAnalyzer = (*ChatClient)(nil)

func (c *ChatClient) AnalyzeChange(ctx context.Context, rec changes.Record, prior *analysis.TestCaseResponse) (*analysis.Response, error) {
	body := map[string]any{"record": rec, "aiResponse": prior}
	var out analysis.Response
	if err := c.PostJSON(ctx, "/analyze", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
