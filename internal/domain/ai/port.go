package ai

import "context"

// Completer sends a single text prompt to a completion-style model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ChatCompleter sends role-structured messages to a chat-style model.
type ChatCompleter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}
