// Package generative sends prompts to a hosted text model.
//
// Bedrock serves Anthropic models through the AWS runtime API; Gemini
// serves Google models through the GenAI SDK. Both return the raw text of
// the first response, which callers decode with package jsonrepair.
package generative

import (
	"context"
	"errors"
)

// Request is a single-turn completion request.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the model's reply.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

var (
	// ErrEmptyResponse is returned when the model replies without text.
	ErrEmptyResponse = errors.New("generative: model returned no text")

	// ErrEmptyPrompt is returned for a blank prompt.
	ErrEmptyPrompt = errors.New("generative: prompt is empty")
)
