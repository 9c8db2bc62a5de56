// Package llm provides clients for OpenAI-compatible model APIs. Two
// invocation strategies exist — a single-turn chat completion and a stateful
// assistant-thread run — and both satisfy the same Client contract: given a
// prompt (and optional image), return the model's raw text answer.
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrRunFailed is returned when an assistant run ends in a terminal failure
// state (failed, cancelled or expired).
var ErrRunFailed = errors.New("assistant run ended in a failure state")

// ErrRunTimeout is returned when an assistant run does not reach a terminal
// state within the bounded number of polling attempts.
var ErrRunTimeout = errors.New("assistant run did not complete in time")

// Request is a single model invocation.
type Request struct {
	System      string
	Prompt      string
	ImageBase64 string // raw base64 image payload, attached as a data URI when set
}

// Client invokes a model and returns its raw text answer.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config carries the settings shared by both client implementations.
type Config struct {
	APIKey  string
	BaseURL string // e.g. https://api.openai.com/v1
	Model   string
	Timeout time.Duration // per-HTTP-call timeout; defaults to 60s
}

const defaultTimeout = 60 * time.Second

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}
