// Package llm wraps the OpenAI-compatible chat completion endpoint that
// powers both the conversation engine and the memory archivist.
//
// Every call is a single round-trip: there are no retries. A failed call
// surfaces immediately and the caller decides what the user sees.
package llm

import (
	"context"
	"errors"
)

// Error taxonomy. Callers classify failures with errors.Is.
var (
	// ErrConfiguration means the endpoint URL or API key is missing. No
	// request is attempted.
	ErrConfiguration = errors.New("llm: endpoint not configured")

	// ErrTransport covers network failures and non-2xx responses.
	ErrTransport = errors.New("llm: transport failure")

	// ErrParse means the endpoint answered but the body lacks the expected
	// message content, or a structured payload could not be interpreted.
	ErrParse = errors.New("llm: malformed response")
)

// Role is the role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the prompt sent to the endpoint.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completer performs a chat completion round-trip.
type Completer interface {
	Chat(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// Summarizer is the single-prompt form used for refinement and import.
type Summarizer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// Recorder receives one observation per round-trip.
type Recorder interface {
	ObserveCompletion(purpose, outcome string, seconds float64)
}

type purposeKey struct{}

// WithPurpose labels the round-trips made with ctx (e.g. "chat", "refine").
// The label only feeds metrics and logs.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFromContext returns the label set by WithPurpose, or "unknown".
func PurposeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// Outcome maps an error from Chat/Complete to a short metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrParse):
		return "parse"
	default:
		return "transport"
	}
}
