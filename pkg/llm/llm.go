// Package llm defines the inference adapter used by the call pipeline.
//
// The pipeline invokes a Responder with a single-turn prompt containing
// only the current transcript. Conversational context across turns is
// reconstructed through the exchange ledger's input threading, never by
// passing a multi-turn history to the model.
package llm

import (
	"context"
	"fmt"
)

// ServiceError wraps an inference backend failure.
type ServiceError struct {
	// Service names the failing backend, e.g. "openai" or "gemini".
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("llm: %s: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Responder produces the agent's reply to a prompt.
type Responder interface {
	// Respond returns the model's reply text for the given prompt.
	Respond(ctx context.Context, prompt string) (string, error)
}

// RespondFunc is an adapter to allow ordinary functions as Responders.
type RespondFunc func(ctx context.Context, prompt string) (string, error)

// Respond calls the underlying function.
func (f RespondFunc) Respond(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
