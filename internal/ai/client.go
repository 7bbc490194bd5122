// Package ai defines the text-generation backend interface used by the
// prediction engine and provides Anthropic- and DeepSeek-backed
// implementations plus a fallback chain.
//
// The engine treats every call as blocking, fallible I/O: a non-nil error
// (or unusable output) sends the caller down its deterministic fallback path
// with a reduced confidence score. No retries happen at this layer — if retry
// is wanted it belongs to the collaborator boundary, not here.
package ai

import "context"

// Request is a single text-generation call.
type Request struct {
	// Prompt is the full prompt text, context included.
	Prompt string

	// Temperature controls output variability. The forecast path uses a low
	// value (determinism over creativity); the recommendation path a higher one.
	Temperature float64

	// MaxTokens caps the response length.
	MaxTokens int
}

// Generator is the interface the engine uses for all prompt-driven text
// generation. Implementations must be safe to call concurrently.
//
// A non-nil error means the call failed and the caller should take its
// deterministic fallback path; the engine never surfaces these errors to its
// own callers. Tests inject a stub that returns canned responses.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
