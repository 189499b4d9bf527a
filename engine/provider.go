package engine

import "context"

// Chunk is one incremental unit of text delivered by a streaming turn.
// Text, when non-empty, is a delta to append, never a full replacement.
type Chunk struct {
	Text string
}

// StreamCallback is called for each chunk of a streamed response.
type StreamCallback func(chunk Chunk) error

// TurnOptions carries the per-turn request configuration.
//
// ThinkingBudget must be nil for model families that do not accept it; the
// adapter forwards it verbatim and the API rejects it for unsupported
// families. The engine owns that gate (see turnOptions).
type TurnOptions struct {
	Model             string
	SystemInstruction string
	ThinkingBudget    *int32
}

// Provider abstracts the generative-model service.
//
// The interface lives in the engine package, not the provider package, to
// avoid import cycles: provider implementations import engine, and the
// engine uses the interface without importing them.
//
// StreamTurn sends the history preceding the current turn plus the new
// user text/image, and streams response deltas through the callback. The
// stream is finite and non-restartable; a callback error aborts it.
//
// GenerateImage produces a single base64-encoded image, no streaming.
type Provider interface {
	StreamTurn(ctx context.Context, history []Message, text string, image string, opts TurnOptions, callback StreamCallback) error
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
