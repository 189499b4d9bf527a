package testutil

import (
	"context"

	"gemtui/engine"
)

// MockProvider implements engine.Provider for testing.
type MockProvider struct {
	// Configurable responses
	StreamTurnFunc    func(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, callback engine.StreamCallback) error
	GenerateImageFunc func(ctx context.Context, prompt string) (string, error)
}

// NewMockProvider creates a mock provider with default implementations.
func NewMockProvider() *MockProvider {
	mock := &MockProvider{}
	mock.StreamTurnFunc = mock.defaultStreamTurn
	mock.GenerateImageFunc = mock.defaultGenerateImage
	return mock
}

// NewChunkedProvider creates a mock that streams the given chunks for every
// turn.
func NewChunkedProvider(chunks ...string) *MockProvider {
	mock := NewMockProvider()
	mock.StreamTurnFunc = func(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, callback engine.StreamCallback) error {
		for _, c := range chunks {
			if err := callback(engine.Chunk{Text: c}); err != nil {
				return err
			}
		}
		return nil
	}
	return mock
}

// NewFailingProvider creates a mock that streams the given chunks and then
// returns err.
func NewFailingProvider(err error, chunks ...string) *MockProvider {
	mock := NewMockProvider()
	mock.StreamTurnFunc = func(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, callback engine.StreamCallback) error {
		for _, c := range chunks {
			if cbErr := callback(engine.Chunk{Text: c}); cbErr != nil {
				return cbErr
			}
		}
		return err
	}
	return mock
}

func (m *MockProvider) defaultStreamTurn(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, callback engine.StreamCallback) error {
	return callback(engine.Chunk{Text: "Mock response"})
}

func (m *MockProvider) defaultGenerateImage(ctx context.Context, prompt string) (string, error) {
	return "bW9jaw==", nil
}

func (m *MockProvider) StreamTurn(ctx context.Context, history []engine.Message, text, image string, opts engine.TurnOptions, callback engine.StreamCallback) error {
	return m.StreamTurnFunc(ctx, history, text, image, opts, callback)
}

func (m *MockProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return m.GenerateImageFunc(ctx, prompt)
}
