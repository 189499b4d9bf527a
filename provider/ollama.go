package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"gemtui/engine"
)

// OllamaProvider runs turns against a local Ollama server.
type OllamaProvider struct {
	client  *api.Client
	baseURL string
}

// ModelInfo describes a model available on the local server.
type ModelInfo struct {
	Name string
	Size int64
}

// NewOllamaProvider creates an Ollama provider instance.
//
// Parameters:
//   - baseURL: The Ollama server URL (e.g., "http://localhost:11434").
//     If empty, defaults to "http://localhost:11434".
//
// Returns an error if the baseURL is invalid.
func NewOllamaProvider(baseURL string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaProvider{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		baseURL: baseURL,
	}, nil
}

func buildOllamaMessages(history []engine.Message, text, image string, opts engine.TurnOptions) []api.Message {
	msgs := make([]api.Message, 0, len(history)+2)

	if opts.SystemInstruction != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: opts.SystemInstruction})
	}

	for _, m := range history {
		role := "user"
		if m.Role == engine.RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.FullText()})
	}

	turn := api.Message{Role: "user", Content: text}
	if image != "" {
		if data, err := base64.StdEncoding.DecodeString(image); err == nil {
			turn.Images = []api.ImageData{data}
		}
	}
	msgs = append(msgs, turn)

	return msgs
}

// StreamTurn implements engine.Provider with streaming support.
func (p *OllamaProvider) StreamTurn(ctx context.Context, history []engine.Message, text string, image string, opts engine.TurnOptions, callback engine.StreamCallback) error {
	req := &api.ChatRequest{
		Model:    opts.Model,
		Messages: buildOllamaMessages(history, text, image, opts),
		Stream:   func(b bool) *bool { return &b }(true),
	}

	respFunc := func(resp api.ChatResponse) error {
		if callback != nil && resp.Message.Content != "" {
			return callback(engine.Chunk{Text: resp.Message.Content})
		}
		return nil
	}

	if err := p.client.Chat(ctx, req, respFunc); err != nil {
		return fmt.Errorf("Ollama streaming error: %w", err)
	}
	return nil
}

// GenerateImage implements engine.Provider. Ollama has no image generation
// endpoint.
func (p *OllamaProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("image generation is not supported by the Ollama provider")
}

// ListModels returns the models available on the local server.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = ModelInfo{Name: m.Name, Size: m.Size}
	}
	return models, nil
}

// Ping checks if the Ollama server is reachable.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.List(ctx)
	return err
}
