package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"gemtui/catalog"
	"gemtui/config"
	"gemtui/engine"
)

// GeminiProvider talks to Gemini through its OpenAI-compatible endpoint
// using the official OpenAI Go SDK.
type GeminiProvider struct {
	client  openai.Client
	baseURL string
}

// NewGeminiProvider creates a Gemini provider instance.
//
// Parameters:
//   - baseURL: Gemini OpenAI-compatible base URL (default: config.DefaultGeminiBaseURL)
//   - apiKey: Gemini API key (required)
//
// Returns an error if the API key is missing.
func NewGeminiProvider(baseURL, apiKey string) (*GeminiProvider, error) {
	if baseURL == "" {
		baseURL = config.DefaultGeminiBaseURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &GeminiProvider{
		client:  client,
		baseURL: baseURL,
	}, nil
}

// buildChatMessages converts the conversation log plus the new turn into the
// SDK's message union. History entries carry their full form so the model
// sees attachment content, not the display text.
func buildChatMessages(history []engine.Message, text, image string, opts engine.TurnOptions) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)

	if opts.SystemInstruction != "" {
		msgs = append(msgs, openai.SystemMessage(opts.SystemInstruction))
	}

	for _, m := range history {
		switch m.Role {
		case engine.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.FullText()))
		case engine.RoleModel:
			msgs = append(msgs, openai.AssistantMessage(m.Text))
		}
	}

	if image != "" {
		parts := []openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(text),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:image/png;base64," + image,
			}),
		}
		msgs = append(msgs, openai.UserMessage(parts))
	} else {
		msgs = append(msgs, openai.UserMessage(text))
	}

	return msgs
}

// StreamTurn implements engine.Provider with streaming support.
func (p *GeminiProvider) StreamTurn(ctx context.Context, history []engine.Message, text string, image string, opts engine.TurnOptions, callback engine.StreamCallback) error {
	params := openai.ChatCompletionNewParams{
		Messages: buildChatMessages(history, text, image, opts),
		Model:    openai.ChatModel(opts.Model),
	}

	var reqOpts []option.RequestOption
	if opts.ThinkingBudget != nil {
		// Gemini-specific extension; the OpenAI-compatible surface accepts
		// it only via extra_body.
		reqOpts = append(reqOpts, option.WithJSONSet(
			"extra_body.google.thinking_config.thinking_budget", *opts.ThinkingBudget))
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params, reqOpts...)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if callback != nil {
				if err := callback(engine.Chunk{Text: chunk.Choices[0].Delta.Content}); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("Gemini streaming error: %w", err)
	}
	return nil
}

// GenerateImage implements engine.Provider. The result is the raw base64
// payload, no data-URI prefix.
func (p *GeminiProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(catalog.ImageModel),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini image generation error: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("Gemini image generation returned no image data")
	}
	return resp.Data[0].B64JSON, nil
}

// Ping checks that the endpoint is reachable and the key is accepted.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("Gemini ping failed: %w", err)
	}
	return nil
}
