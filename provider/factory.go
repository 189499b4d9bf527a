package provider

import (
	"fmt"

	"gemtui/engine"
)

// Type identifies which backend a Config selects.
type Type string

const (
	TypeGemini Type = "gemini"
	TypeOllama Type = "ollama"
)

// Config holds the provider-agnostic connection settings.
type Config struct {
	Type    Type
	BaseURL string
	APIKey  string
}

// New creates a provider based on configuration.
//
// Returns an error if the provider type is unknown or the provider-specific
// constructor fails (missing API key, invalid URL).
func New(cfg Config) (engine.Provider, error) {
	switch cfg.Type {
	case TypeGemini:
		return NewGeminiProvider(cfg.BaseURL, cfg.APIKey)
	case TypeOllama:
		return NewOllamaProvider(cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
