package config

// DefaultGeminiBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		DataDirectory:   "~/.local/share/gemtui",
		DefaultProvider: "gemini",
		Gemini: GeminiConfig{
			BaseURL:         DefaultGeminiBaseURL,
			DefaultModel:    "gemini-2.5-flash",
			ThinkingEnabled: false,
			ThinkingBudget:  8192,
		},
		Ollama: OllamaConfig{
			Host:         "http://localhost:11434",
			DefaultModel: "llama3.1:latest",
		},
	}
}

func GenerateUserConfigTemplate() string {
	return `# gemtui Configuration
# Location: ~/.config/gemtui/settings.toml
# This file uses TOML format: https://toml.io

# Directory where sessions are stored
data_directory = "~/.local/share/gemtui"

# Provider used for new turns: "gemini" or "ollama"
default_provider = "gemini"

# System instruction sent with every turn (optional)
# Example: "You are a helpful coding assistant."
system_instruction = ""

[gemini]
# Gemini OpenAI-compatible endpoint
base_url = "https://generativelanguage.googleapis.com/v1beta/openai/"

# One of: gemini-2.5-flash, gemini-2.5-pro, gemini-2.5-flash-lite
default_model = "gemini-2.5-flash"

# Thinking budget is only sent for model families that support it,
# and only when enabled here
thinking_enabled = false
thinking_budget = 8192

[ollama]
# Local Ollama server for local models
host = "http://localhost:11434"
default_model = "llama3.1:latest"
`
}
