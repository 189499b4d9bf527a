package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// GeminiConfig holds the Gemini provider settings.
type GeminiConfig struct {
	BaseURL         string `toml:"base_url"`
	DefaultModel    string `toml:"default_model"`
	ThinkingEnabled bool   `toml:"thinking_enabled"`
	ThinkingBudget  int32  `toml:"thinking_budget"`
}

// OllamaConfig holds the local-model provider settings.
type OllamaConfig struct {
	Host         string `toml:"host"`
	DefaultModel string `toml:"default_model"`
}

// UserConfig is the on-disk shape of settings.toml.
type UserConfig struct {
	DataDirectory     string       `toml:"data_directory"`
	DefaultProvider   string       `toml:"default_provider"`
	SystemInstruction string       `toml:"system_instruction,omitempty"`
	Gemini            GeminiConfig `toml:"gemini"`
	Ollama            OllamaConfig `toml:"ollama"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDirectory     string
	DefaultProvider   string
	SystemInstruction string

	GeminiBaseURL   string
	DefaultModel    string
	ThinkingEnabled bool
	ThinkingBudget  int32

	OllamaHost         string
	OllamaDefaultModel string

	CredentialStore *CredentialStore
}

var Debug = false
var DebugLog *log.Logger

// DataDir returns the expanded data directory path.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("GEMTUI_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if model := os.Getenv("GEMTUI_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if baseURL := os.Getenv("GEMTUI_GEMINI_BASE_URL"); baseURL != "" {
		c.GeminiBaseURL = baseURL
	}
	if host := os.Getenv("GEMTUI_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if provider := os.Getenv("GEMTUI_PROVIDER"); provider != "" {
		c.DefaultProvider = provider
	}
}

// Load reads settings.toml, falling back to defaults when the file does not
// exist, and applies environment overrides on top.
func Load() (*Config, error) {
	user := DefaultUserConfig()

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		if _, err := toml.DecodeFile(settingsPath, user); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", settingsPath, err)
		}
	}

	cfg := &Config{
		DataDirectory:      user.DataDirectory,
		DefaultProvider:    user.DefaultProvider,
		SystemInstruction:  user.SystemInstruction,
		GeminiBaseURL:      user.Gemini.BaseURL,
		DefaultModel:       user.Gemini.DefaultModel,
		ThinkingEnabled:    user.Gemini.ThinkingEnabled,
		ThinkingBudget:     user.Gemini.ThinkingBudget,
		OllamaHost:         user.Ollama.Host,
		OllamaDefaultModel: user.Ollama.DefaultModel,
	}
	cfg.applyEnvOverrides()

	cfg.CredentialStore = NewCredentialStore(cfg.DataDir())

	return cfg, nil
}

// Save writes the current configuration back to settings.toml.
func (c *Config) Save() error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	user := &UserConfig{
		DataDirectory:     c.DataDirectory,
		DefaultProvider:   c.DefaultProvider,
		SystemInstruction: c.SystemInstruction,
		Gemini: GeminiConfig{
			BaseURL:         c.GeminiBaseURL,
			DefaultModel:    c.DefaultModel,
			ThinkingEnabled: c.ThinkingEnabled,
			ThinkingBudget:  c.ThinkingBudget,
		},
		Ollama: OllamaConfig{
			Host:         c.OllamaHost,
			DefaultModel: c.OllamaDefaultModel,
		},
	}

	f, err := os.OpenFile(GetSettingsFilePath(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open settings file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(user); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return nil
}

// ResolveAPIKey returns the Gemini API key: the environment variable wins,
// then the encrypted credential store. An empty result means the key was
// never configured.
func (c *Config) ResolveAPIKey(passphrase string) string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	if c.CredentialStore == nil {
		return ""
	}
	key, err := c.CredentialStore.LoadAPIKey(passphrase)
	if err != nil {
		if DebugLog != nil {
			DebugLog.Printf("[Config] credential load failed: %v", err)
		}
		return ""
	}
	return key
}

// CheckDebug reports whether debug logging was requested.
func CheckDebug() bool {
	debug := os.Getenv("GEMTUI_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the debug log under the data directory when
// GEMTUI_DEBUG is set. 0600 - debug output may contain message content.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started ===")
}
