package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenNoSettingsFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultProvider != "gemini" {
		t.Errorf("DefaultProvider = %q, want gemini", cfg.DefaultProvider)
	}
	if cfg.DefaultModel != "gemini-2.5-flash" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.GeminiBaseURL != DefaultGeminiBaseURL {
		t.Errorf("GeminiBaseURL = %q", cfg.GeminiBaseURL)
	}
	if cfg.ThinkingBudget != 8192 {
		t.Errorf("ThinkingBudget = %d, want 8192", cfg.ThinkingBudget)
	}
	if cfg.CredentialStore == nil {
		t.Error("CredentialStore must always be wired")
	}
}

func TestLoadReadsSettingsFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "gemtui")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatal(err)
	}
	settings := `
data_directory = "/tmp/gemtui-test"
default_provider = "ollama"
system_instruction = "Be terse."

[gemini]
default_model = "gemini-2.5-pro"
thinking_enabled = true
thinking_budget = 4096

[ollama]
host = "http://example:11434"
`
	if err := os.WriteFile(filepath.Join(configDir, "settings.toml"), []byte(settings), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultProvider != "ollama" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.DefaultModel != "gemini-2.5-pro" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if !cfg.ThinkingEnabled || cfg.ThinkingBudget != 4096 {
		t.Errorf("thinking = %v/%d", cfg.ThinkingEnabled, cfg.ThinkingBudget)
	}
	if cfg.OllamaHost != "http://example:11434" {
		t.Errorf("OllamaHost = %q", cfg.OllamaHost)
	}
	if cfg.SystemInstruction != "Be terse." {
		t.Errorf("SystemInstruction = %q", cfg.SystemInstruction)
	}
}

func TestEnvOverridesWinOverSettings(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMTUI_MODEL", "gemini-2.5-flash-lite")
	t.Setenv("GEMTUI_PROVIDER", "ollama")
	t.Setenv("GEMTUI_DATA_DIR", "/tmp/elsewhere")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultModel != "gemini-2.5-flash-lite" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.DefaultProvider != "ollama" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.DataDirectory != "/tmp/elsewhere" {
		t.Errorf("DataDirectory = %q", cfg.DataDirectory)
	}
}

func TestResolveAPIKeyEnvWins(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.ResolveAPIKey(""); got != "env-key" {
		t.Errorf("ResolveAPIKey = %q, want the env key", got)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	if got := ExpandPath("~/data"); got != "/home/tester/data" {
		t.Errorf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/absolute/path"); got != "/absolute/path" {
		t.Errorf("ExpandPath = %q", got)
	}
}
