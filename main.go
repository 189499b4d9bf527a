package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gemtui/catalog"
	"gemtui/config"
	"gemtui/engine"
	"gemtui/provider"
	"gemtui/storage"
	"gemtui/ui"
)

const (
	Version = "v0.1.0"
	License = "Apache-2.0"
)

func main() {
	// First run: drop a commented settings template so the user has
	// something to edit.
	if settingsPath := config.GetSettingsFilePath(); !config.FileExists(settingsPath) {
		if err := config.EnsureDir(config.GetConfigDir()); err == nil {
			os.WriteFile(settingsPath, []byte(config.GenerateUserConfigTemplate()), 0600)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.EnsureDir(cfg.DataDir()); err != nil {
		fmt.Printf("Failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())

	store, err := storage.NewSessionStore(cfg.DataDir())
	if err != nil {
		fmt.Printf("Failed to initialize session store: %v\n", err)
		os.Exit(1)
	}

	index, err := storage.NewSearchIndex(cfg.DataDir())
	if err != nil {
		// Search degrades gracefully; chat still works.
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Main] search index unavailable: %v", err)
		}
		index = nil
	}
	defer func() {
		if index != nil {
			index.Close()
		}
	}()

	prov, err := buildProvider(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize provider: %v\n", err)
		fmt.Println("Set GEMINI_API_KEY or configure credentials in settings.")
		os.Exit(1)
	}

	// Reachability check up front so a bad endpoint surfaces before the
	// first turn. Startup continues either way; turns report their own
	// errors in the log.
	if pinger, ok := prov.(interface{ Ping(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := pinger.Ping(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: provider unreachable: %v\n", err)
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Main] provider ping failed: %v", err)
			}
		}
		cancel()
	}

	model := cfg.DefaultModel
	if model == "" || (cfg.DefaultProvider == "gemini" && !catalog.Known(catalog.ModelID(model))) {
		model = string(catalog.DefaultModel)
	}

	eng := engine.New(prov, store, index, engine.Options{
		Model:             model,
		SystemInstruction: cfg.SystemInstruction,
		ThinkingEnabled:   cfg.ThinkingEnabled,
		ThinkingBudget:    cfg.ThinkingBudget,
	})
	defer eng.Close()

	p := tea.NewProgram(
		ui.NewAppView(eng, cfg),
		tea.WithAltScreen(),
	)

	// Engine events enter the bubbletea loop through Send; no polling.
	eng.Subscribe(func(ev any) {
		p.Send(ui.EngineEventMsg{Event: ev})
	})

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running gemtui: %v\n", err)
		os.Exit(1)
	}
}

func buildProvider(cfg *config.Config) (engine.Provider, error) {
	switch cfg.DefaultProvider {
	case "ollama":
		op, err := provider.NewOllamaProvider(cfg.OllamaHost)
		if err != nil {
			return nil, err
		}
		ui.SetLocalModelLister(func() ([]string, error) {
			models, err := op.ListModels(context.Background())
			if err != nil {
				return nil, err
			}
			names := make([]string, len(models))
			for i, m := range models {
				names[i] = m.Name
			}
			return names, nil
		})
		return op, nil

	default:
		apiKey := cfg.ResolveAPIKey(os.Getenv("GEMTUI_PASSPHRASE"))
		return provider.NewGeminiProvider(cfg.GeminiBaseURL, apiKey)
	}
}
