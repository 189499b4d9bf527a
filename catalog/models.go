// Package catalog defines the closed set of Gemini model identifiers and
// their capabilities. It is a leaf package so that both the engine and the
// provider implementations can consult it without import cycles.
package catalog

import "strings"

// ModelID identifies a chat model.
type ModelID string

const (
	GeminiFlash     ModelID = "gemini-2.5-flash"
	GeminiPro       ModelID = "gemini-2.5-pro"
	GeminiFlashLite ModelID = "gemini-2.5-flash-lite"
)

// ImageModel is the model used for image generation requests.
const ImageModel = "imagen-3.0-generate-002"

// DefaultModel is used for new installations and new sessions.
const DefaultModel = GeminiFlash

// thinkingModels lists the model families that accept a thinking budget.
// The API rejects the option for other families, so the gate here is a
// hard requirement, not an optimization. The lite variant does not take
// a budget.
var thinkingModels = map[ModelID]bool{
	GeminiFlash: true,
	GeminiPro:   true,
}

// All returns the closed set of chat models, in display order.
func All() []ModelID {
	return []ModelID{GeminiFlash, GeminiPro, GeminiFlashLite}
}

// Known reports whether id belongs to the closed model set.
func Known(id ModelID) bool {
	for _, m := range All() {
		if m == id {
			return true
		}
	}
	return false
}

// SupportsThinking reports whether the model family accepts a thinking
// budget option.
func SupportsThinking(id ModelID) bool {
	return thinkingModels[id]
}

// IsGemini reports whether the model id is routed to the Gemini provider.
// Anything else is treated as a local Ollama model.
func IsGemini(id ModelID) bool {
	return strings.HasPrefix(string(id), "gemini-") || Known(id)
}
