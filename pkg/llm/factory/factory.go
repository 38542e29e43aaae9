package factory

import (
	"fmt"

	"ai-saleschat-be/pkg/llm"
	"ai-saleschat-be/pkg/llm/gemini"
	"ai-saleschat-be/pkg/llm/ollama"
)

// NewLLMProvider builds the configured provider. Unknown provider names
// fail fast at startup rather than at first request.
func NewLLMProvider(provider, model, ollamaBaseURL, geminiAPIKey string) (llm.LLMProvider, error) {
	switch provider {
	case "ollama":
		return ollama.NewOllamaProvider(ollamaBaseURL, model), nil
	case "gemini":
		if geminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider requires GOOGLE_GEMINI_API_KEY")
		}
		return gemini.NewGeminiProvider(geminiAPIKey, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
