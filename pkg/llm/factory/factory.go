package factory

import (
	"fmt"

	"support-chatbot-be/internal/config"
	"support-chatbot-be/pkg/llm"
	"support-chatbot-be/pkg/llm/ollama"
	"support-chatbot-be/pkg/llm/openai"
)

func NewReasoningEngine(cfg config.AIConfig) (llm.ReasoningEngine, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return openai.NewProvider(cfg.OpenAIAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.Temperature), nil
	case "ollama":
		baseURL := cfg.LLMBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.LLMModel, cfg.Temperature, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}
