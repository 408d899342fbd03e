package providers

import (
	"net/http"

	"github.com/conversa/ragcore/internal/config"
	"github.com/conversa/ragcore/internal/llm"
	"github.com/conversa/ragcore/internal/llm/anthropic"
	openaillm "github.com/conversa/ragcore/internal/llm/openai"
)

// BuildPrimary constructs the orchestrator's primary completion provider,
// Anthropic per PRIMARY_COMPLETION_MODEL.
func BuildPrimary(cfg config.Config, httpClient *http.Client) llm.Provider {
	return anthropic.New(cfg.LLM.Anthropic, httpClient)
}

// BuildFallback constructs the orchestrator's single fallback completion
// provider, OpenAI per FALLBACK_COMPLETION_MODEL.
func BuildFallback(cfg config.Config, httpClient *http.Client) llm.Provider {
	return openaillm.New(cfg.LLM.OpenAI, httpClient)
}
