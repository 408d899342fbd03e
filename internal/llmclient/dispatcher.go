package llmclient

import (
	"context"
	"net/http"

	"github.com/conversa/ragcore/internal/config"
	"github.com/conversa/ragcore/internal/llm/providers"
)

// Dispatcher drives C10's primary-then-single-fallback completion policy:
// the primary model is always tried first; on failure, Fallback is invoked
// once with the identical request, and the caller is told whether the
// fallback path was taken.
type Dispatcher struct {
	Primary  Model
	Fallback Model
}

// Build constructs the Dispatcher named in cfg.LLM: Anthropic primary,
// OpenAI fallback.
func Build(cfg config.Config, httpClient *http.Client) *Dispatcher {
	primary := NewProviderModel("anthropic", providers.BuildPrimary(cfg, httpClient), cfg.LLM.PrimaryModel)
	fallback := NewProviderModel("openai", providers.BuildFallback(cfg, httpClient), cfg.LLM.FallbackModel)
	return &Dispatcher{Primary: primary, Fallback: fallback}
}

// Complete tries Primary, then Fallback once if Primary fails. usedFallback
// reports which path produced the returned Response so callers can record a
// fallback=true attribute on the assistant turn.
func (d *Dispatcher) Complete(ctx context.Context, req Request) (resp Response, usedFallback bool, err error) {
	resp, err = d.Primary.Complete(ctx, req)
	if err == nil {
		return resp, false, nil
	}
	if d.Fallback == nil {
		return Response{}, false, err
	}
	resp, err = d.Fallback.Complete(ctx, req)
	if err != nil {
		return Response{}, true, err
	}
	return resp, true, nil
}
