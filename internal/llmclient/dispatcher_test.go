package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/conversa/ragcore/internal/llm"
)

type fakeProvider struct {
	reply llm.Message
	err   error
	calls int
}

func (f *fakeProvider) Chat(_ context.Context, _ []llm.Message, _ []llm.ToolSchema, _ string) (llm.Message, error) {
	f.calls++
	if f.err != nil {
		return llm.Message{}, f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) ChatStream(context.Context, []llm.Message, []llm.ToolSchema, string, llm.StreamHandler) error {
	return errors.New("not implemented")
}

func TestDispatcherUsesPrimaryWhenItSucceeds(t *testing.T) {
	primary := &fakeProvider{reply: llm.Message{Role: "assistant", Content: "hello"}}
	fallback := &fakeProvider{reply: llm.Message{Role: "assistant", Content: "should not be used"}}
	d := &Dispatcher{
		Primary:  NewProviderModel("anthropic", primary, "claude-sonnet-4-5"),
		Fallback: NewProviderModel("openai", fallback, "gpt-4o-mini"),
	}

	resp, usedFallback, err := d.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if usedFallback {
		t.Fatalf("expected primary to serve the request")
	}
	if resp.Message.Content != "hello" || resp.Model != "claude-sonnet-4-5" {
		t.Fatalf("resp = %+v", resp)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback should not have been called")
	}
}

func TestDispatcherFallsBackOncePrimaryFails(t *testing.T) {
	primary := &fakeProvider{err: errors.New("primary unavailable")}
	fallback := &fakeProvider{reply: llm.Message{Role: "assistant", Content: "fallback answer"}}
	d := &Dispatcher{
		Primary:  NewProviderModel("anthropic", primary, "claude-sonnet-4-5"),
		Fallback: NewProviderModel("openai", fallback, "gpt-4o-mini"),
	}

	resp, usedFallback, err := d.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !usedFallback {
		t.Fatalf("expected the fallback path to be used")
	}
	if resp.Message.Content != "fallback answer" || resp.Model != "gpt-4o-mini" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestDispatcherReturnsErrorWhenBothFail(t *testing.T) {
	primary := &fakeProvider{err: errors.New("primary down")}
	fallback := &fakeProvider{err: errors.New("fallback down")}
	d := &Dispatcher{
		Primary:  NewProviderModel("anthropic", primary, "claude-sonnet-4-5"),
		Fallback: NewProviderModel("openai", fallback, "gpt-4o-mini"),
	}

	_, usedFallback, err := d.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatalf("expected an error when both models fail")
	}
	if !usedFallback {
		t.Fatalf("expected usedFallback=true since the fallback path was attempted")
	}
}

func TestDispatcherPassesToolCallsThrough(t *testing.T) {
	primary := &fakeProvider{reply: llm.Message{
		Role: "assistant",
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "vector_search", Args: []byte(`{"query":"x"}`)},
		},
	}}
	d := &Dispatcher{Primary: NewProviderModel("anthropic", primary, "claude-sonnet-4-5")}

	resp, _, err := d.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Tools:    []ToolDef{{Name: "vector_search", Description: "search", Parameters: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].Name != "vector_search" {
		t.Fatalf("resp.Message.ToolCalls = %+v", resp.Message.ToolCalls)
	}
}
