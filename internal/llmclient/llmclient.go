// Package llmclient wraps the completion-model providers behind a single
// Model interface and a primary+fallback Dispatcher, so the orchestrator
// (C10) never talks to a specific SDK directly.
package llmclient

import (
	"context"
	"encoding/json"

	"github.com/conversa/ragcore/internal/llm"
)

// Role mirrors llm.Message.Role with the values the orchestrator cares about.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-issued invocation of one of the orchestrator's tools.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Message is one turn in a completion request or response.
type Message struct {
	Role       Role
	Content    string
	ToolCallID string // set on Role==tool, names the call this message answers
	ToolCalls  []ToolCall
}

// ToolDef describes a callable tool to the completion model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single completion call: the full message history plus the
// tools the model may invoke.
type Request struct {
	Messages []Message
	Tools    []ToolDef
}

// Response is a completion model's answer, tagged with the model name that
// produced it so the orchestrator can report it to the caller.
type Response struct {
	Message Message
	Model   string
}

// Model is a single completion backend.
type Model interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// providerModel adapts an llm.Provider (the teacher's streaming-capable SDK
// wrapper) down to the orchestrator's simpler, non-streaming Model contract.
type providerModel struct {
	name     string
	provider llm.Provider
	model    string
}

// NewProviderModel wraps provider, always requesting model and reporting it
// in Response.Model; name is what Name returns.
func NewProviderModel(name string, provider llm.Provider, model string) Model {
	return &providerModel{name: name, provider: provider, model: model}
}

func (m *providerModel) Name() string { return m.name }

func (m *providerModel) Complete(ctx context.Context, req Request) (Response, error) {
	out, err := m.provider.Chat(ctx, toLLMMessages(req.Messages), toLLMTools(req.Tools), m.model)
	if err != nil {
		return Response{}, err
	}
	return Response{Message: fromLLMMessage(out), Model: m.model}, nil
}

func toLLMMessages(msgs []Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		lm := llm.Message{Role: string(m.Role), Content: m.Content, ToolID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			lm.ToolCalls = append(lm.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Args})
		}
		out = append(out, lm)
	}
	return out
}

func toLLMTools(tools []ToolDef) []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return out
}

func fromLLMMessage(m llm.Message) Message {
	out := Message{Role: Role(m.Role), Content: m.Content, ToolCallID: m.ToolID}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Args})
	}
	return out
}
