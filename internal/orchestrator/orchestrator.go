package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/conversa/ragcore/internal/apperr"
	"github.com/conversa/ragcore/internal/checkpoint"
	"github.com/conversa/ragcore/internal/llm"
	"github.com/conversa/ragcore/internal/llmclient"
	"github.com/conversa/ragcore/internal/retrieval"
	"github.com/conversa/ragcore/internal/session"
	"github.com/conversa/ragcore/internal/tenant"
	"github.com/conversa/ragcore/internal/tools"
	"github.com/conversa/ragcore/internal/tools/ragtools"
)

const defaultWindowTurns = 5

// maxToolIterations bounds the tool-call loop per turn: the model can call
// tools, see their results, and call more tools, but never indefinitely.
const maxToolIterations = 6

const defaultSystemPrompt = `You are a retrieval assistant. Use vector_search for semantic document lookup, graph_search for entity/relationship questions, hybrid_search when both kinds of evidence could help, and checkpoint_lookup for governance/review status questions. Only answer from tool results; do not invent sources.`

// Orchestrator implements C10.
type Orchestrator struct {
	Tenants     *tenant.Registry
	Sessions    *session.Manager
	Vector      *retrieval.VectorTool
	Graph       *retrieval.GraphTool
	Hybrid      *retrieval.HybridTool
	Checkpoints *checkpoint.Lookup
	Dispatcher  *llmclient.Dispatcher

	WindowTurns  int
	SystemPrompt string
}

// Option configures an Orchestrator during construction.
type Option func(*Orchestrator)

// WithWindowTurns overrides the default 5 turn-pairs of session context
// included in each model request.
func WithWindowTurns(n int) Option { return func(o *Orchestrator) { o.WindowTurns = n } }

// WithSystemPrompt overrides the default tool-usage system prompt.
func WithSystemPrompt(p string) Option { return func(o *Orchestrator) { o.SystemPrompt = p } }

// New constructs an Orchestrator wired to its dependencies.
func New(tenants *tenant.Registry, sessions *session.Manager, vector *retrieval.VectorTool, graph *retrieval.GraphTool, hybrid *retrieval.HybridTool, checkpoints *checkpoint.Lookup, dispatcher *llmclient.Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		Tenants: tenants, Sessions: sessions,
		Vector: vector, Graph: graph, Hybrid: hybrid, Checkpoints: checkpoints,
		Dispatcher:   dispatcher,
		WindowTurns:  defaultWindowTurns,
		SystemPrompt: defaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Answer runs C10's contract: validate consent, load session context, drive
// the completion model's tool-selection loop, persist the new turns, and
// return the final answer with its tool-call summaries.
func (o *Orchestrator) Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error) {
	if req.Query == "" {
		return AnswerResponse{}, apperr.New(apperr.InvalidArgument, "answer", "query is required")
	}

	if err := o.Tenants.ValidateConsent(ctx, req.TenantID, "retrieve"); err != nil {
		if apperr.KindOf(err) == apperr.Denied {
			return AnswerResponse{Answer: apperr.MessageOf(err), SessionID: req.SessionID}, nil
		}
		return AnswerResponse{}, err
	}

	sess, err := o.Sessions.GetOrCreate(ctx, req.SessionID, req.TenantID, req.Context)
	if err != nil {
		return AnswerResponse{}, err
	}
	if _, err := o.Sessions.AppendTurn(ctx, sess.SessionID, "user", req.Query, nil); err != nil {
		return AnswerResponse{}, err
	}
	sess, err = o.Sessions.GetOrCreate(ctx, sess.SessionID, req.TenantID, req.Context)
	if err != nil {
		return AnswerResponse{}, err
	}

	registry := o.toolRegistry(req.TenantID, sess.SessionID)
	llmReq := llmclient.Request{
		Messages: o.buildMessages(sess),
		Tools:    toToolDefs(registry.Schemas()),
	}

	resp, usedFallback, toolCalls, err := o.runToolLoop(ctx, registry, llmReq)
	if err != nil {
		if _, appendErr := o.Sessions.AppendTurn(ctx, sess.SessionID, "assistant", "I was unable to complete this request.", map[string]any{"error": err.Error()}); appendErr != nil {
			log.Warn().Err(appendErr).Str("session_id", sess.SessionID).Msg("failed to record error turn")
		}
		return AnswerResponse{}, err
	}

	meta := map[string]any{"model": resp.Model, "fallback": usedFallback}
	if _, err := o.Sessions.AppendTurn(ctx, sess.SessionID, "assistant", resp.Message.Content, meta); err != nil {
		return AnswerResponse{}, err
	}

	return AnswerResponse{
		Answer:    resp.Message.Content,
		SessionID: sess.SessionID,
		ToolCalls: toolCalls,
		Model:     resp.Model,
		Fallback:  usedFallback,
	}, nil
}

// runToolLoop drives the model until it returns a response with no further
// tool calls, or maxToolIterations is reached.
func (o *Orchestrator) runToolLoop(ctx context.Context, registry tools.Registry, req llmclient.Request) (llmclient.Response, bool, []ToolCallSummary, error) {
	var summaries []ToolCallSummary
	var lastUsedFallback bool

	for i := 0; i < maxToolIterations; i++ {
		resp, usedFallback, err := o.Dispatcher.Complete(ctx, req)
		if err != nil {
			return llmclient.Response{}, usedFallback, summaries, apperr.Wrap(apperr.BackendFailed, "answer", "the completion model is unavailable", err)
		}
		lastUsedFallback = usedFallback

		if len(resp.Message.ToolCalls) == 0 {
			return resp, lastUsedFallback, summaries, nil
		}

		req.Messages = append(req.Messages, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			start := time.Now()
			result, dispatchErr := registry.Dispatch(ctx, tc.Name, tc.Args)
			summaries = append(summaries, ToolCallSummary{
				Name: tc.Name, Args: string(tc.Args),
				Success:   dispatchErr == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			})
			content := string(result)
			if dispatchErr != nil {
				content = dispatchErr.Error()
			}
			req.Messages = append(req.Messages, llmclient.Message{
				Role: llmclient.RoleTool, Content: content, ToolCallID: tc.ID,
			})
		}
	}
	return llmclient.Response{}, lastUsedFallback, summaries, apperr.New(apperr.Internal, "answer", "the model did not converge on an answer")
}

// buildMessages assembles system_prompt ‖ context_window(session, N) ‖ user_query.
func (o *Orchestrator) buildMessages(sess session.Session) []llmclient.Message {
	msgs := []llmclient.Message{{Role: llmclient.RoleSystem, Content: o.SystemPrompt}}
	// Answer appends the query to the session before calling here, so the
	// window is taken over the turns before it and the query follows.
	history := sess
	var query []session.Turn
	if n := len(sess.Turns); n > 0 {
		history.Turns = sess.Turns[:n-1]
		query = sess.Turns[n-1:]
	}
	turns := append(append([]session.Turn{}, o.Sessions.ContextWindow(history, o.WindowTurns)...), query...)
	for _, turn := range turns {
		role := llmclient.Role(turn.Role)
		msgs = append(msgs, llmclient.Message{Role: role, Content: turn.Content})
	}
	return msgs
}

func (o *Orchestrator) toolRegistry(tenantID, sessionID string) tools.Registry {
	r := tools.NewRegistry()
	if o.Vector != nil {
		r.Register(&ragtools.VectorSearchTool{Tool: o.Vector, TenantID: tenantID, SessionID: sessionID})
	}
	if o.Graph != nil {
		r.Register(&ragtools.GraphSearchTool{Tool: o.Graph, TenantID: tenantID, SessionID: sessionID})
	}
	if o.Hybrid != nil {
		r.Register(&ragtools.HybridSearchTool{Tool: o.Hybrid, TenantID: tenantID, SessionID: sessionID})
	}
	if o.Checkpoints != nil {
		r.Register(&ragtools.CheckpointLookupTool{Lookup: o.Checkpoints, TenantID: tenantID})
	}
	return r
}

func toToolDefs(schemas []llm.ToolSchema) []llmclient.ToolDef {
	out := make([]llmclient.ToolDef, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, llmclient.ToolDef{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	return out
}
