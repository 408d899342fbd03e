// Package session implements the durable, tenant-scoped session store (C7):
// write-through turn history with an in-memory cache fronting the durable
// backend, and bounded context-window retrieval for the orchestrator.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/conversa/ragcore/internal/apperr"
)

// Turn is one message in a session's history.
type Turn struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Session is the durable unit of conversation state for one tenant.
type Session struct {
	SessionID string         `json:"session_id"`
	TenantID  string         `json:"tenant_id"`
	Context   string         `json:"context,omitempty"`
	Turns     []Turn         `json:"turns"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is the durable backend behind the session manager's write-through
// cache. Turns are persisted as a single structured column.
type Store interface {
	Get(ctx context.Context, sessionID string) (Session, bool, error)
	Put(ctx context.Context, s Session) error
}

// Manager is the process-facing session API (get_or_create, append_turn,
// context_window, clear_cache).
type Manager struct {
	store       Store
	windowTurns int

	mu    sync.Mutex
	cache map[string]Session
}

// NewManager constructs a Manager backed by store. windowTurns is the
// default number of (user, assistant) pairs ContextWindow returns when
// called with n<=0.
func NewManager(store Store, windowTurns int) *Manager {
	if windowTurns <= 0 {
		windowTurns = 5
	}
	return &Manager{store: store, windowTurns: windowTurns, cache: make(map[string]Session)}
}

// GetOrCreate resolves sessionID to a Session scoped to tenantID, creating
// one if sessionID is empty or unknown. A session that exists but belongs
// to a different tenant is reported as NotFound, never Denied, so the
// caller cannot probe for another tenant's session ids.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID, tenantID, sessionContext string) (Session, error) {
	if tenantID == "" {
		return Session{}, apperr.New(apperr.InvalidArgument, "get_or_create", "tenant_id is required")
	}

	if sessionID != "" {
		if s, ok := m.cacheGet(sessionID); ok {
			if s.TenantID != tenantID {
				return Session{}, apperr.New(apperr.NotFound, "get_or_create", "session not found")
			}
			return s, nil
		}
		s, found, err := m.store.Get(ctx, sessionID)
		if err != nil {
			return Session{}, apperr.Wrap(apperr.BackendFailed, "get_or_create", "session store is unavailable", err)
		}
		if found {
			if s.TenantID != tenantID {
				return Session{}, apperr.New(apperr.NotFound, "get_or_create", "session not found")
			}
			m.cachePut(s)
			return s, nil
		}
	} else {
		sessionID = uuid.NewString()
	}

	now := time.Now().UTC()
	s := Session{SessionID: sessionID, TenantID: tenantID, Context: sessionContext, Turns: []Turn{}, CreatedAt: now, UpdatedAt: now}
	if err := m.store.Put(ctx, s); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("session persistence failed, continuing in memory")
	}
	m.cachePut(s)
	return s, nil
}

// AppendTurn appends a turn to sessionID. The in-memory copy is updated
// first; persistence failures are logged, not raised, so the conversation
// continues uninterrupted. A later successful append re-syncs the durable
// copy with the full turn history.
func (m *Manager) AppendTurn(ctx context.Context, sessionID, role, content string, metadata map[string]any) (Session, error) {
	m.mu.Lock()
	s, ok := m.cache[sessionID]
	if !ok {
		m.mu.Unlock()
		return Session{}, apperr.New(apperr.NotFound, "append_turn", "session not found")
	}
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, Metadata: metadata, Timestamp: time.Now().UTC()})
	s.UpdatedAt = time.Now().UTC()
	m.cache[sessionID] = s
	m.mu.Unlock()

	if err := m.store.Put(ctx, s); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("session persistence failed, continuing in memory")
	}
	return s, nil
}

// ContextWindow returns the last 2*maxTurns messages of s, preserving
// order. maxTurns<=0 falls back to the manager's configured default.
func (m *Manager) ContextWindow(s Session, maxTurns int) []Turn {
	if maxTurns <= 0 {
		maxTurns = m.windowTurns
	}
	n := 2 * maxTurns
	if n >= len(s.Turns) {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// ClearCache evicts every cached session. It does not affect the durable
// store; the next GetOrCreate call re-reads through.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]Session)
}

func (m *Manager) cacheGet(sessionID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.cache[sessionID]
	return s, ok
}

func (m *Manager) cachePut(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[s.SessionID] = s
}
