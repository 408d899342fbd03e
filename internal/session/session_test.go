package session

import (
	"context"
	"testing"

	"github.com/conversa/ragcore/internal/apperr"
)

func TestGetOrCreateGeneratesIDWhenMissing(t *testing.T) {
	m := NewManager(NewMemoryStore(), 5)
	s, err := m.GetOrCreate(context.Background(), "", "T1", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if s.SessionID == "" {
		t.Fatalf("expected a generated session id")
	}
}

func TestGetOrCreateReturnsExistingSession(t *testing.T) {
	m := NewManager(NewMemoryStore(), 5)
	ctx := context.Background()
	first, err := m.GetOrCreate(ctx, "", "T1", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := m.GetOrCreate(ctx, first.SessionID, "T1", "")
	if err != nil {
		t.Fatalf("GetOrCreate (reload): %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("expected the same session id back")
	}
}

func TestGetOrCreateCrossTenantIsNotFoundNotDenied(t *testing.T) {
	m := NewManager(NewMemoryStore(), 5)
	ctx := context.Background()
	first, err := m.GetOrCreate(ctx, "", "T1", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	m.ClearCache()
	_, err = m.GetOrCreate(ctx, first.SessionID, "T2", "")
	if apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("KindOf = %v, want NotFound (must not leak existence across tenants)", apperr.KindOf(err))
	}
}

func TestAppendTurnAccumulatesAndPersists(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, 5)
	ctx := context.Background()
	s, _ := m.GetOrCreate(ctx, "", "T1", "")

	if _, err := m.AppendTurn(ctx, s.SessionID, "user", "hello", nil); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	updated, err := m.AppendTurn(ctx, s.SessionID, "assistant", "hi there", nil)
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if len(updated.Turns) != 2 {
		t.Fatalf("want 2 turns, got %d", len(updated.Turns))
	}

	persisted, found, err := store.Get(ctx, s.SessionID)
	if err != nil || !found {
		t.Fatalf("expected persisted session, found=%v err=%v", found, err)
	}
	if len(persisted.Turns) != 2 {
		t.Fatalf("persisted turns = %d, want 2", len(persisted.Turns))
	}
}

func TestContextWindowReturnsLastTwoNTurns(t *testing.T) {
	m := NewManager(NewMemoryStore(), 5)
	ctx := context.Background()
	s, _ := m.GetOrCreate(ctx, "", "T1", "")
	for i := 0; i < 10; i++ {
		s, _ = m.AppendTurn(ctx, s.SessionID, "user", "msg", nil)
	}
	window := m.ContextWindow(s, 2)
	if len(window) != 4 {
		t.Fatalf("want 4 turns (2n), got %d", len(window))
	}
}

func TestClearCacheForcesReloadFromStore(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, 5)
	ctx := context.Background()
	s, _ := m.GetOrCreate(ctx, "", "T1", "")
	m.ClearCache()

	reloaded, err := m.GetOrCreate(ctx, s.SessionID, "T1", "")
	if err != nil {
		t.Fatalf("GetOrCreate after ClearCache: %v", err)
	}
	if reloaded.SessionID != s.SessionID {
		t.Fatalf("expected the durable copy to be found after cache clear")
	}
}
