package apperr

import (
	"errors"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	err := Wrap(NotFound, "session_get", "session not found", errors.New("row not found"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is to match NotFound sentinel")
	}
	if errors.Is(err, ErrDenied) {
		t.Fatalf("expected errors.Is not to match Denied sentinel")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(New(Denied, "op", "nope")) != Denied {
		t.Fatalf("KindOf mismatch")
	}
	if KindOf(errors.New("plain")) != Internal {
		t.Fatalf("KindOf of a plain error should default to Internal")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(BackendFailed, "op", "msg", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap to expose cause")
	}
}
