package storeerr

import (
	"errors"
	"testing"
)

func TestKindOfClassifiedError(t *testing.T) {
	err := New(KindConflict, "domain already in use")
	if got := KindOf(err); got != KindConflict {
		t.Errorf("KindOf() = %v, want %v", got, KindConflict)
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Errorf("KindOf() = %v, want %v", got, KindInternal)
	}
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindInternal, "counting stores", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() = false, want true for wrapped cause")
	}
}
