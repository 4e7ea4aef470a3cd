package moderation_test

import (
	"testing"

	"skillscope/ingest-service/internal/moderation"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	for _, s := range []string{"pending", "approved", "rejected"} {
		got, err := moderation.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"", "PENDING", "archived"} {
		if _, err := moderation.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

// ── Initial ────────────────────────────────────────────────────────────────

func TestInitialIsPending(t *testing.T) {
	if moderation.Initial != moderation.StatusPending {
		t.Errorf("Initial = %q, want pending", moderation.Initial)
	}
}
