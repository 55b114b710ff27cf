package roomid

import (
	"strings"
	"testing"
)

func TestGenerateFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := Generate()
		parts := strings.Split(id, "-")
		if len(parts) != 3 {
			t.Fatalf("expected 3 parts, got %q", id)
		}
		if !Valid(id) {
			t.Errorf("generated ID failed validation: %q", id)
		}
		if id != Normalize(id) {
			t.Errorf("generated ID not normalized: %q", id)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Gentle-Otter-42 "); got != "gentle-otter-42" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestValid(t *testing.T) {
	if Valid("") {
		t.Error("empty ID should be invalid")
	}
	if Valid("two words") {
		t.Error("whitespace should be invalid")
	}
	if !Valid("r1") {
		t.Error("plain ID should be valid")
	}
}
