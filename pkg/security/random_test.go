package security

import (
	"strings"
	"testing"
)

func TestRandomCode(t *testing.T) {
	code, err := RandomCode(8)
	if err != nil {
		t.Fatalf("RandomCode: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("expected 8 characters, got %q", code)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeCharset, r) {
			t.Fatalf("unexpected character %q in %q", r, code)
		}
	}
	if _, err := RandomCode(0); err == nil {
		t.Fatalf("expected error for zero length")
	}
}
