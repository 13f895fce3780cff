package utils_test

import (
	"strings"
	"testing"

	"couchsync/utils"
)

func TestGeneratePartyCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := utils.GeneratePartyCode(6)
		if err != nil {
			t.Fatalf("generate returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		if code != strings.ToUpper(code) {
			t.Fatalf("expected uppercase code, got %q", code)
		}
		for _, c := range code {
			if !strings.ContainsRune("ABCDEFGHJKMNPQRSTUVWXYZ23456789", c) {
				t.Fatalf("unexpected character %q in code %q", c, code)
			}
		}
	}
}

func TestGeneratePartyCodeDefaultLength(t *testing.T) {
	code, err := utils.GeneratePartyCode(0)
	if err != nil {
		t.Fatalf("generate returned error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected default length 6, got %d", len(code))
	}
}
