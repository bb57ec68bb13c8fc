package internal

import "testing"

func TestNewCodeIsUniqueHex(t *testing.T) {
	a, err := NewCode()
	if err != nil {
		t.Fatalf("new code: %v", err)
	}
	b, _ := NewCode()
	if len(a) != CodeBytes*2 {
		t.Fatalf("expected %d hex chars, got %d", CodeBytes*2, len(a))
	}
	if a == b {
		t.Fatal("expected distinct codes")
	}
}

func TestHashCodeIsStable(t *testing.T) {
	h1, err := HashCode("abc")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, _ := HashCode("abc")
	if h1 != h2 || h1 == "abc" {
		t.Fatalf("unexpected hash %q / %q", h1, h2)
	}
	if _, err := HashCode(""); err == nil {
		t.Fatal("expected empty code to be rejected")
	}
}
