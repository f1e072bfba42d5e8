package localstate

import (
	"testing"
)

func TestInMemoryStore_RoundTrip(t *testing.T) {
	s := NewInMemoryStore()

	_, ok, err := s.Get("cart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("missing key should not be found")
	}

	if err := s.Set("cart", `[{"productId":1}]`); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, ok, err := s.Get("cart")
	if err != nil || !ok {
		t.Fatalf("get after set: ok=%v err=%v", ok, err)
	}
	if v != `[{"productId":1}]` {
		t.Fatalf("unexpected value: %q", v)
	}

	if err := s.Delete("cart"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, _ = s.Get("cart")
	if ok {
		t.Fatalf("deleted key should not be found")
	}
}

func TestPebbleStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.Set("token", "abc123"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, ok, err := s.Get("token")
	if err != nil || !ok || v != "abc123" {
		t.Fatalf("get after set: v=%q ok=%v err=%v", v, ok, err)
	}

	if err := s.Delete("token"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, _ = s.Get("token")
	if ok {
		t.Fatalf("deleted key should not be found")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPebbleStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set("cart", "[]"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	v, ok, err := reopened.Get("cart")
	if err != nil || !ok || v != "[]" {
		t.Fatalf("state lost across reopen: v=%q ok=%v err=%v", v, ok, err)
	}
}
