package registry

import "testing"

func TestRegisterAssignsIncreasingHandles(t *testing.T) {
	r := New[string]()

	h1 := r.Register("one")
	h2 := r.Register("two")
	h3 := r.Register("three")

	if h1 != 1 || h2 != 2 || h3 != 3 {
		t.Fatalf("handles = %d, %d, %d, want 1, 2, 3", h1, h2, h3)
	}
}

func TestLookup(t *testing.T) {
	r := New[string]()
	h := r.Register("owner")

	got, ok := r.Lookup(h)
	if !ok {
		t.Fatalf("Lookup(%d) not found", h)
	}
	if got != "owner" {
		t.Errorf("Lookup(%d) = %q, want %q", h, got, "owner")
	}

	if _, ok := r.Lookup(999); ok {
		t.Error("Lookup(999) found, want not found")
	}
}

func TestUnregister(t *testing.T) {
	r := New[string]()
	h := r.Register("owner")

	r.Unregister(h)
	if _, ok := r.Lookup(h); ok {
		t.Errorf("Lookup(%d) found after Unregister", h)
	}

	// Idempotent: unregistering again is a no-op.
	r.Unregister(h)
	r.Unregister(42)
}

func TestHandlesNotReusedAfterUnregister(t *testing.T) {
	r := New[int]()

	h1 := r.Register(10)
	r.Unregister(h1)
	h2 := r.Register(20)

	if h2 == h1 {
		t.Errorf("handle %d reused after Unregister", h1)
	}
}

func TestClear(t *testing.T) {
	r := New[int]()

	h1 := r.Register(1)
	h2 := r.Register(2)
	r.Clear()

	if r.Count() != 0 {
		t.Errorf("Count() = %d after Clear, want 0", r.Count())
	}
	if _, ok := r.Lookup(h1); ok {
		t.Error("stale handle resolves after Clear")
	}

	// Handles keep increasing across Clear so stale handles stay invalid.
	h3 := r.Register(3)
	if h3 <= h2 {
		t.Errorf("handle %d after Clear, want > %d", h3, h2)
	}
}

func TestAllOrderedByHandle(t *testing.T) {
	r := New[string]()

	r.Register("first")
	h2 := r.Register("second")
	r.Register("third")
	r.Unregister(h2)

	got := r.All()
	if len(got) != 2 || got[0] != "first" || got[1] != "third" {
		t.Errorf("All() = %v, want [first third]", got)
	}
}

func TestUniqueAmongLive(t *testing.T) {
	r := New[int]()
	seen := make(map[int]bool)

	for i := 0; i < 100; i++ {
		h := r.Register(i)
		if seen[h] {
			t.Fatalf("duplicate handle %d", h)
		}
		seen[h] = true
		if i%3 == 0 {
			r.Unregister(h)
		}
	}
}
