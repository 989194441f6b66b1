package hashtable

import "testing"

func TestSetGetDel(t *testing.T) {
	h := MkHash[int, string](8, HashInt)

	if !h.Set(1, "one") {
		t.Fatalf("expected first Set of key 1 to report new insertion")
	}
	if h.Set(1, "uno") {
		t.Fatalf("expected second Set of key 1 to report an existing entry")
	}
	v, ok := h.Get(1)
	if !ok || v != "one" {
		t.Fatalf("Get(1) = %q, %v; want \"one\", true", v, ok)
	}

	if _, ok := h.Get(2); ok {
		t.Fatalf("expected Get of absent key to fail")
	}

	h.Del(1)
	if _, ok := h.Get(1); ok {
		t.Fatalf("expected key 1 to be gone after Del")
	}
}

func TestIterVisitsEveryEntry(t *testing.T) {
	h := MkHash[int, int](4, HashInt)
	want := map[int]int{}
	for i := 0; i < 50; i++ {
		h.Set(i, i*i)
		want[i] = i * i
	}
	if h.Size() != len(want) {
		t.Fatalf("Size() = %d, want %d", h.Size(), len(want))
	}

	got := map[int]int{}
	h.Iter(func(k, v int) bool {
		got[k] = v
		return false
	})
	if len(got) != len(want) {
		t.Fatalf("Iter visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("entry %d = %d, want %d", k, got[k], v)
		}
	}
}

func TestIterStopsEarly(t *testing.T) {
	h := MkHash[int, int](4, HashInt)
	for i := 0; i < 10; i++ {
		h.Set(i, i)
	}
	n := 0
	h.Iter(func(k, v int) bool {
		n++
		return true
	})
	if n != 1 {
		t.Fatalf("expected Iter to stop after the first visit, visited %d", n)
	}
}
