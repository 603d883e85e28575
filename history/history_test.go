package history

import (
	"testing"
	"time"
)

func TestLatestDefaultWhenEmpty(t *testing.T) {
	h := New[string](3, "none")
	if got := h.Latest(); got != "none" {
		t.Fatalf("Latest() = %q, want %q", got, "none")
	}
	if h.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", h.Len())
	}
}

func TestAddAndLatest(t *testing.T) {
	h := New[int](3, -1)
	h.Add(1)
	h.Add(2)
	h.Add(3)
	if got := h.Latest(); got != 3 {
		t.Fatalf("Latest() = %d, want 3", got)
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
}

func TestOverflowEvictsOldest(t *testing.T) {
	h := New[int](2, -1)
	h.Add(1)
	h.Add(2)
	h.Add(3)

	entries := h.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(Entries()) = %d, want 2", len(entries))
	}
	if entries[0].Value != 2 || entries[1].Value != 3 {
		t.Fatalf("Entries() = %v, want [2 3]", entries)
	}
}

func TestLatestEntryReportsPresence(t *testing.T) {
	h := New[int](2, 0)
	if _, ok := h.LatestEntry(); ok {
		t.Fatal("LatestEntry() reported present on empty history")
	}
	h.Add(7)
	e, ok := h.LatestEntry()
	if !ok || e.Value != 7 {
		t.Fatalf("LatestEntry() = %+v, %v; want value 7, true", e, ok)
	}
}

func TestAddAllSortedMergesAndTruncates(t *testing.T) {
	base := time.Unix(1000, 0)
	h := New[int](3, -1)
	h.AddAt(base, 1)
	h.AddAt(base.Add(2*time.Second), 3)

	other := []Entry[int]{
		{Timestamp: base.Add(1 * time.Second), Value: 2},
		{Timestamp: base.Add(3 * time.Second), Value: 4},
	}
	h.AddAllSorted(other)

	entries := h.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries()) = %d, want 3 (capacity truncation)", len(entries))
	}
	vals := []int{entries[0].Value, entries[1].Value, entries[2].Value}
	want := []int{2, 3, 4}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("Entries() values = %v, want %v", vals, want)
		}
	}
}

func TestNewPanicsOnInvalidCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New(0, ...) did not panic")
		}
	}()
	New[int](0, 0)
}
