package ring

import (
	"slices"
	"testing"
)

func TestPushEvictsOldestFirst(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 3; i++ {
		if _, evicted := b.Push(i); evicted {
			t.Fatalf("unexpected eviction at %d", i)
		}
	}

	old, evicted := b.Push(4)
	if !evicted || old != 1 {
		t.Fatalf("expected eviction of 1, got %d (%v)", old, evicted)
	}
	if got := b.Snapshot(); !slices.Equal(got, []int{2, 3, 4}) {
		t.Fatalf("snapshot=%v", got)
	}
}

func TestLastClampsAndKeepsOrder(t *testing.T) {
	b := New[string](5)
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		b.Push(s)
	}

	cases := []struct {
		n    int
		want []string
	}{
		{0, []string{}},
		{2, []string{"f", "g"}},
		{5, []string{"c", "d", "e", "f", "g"}},
		{50, []string{"c", "d", "e", "f", "g"}},
	}
	for _, tc := range cases {
		if got := b.Last(tc.n); !slices.Equal(got, tc.want) {
			t.Fatalf("Last(%d)=%v, want %v", tc.n, got, tc.want)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	snap := b.Snapshot()
	snap[0] = 99

	if v, _ := b.Newest(); v != 1 {
		t.Fatalf("buffer mutated through snapshot: %d", v)
	}
}

func TestReset(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	b.Push(2)
	b.Reset()

	if b.Len() != 0 {
		t.Fatalf("len=%d after reset", b.Len())
	}
	if _, ok := b.Newest(); ok {
		t.Fatalf("Newest on empty buffer must report !ok")
	}
	b.Push(7)
	if got := b.Snapshot(); !slices.Equal(got, []int{7}) {
		t.Fatalf("snapshot=%v", got)
	}
}
