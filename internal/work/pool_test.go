package work

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestMapReturnsAllResults(t *testing.T) {
	p := NewCPU(4)

	in := make([]int, 100)
	for i := range in {
		in[i] = i
	}

	out := Map(p, in, func(n int) int { return n * 2 })

	if len(out) != 100 {
		t.Fatalf("expected 100 results, got %d", len(out))
	}
	for i, v := range out {
		if v != i*2 {
			t.Errorf("result %d = %d, want %d", i, v, i*2)
		}
	}
}

func TestMapPreservesInputOrder(t *testing.T) {
	p := NewCPU(4)

	// The first item finishes last; its result must still land first.
	in := []int{0, 1, 2, 3}
	out := Map(p, in, func(n int) int {
		if n == 0 {
			time.Sleep(50 * time.Millisecond)
		}
		return n
	})

	for i, v := range out {
		if v != i {
			t.Fatalf("output order %v does not match input order %v", out, in)
		}
	}
}

func TestFilterMapPreservesRelativeOrder(t *testing.T) {
	p := NewCPU(4)

	out := FilterMap(p, []int{5, 2, 9, 4, 7}, func(n int) *int {
		if n%2 == 0 {
			return nil
		}
		if n == 5 {
			time.Sleep(50 * time.Millisecond)
		}
		return &n
	})

	want := []int{5, 9, 7}
	if len(out) != len(want) {
		t.Fatalf("expected %d kept results, got %d", len(want), len(out))
	}
	for i, r := range out {
		if *r != want[i] {
			t.Fatalf("kept order %v, want %v", out, want)
		}
	}
}

func TestMapConcurrencyBound(t *testing.T) {
	p := NewPool("test", 3)

	var active, peak int64
	in := make([]int, 50)
	Map(p, in, func(int) int {
		n := atomic.AddInt64(&active, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
				break
			}
		}
		atomic.AddInt64(&active, -1)
		return 0
	})

	if p := atomic.LoadInt64(&peak); p > 3 {
		t.Errorf("peak concurrency %d exceeds pool size 3", p)
	}
}

func TestMapRecoversPanics(t *testing.T) {
	p := NewCPU(2)

	out := Map(p, []int{1, 2, 3, 4}, func(n int) int {
		if n == 3 {
			panic("boom")
		}
		return n
	})

	// The panicked task leaves the zero value in its slot.
	if len(out) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(out))
	}
	if out[2] != 0 {
		t.Errorf("panicked slot = %d, want zero value", out[2])
	}

	_, panics := p.Stats()
	if panics != 1 {
		t.Errorf("expected 1 recorded panic, got %d", panics)
	}
}

func TestFilterMapDropsPanickedSlot(t *testing.T) {
	p := NewCPU(2)

	out := FilterMap(p, []int{1, 2, 3}, func(n int) *int {
		if n == 2 {
			panic("boom")
		}
		return &n
	})

	if len(out) != 2 {
		t.Fatalf("expected 2 results after one panic, got %d", len(out))
	}
	if *out[0] != 1 || *out[1] != 3 {
		t.Errorf("survivors = [%d %d], want [1 3]", *out[0], *out[1])
	}
}

func TestFilterMapDropsNil(t *testing.T) {
	p := NewCPU(2)

	out := FilterMap(p, []int{1, 2, 3, 4, 5}, func(n int) *int {
		if n%2 == 0 {
			return nil
		}
		return &n
	})

	if len(out) != 3 {
		t.Fatalf("expected 3 kept results, got %d", len(out))
	}
}

func TestMapEmptyInput(t *testing.T) {
	p := NewIO(0)
	out := Map(p, nil, func(n int) int { return n })
	if len(out) != 0 {
		t.Errorf("expected no results for empty input, got %d", len(out))
	}
}
