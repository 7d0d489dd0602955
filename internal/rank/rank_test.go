package rank

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

func res(sym string, score float64) Result {
	return Result{Symbol: sym, Score: score, CreatedAt: time.Now()}
}

func TestUpsert_SortedDescending(t *testing.T) {
	b := NewBoard(10)
	for _, s := range []float64{3.0, 1.0, 5.0, 2.0, 4.0} {
		b.Upsert(res(fmt.Sprintf("S%.0f", s), s))
	}
	results, _, _ := b.Snapshot()
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if !sort.SliceIsSorted(results, func(i, j int) bool { return results[i].Score > results[j].Score }) {
		t.Fatalf("results not sorted by score descending: %+v", results)
	}
}

func TestUpsert_CapacityEviction(t *testing.T) {
	b := NewBoard(2)
	b.Upsert(res("A", 1.0))
	b.Upsert(res("B", 5.0))
	b.Upsert(res("C", 3.0))
	results, _, _ := b.Snapshot()
	if len(results) != 2 {
		t.Fatalf("expected capacity 2, got %d", len(results))
	}
	if results[0].Symbol != "B" || results[0].Score != 5.0 {
		t.Errorf("top entry: got %s %.1f, want B 5.0", results[0].Symbol, results[0].Score)
	}
	if results[1].Symbol != "C" || results[1].Score != 3.0 {
		t.Errorf("second entry: got %s %.1f, want C 3.0", results[1].Symbol, results[1].Score)
	}
}

func TestUpsert_PreservesCreatedAt(t *testing.T) {
	b := NewBoard(10)
	t0 := time.Date(2024, 3, 1, 9, 45, 0, 0, time.UTC)
	t1 := t0.Add(5 * time.Minute)
	b.Upsert(Result{Symbol: "AAA", Score: 2.0, SessionVolume: 1000, CreatedAt: t0})
	b.Upsert(Result{Symbol: "AAA", Score: 5.0, SessionVolume: 9000, CreatedAt: t1})
	results, _, _ := b.Snapshot()
	if len(results) != 1 {
		t.Fatalf("expected one entry per symbol, got %d", len(results))
	}
	got := results[0]
	if got.Score != 5.0 || got.SessionVolume != 9000 {
		t.Errorf("entry not updated: %+v", got)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("created_at changed: got %s, want %s", got.CreatedAt, t0)
	}
}

func TestUpsert_Concurrent(t *testing.T) {
	const capacity = 20
	b := NewBoard(capacity)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Upsert(res(fmt.Sprintf("S%02d", i), float64(i)+float64(w)/10))
			}
		}(w)
	}
	wg.Wait()
	results, _, _ := b.Snapshot()
	if len(results) > capacity {
		t.Fatalf("capacity exceeded: %d > %d", len(results), capacity)
	}
	seen := make(map[string]struct{})
	for _, r := range results {
		if _, dup := seen[r.Symbol]; dup {
			t.Fatalf("duplicate symbol %s", r.Symbol)
		}
		seen[r.Symbol] = struct{}{}
	}
	if !sort.SliceIsSorted(results, func(i, j int) bool { return results[i].Score > results[j].Score }) {
		t.Fatal("results not sorted after concurrent upserts")
	}
}

func TestSelection(t *testing.T) {
	b := NewBoard(10)
	b.Upsert(res("A", 3.0))
	b.Upsert(res("B", 2.0))
	b.Upsert(res("C", 1.0))

	if _, _, sel := b.Snapshot(); sel != -1 {
		t.Fatalf("expected no selection, got %d", sel)
	}
	b.SelectNext()
	if _, _, sel := b.Snapshot(); sel != 0 {
		t.Fatalf("first SelectNext: got %d, want 0", sel)
	}
	b.SelectNext()
	b.SelectNext()
	if _, _, sel := b.Snapshot(); sel != 2 {
		t.Fatalf("got %d, want 2", sel)
	}
	b.SelectNext() // wraps
	if _, _, sel := b.Snapshot(); sel != 0 {
		t.Fatalf("wrap: got %d, want 0", sel)
	}
	b.SelectPrev() // wraps back
	if _, _, sel := b.Snapshot(); sel != 2 {
		t.Fatalf("prev wrap: got %d, want 2", sel)
	}
	b.ClearSelection()
	if _, _, sel := b.Snapshot(); sel != -1 {
		t.Fatalf("clear: got %d, want -1", sel)
	}
}

func TestSetTitle(t *testing.T) {
	b := NewBoard(5)
	b.SetTitle("scanning 2024-03-01 — 42% (pass 1)")
	_, title, _ := b.Snapshot()
	if title != "scanning 2024-03-01 — 42% (pass 1)" {
		t.Errorf("unexpected title %q", title)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	b := NewBoard(5)
	b.Upsert(res("A", 1.0))
	results, _, _ := b.Snapshot()
	results[0].Score = 99
	again, _, _ := b.Snapshot()
	if again[0].Score != 1.0 {
		t.Fatal("snapshot aliases internal state")
	}
}
