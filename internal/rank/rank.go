// File: internal/rank/rank.go
package rank

import (
	"sort"
	"sync"
	"time"
)

// Result is one symbol's relative-volume analysis.
type Result struct {
	Symbol        string
	AvgVolume     float64 // baseline: mean cutoff volume over the reference days
	SessionVolume int64
	Score         float64 // SessionVolume / AvgVolume
	ChangePct     float64
	CreatedAt     time.Time
}

// Board is the bounded, score-sorted leaderboard shared between the scan
// workers and the render loop. Results, the status title, and the operator
// selection all live behind one mutex; the critical sections never touch the
// network or the filesystem.
type Board struct {
	mu       sync.Mutex
	capacity int
	results  []Result
	title    string
	selected int // index into results, -1 when nothing is selected
}

const DefaultCapacity = 20

func NewBoard(capacity int) *Board {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Board{capacity: capacity, selected: -1}
}

// Upsert inserts or replaces the entry for r.Symbol, keeping the board
// sorted by score descending, at most one entry per symbol, and no longer
// than its capacity. A replaced entry keeps its original CreatedAt.
func (b *Board) Upsert(r Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.results {
		if b.results[i].Symbol == r.Symbol {
			r.CreatedAt = b.results[i].CreatedAt
			b.results[i] = r
			b.resort()
			return
		}
	}

	pos := len(b.results)
	for i := range b.results {
		if b.results[i].Score < r.Score {
			pos = i
			break
		}
	}
	b.results = append(b.results, Result{})
	copy(b.results[pos+1:], b.results[pos:])
	b.results[pos] = r
	if len(b.results) > b.capacity {
		b.results = b.results[:b.capacity]
	}
	b.resort()
	if b.selected >= len(b.results) {
		b.selected = len(b.results) - 1
	}
}

// resort restores score-descending order. Callers hold the lock.
func (b *Board) resort() {
	sort.SliceStable(b.results, func(i, j int) bool {
		return b.results[i].Score > b.results[j].Score
	})
}

func (b *Board) SetTitle(title string) {
	b.mu.Lock()
	b.title = title
	b.mu.Unlock()
}

// Snapshot returns a copy of the ranked results plus the current title and
// selection, safe to render without holding the lock.
func (b *Board) Snapshot() (results []Result, title string, selected int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	results = make([]Result, len(b.results))
	copy(results, b.results)
	return results, b.title, b.selected
}

// SelectNext moves the selection down one row, wrapping to the top.
func (b *Board) SelectNext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.results) == 0 {
		b.selected = -1
		return
	}
	if b.selected < 0 || b.selected >= len(b.results)-1 {
		b.selected = 0
		return
	}
	b.selected++
}

// SelectPrev moves the selection up one row, wrapping to the bottom.
func (b *Board) SelectPrev() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.results) == 0 {
		b.selected = -1
		return
	}
	if b.selected < 0 {
		b.selected = 0
		return
	}
	if b.selected == 0 {
		b.selected = len(b.results) - 1
		return
	}
	b.selected--
}

func (b *Board) ClearSelection() {
	b.mu.Lock()
	b.selected = -1
	b.mu.Unlock()
}

func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.results)
}
