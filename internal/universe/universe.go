// File: internal/universe/universe.go
package universe

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Queue hands out symbols to workers round-robin, forever. The cursor and
// pass counter advance together under one lock so no two callers ever claim
// the same slot and a wraparound bumps the pass exactly once.
type Queue struct {
	mu      sync.Mutex
	symbols []string
	cursor  int
	pass    uint64
}

// NewQueue builds a queue over the given symbols, sorted and deduped. An
// empty universe is a configuration defect, not a data condition.
func NewQueue(symbols []string) (*Queue, error) {
	seen := make(map[string]struct{}, len(symbols))
	clean := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		clean = append(clean, s)
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("empty symbol universe")
	}
	sort.Strings(clean)
	return &Queue{symbols: clean}, nil
}

// Next claims the next symbol, wrapping to the start after the last one.
func (q *Queue) Next() (pos int, symbol string) {
	q.mu.Lock()
	pos = q.cursor
	symbol = q.symbols[pos]
	q.cursor++
	if q.cursor == len(q.symbols) {
		q.cursor = 0
		q.pass++
	}
	q.mu.Unlock()
	return pos, symbol
}

// Pass reports how many full cycles through the universe have completed.
func (q *Queue) Pass() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pass
}

func (q *Queue) Len() int { return len(q.symbols) }

// Exclusions is the set of symbols workers skip. Loaded once at startup and
// read-only afterwards.
type Exclusions struct {
	set map[string]struct{}
}

type exclusionEntry struct {
	Ticker string `json:"ticker"`
}

// LoadExclusions reads a JSON array of {"ticker": "..."} records.
func LoadExclusions(path string) (*Exclusions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exclusions: %w", err)
	}
	var entries []exclusionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse exclusions: %w", err)
	}
	e := &Exclusions{set: make(map[string]struct{}, len(entries))}
	for _, ent := range entries {
		if s := strings.ToUpper(strings.TrimSpace(ent.Ticker)); s != "" {
			e.set[s] = struct{}{}
		}
	}
	return e, nil
}

// NewExclusions builds a set directly, mainly for tests.
func NewExclusions(symbols ...string) *Exclusions {
	e := &Exclusions{set: make(map[string]struct{}, len(symbols))}
	for _, s := range symbols {
		e.set[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return e
}

func (e *Exclusions) Excluded(symbol string) bool {
	_, ok := e.set[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

func (e *Exclusions) Len() int { return len(e.set) }
