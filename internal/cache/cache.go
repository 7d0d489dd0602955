// File: internal/cache/cache.go
package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rvat/internal/alpaca"
)

// Store holds the historical-bar cache, loaded once at startup. Layout on
// disk is one directory per symbol containing one <date>.json file per
// trading day, each a JSON array of bars.
type Store struct {
	root string
	days map[string]map[string][]alpaca.Bar // symbol -> date -> bars
}

// Load reads the whole cache tree under root. A missing or empty root is an
// error (nothing to scan); an unreadable or malformed day file only costs
// that single date.
func Load(root string) (*Store, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read cache root %s: %w", root, err)
	}
	s := &Store{root: root, days: make(map[string]map[string][]alpaca.Bar)}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sym := strings.ToUpper(e.Name())
		files, err := os.ReadDir(filepath.Join(root, e.Name()))
		if err != nil {
			log.Printf("[cache] skip %s: %v", sym, err)
			continue
		}
		byDate := make(map[string][]alpaca.Bar, len(files))
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			date := strings.TrimSuffix(f.Name(), ".json")
			data, err := os.ReadFile(filepath.Join(root, e.Name(), f.Name()))
			if err != nil {
				log.Printf("[cache] skip %s/%s: %v", sym, f.Name(), err)
				continue
			}
			var bars []alpaca.Bar
			if err := json.Unmarshal(data, &bars); err != nil {
				log.Printf("[cache] skip %s/%s: %v", sym, f.Name(), err)
				continue
			}
			byDate[date] = bars
		}
		if len(byDate) == 0 {
			continue
		}
		s.days[sym] = byDate
	}
	if len(s.days) == 0 {
		return nil, fmt.Errorf("no symbols found in cache %s", root)
	}
	return s, nil
}

// Bars returns the cached bars for one symbol and date.
func (s *Store) Bars(symbol, date string) ([]alpaca.Bar, bool) {
	byDate, ok := s.days[strings.ToUpper(symbol)]
	if !ok {
		return nil, false
	}
	bars, ok := byDate[date]
	return bars, ok
}

// Symbols returns the cached symbol universe, sorted.
func (s *Store) Symbols() []string {
	out := make([]string, 0, len(s.days))
	for sym := range s.days {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Len() int { return len(s.days) }
