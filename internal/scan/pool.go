// File: internal/scan/pool.go
package scan

import (
	"context"
	"fmt"
	"log"
	"sync"

	"rvat/internal/alerts"
	"rvat/internal/rank"
	"rvat/internal/universe"
)

// DefaultWorkers is the scan pool size when the config does not set one.
const DefaultWorkers = 5

// Pool runs a fixed set of workers that claim symbols from the shared queue,
// score them, and push results onto the board until the context is
// cancelled. Workers are symmetric; load balancing falls out of the shared
// cursor.
type Pool struct {
	Workers        int
	Queue          *universe.Queue
	Exclusions     *universe.Exclusions
	Aggregator     *Aggregator
	Board          *rank.Board
	AlertThreshold float64 // scores at or above this also go to the CSV log; 0 disables
}

// Run blocks until ctx is cancelled and every in-flight iteration has
// finished.
func (p *Pool) Run(ctx context.Context) {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pos, symbol := p.Queue.Next()
		p.Board.SetTitle(fmt.Sprintf("scanning %s — %d%% (pass %d)",
			p.Aggregator.Day.Date, pos*100/p.Queue.Len(), p.Queue.Pass()))

		if p.Exclusions != nil && p.Exclusions.Excluded(symbol) {
			continue
		}

		res, ok := p.Aggregator.Analyze(ctx, symbol)
		if !ok {
			continue
		}
		p.Board.Upsert(res)

		if p.AlertThreshold > 0 && res.Score >= p.AlertThreshold {
			if err := alerts.LogToCSV(alerts.Alert{
				Timestamp:     res.CreatedAt,
				Symbol:        res.Symbol,
				Score:         res.Score,
				SessionVolume: res.SessionVolume,
				Baseline:      res.AvgVolume,
				ChangePct:     res.ChangePct,
				Threshold:     p.AlertThreshold,
			}); err != nil {
				log.Printf("[scan] worker %d: alert log: %v", id, err)
			}
		}
	}
}
