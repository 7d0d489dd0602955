// File: internal/scan/scan.go
package scan

import (
	"context"
	"log"
	"time"

	"rvat/internal/alpaca"
	"rvat/internal/rank"
)

// MinBaselineVolume is the default liquidity floor: symbols whose baseline
// average cutoff volume is below it carry too little signal to rank.
const MinBaselineVolume = 1000

// HistoryStore supplies cached historical bars for one symbol and date.
type HistoryStore interface {
	Bars(symbol, date string) ([]alpaca.Bar, bool)
}

// LiveSource supplies the analysis day's session bars for one symbol,
// most-recent-first.
type LiveSource interface {
	SessionBars(ctx context.Context, symbol string, day alpaca.CalendarDay) ([]alpaca.Bar, error)
}

// Aggregator scores one symbol: current-session volume relative to the mean
// volume traded by the same session offset over the reference days.
type Aggregator struct {
	History     HistoryStore
	Live        LiveSource
	RefDays     []alpaca.CalendarDay // reference days, most-recent-first
	Day         alpaca.CalendarDay   // the analysis day
	MinBaseline float64
	Location    *time.Location
	Now         func() time.Time // swappable clock for tests
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Aggregator) floor() float64 {
	if a.MinBaseline > 0 {
		return a.MinBaseline
	}
	return MinBaselineVolume
}

// cutoffMinutes is how many minutes of the analysis day's session have
// elapsed. Historical volume is summed up to the same offset on each
// reference day, so the comparison is elapsed-session-time against
// elapsed-session-time rather than raw wall clock.
func (a *Aggregator) cutoffMinutes() (int, error) {
	open, _, err := a.Day.SessionWindow(a.Location)
	if err != nil {
		return 0, err
	}
	elapsed := a.now().Sub(open)
	if elapsed < 0 {
		return 0, nil
	}
	return int(elapsed.Minutes()), nil
}

// sumToCutoff adds up bar volumes whose offset from sessionOpen is at most
// cutoffMin minutes. Bars before the open or with unparsable volume fields
// are dropped from the sum, nothing more.
func sumToCutoff(symbol string, bars []alpaca.Bar, sessionOpen time.Time, cutoffMin int) int64 {
	var total int64
	for _, b := range bars {
		off := int(b.Timestamp.Sub(sessionOpen).Minutes())
		if off < 0 || off > cutoffMin {
			continue
		}
		v, err := b.Volume.Int64()
		if err != nil {
			log.Printf("[scan] %s: bad volume at %s: %v", symbol, b.Timestamp.Format(time.RFC3339), err)
			continue
		}
		total += v
	}
	return total
}

// changePct is the session price change in percent over most-recent-first
// bars: (newest close - oldest close) / newest close. Bars with unparsable
// closes are passed over.
func changePct(bars []alpaca.Bar) float64 {
	var first, last float64
	var haveFirst, haveLast bool
	for i := 0; i < len(bars) && !haveFirst; i++ {
		if c, err := bars[i].Close.Float64(); err == nil {
			first, haveFirst = c, true
		}
	}
	for i := len(bars) - 1; i >= 0 && !haveLast; i-- {
		if c, err := bars[i].Close.Float64(); err == nil {
			last, haveLast = c, true
		}
	}
	if !haveFirst || !haveLast || first == 0 {
		return 0
	}
	return (first - last) / first * 100
}

// Analyze produces a ranking candidate for symbol, or ok=false when the
// symbol has nothing rankable this pass (missing history, quiet tape, thin
// baseline, or a failed live fetch).
func (a *Aggregator) Analyze(ctx context.Context, symbol string) (rank.Result, bool) {
	cutoffMin, err := a.cutoffMinutes()
	if err != nil {
		log.Printf("[scan] %s: session window: %v", symbol, err)
		return rank.Result{}, false
	}

	var sum float64
	var validDays int
	for _, day := range a.RefDays {
		bars, ok := a.History.Bars(symbol, day.Date)
		if !ok {
			continue
		}
		open, _, err := day.SessionWindow(a.Location)
		if err != nil {
			log.Printf("[scan] %s: reference day %s: %v", symbol, day.Date, err)
			continue
		}
		sum += float64(sumToCutoff(symbol, bars, open, cutoffMin))
		validDays++
	}
	if validDays == 0 {
		return rank.Result{}, false
	}
	baseline := sum / float64(validDays)
	if baseline < a.floor() {
		return rank.Result{}, false
	}

	live, err := a.Live.SessionBars(ctx, symbol, a.Day)
	if err != nil {
		log.Printf("[scan] %s: live bars: %v", symbol, err)
		return rank.Result{}, false
	}
	if len(live) == 0 {
		return rank.Result{}, false
	}
	var sessionVol int64
	for _, b := range live {
		v, err := b.Volume.Int64()
		if err != nil {
			log.Printf("[scan] %s: bad live volume at %s: %v", symbol, b.Timestamp.Format(time.RFC3339), err)
			continue
		}
		sessionVol += v
	}
	if sessionVol == 0 {
		return rank.Result{}, false
	}

	return rank.Result{
		Symbol:        symbol,
		AvgVolume:     baseline,
		SessionVolume: sessionVol,
		Score:         float64(sessionVol) / baseline,
		ChangePct:     changePct(live),
		CreatedAt:     a.now(),
	}, true
}
