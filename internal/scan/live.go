// File: internal/scan/live.go
package scan

import (
	"context"
	"time"

	"rvat/internal/alpaca"
)

// RESTSource fetches the analysis day's session bars over REST.
type RESTSource struct {
	Client   *alpaca.Client
	Location *time.Location
}

func (s *RESTSource) SessionBars(ctx context.Context, symbol string, day alpaca.CalendarDay) ([]alpaca.Bar, error) {
	start, end, err := day.SessionWindow(s.Location)
	if err != nil {
		return nil, err
	}
	return s.Client.Bars(ctx, symbol, "1Min", start, end, alpaca.MaxBarLimit)
}

// StreamSource serves session bars from the live websocket store, falling
// back to another source for symbols the stream has not delivered yet
// (early in the session, or after a reconnect).
type StreamSource struct {
	Store    *alpaca.BarStore
	Fallback LiveSource
	Location *time.Location
}

func (s *StreamSource) SessionBars(ctx context.Context, symbol string, day alpaca.CalendarDay) ([]alpaca.Bar, error) {
	start, end, err := day.SessionWindow(s.Location)
	if err != nil {
		return nil, err
	}
	if bars := s.Store.Bars(symbol, start, end); len(bars) > 0 {
		return bars, nil
	}
	if s.Fallback == nil {
		return nil, nil
	}
	return s.Fallback.SessionBars(ctx, symbol, day)
}
