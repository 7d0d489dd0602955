// File: internal/cache/builder.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"rvat/internal/alpaca"
)

// Builder populates the on-disk cache with extended-session 1-minute bars
// for every tradable big-board symbol over the reference window. Files that
// already exist are left alone, so interrupted runs resume cheaply.
type Builder struct {
	Client   *alpaca.Client
	Root     string
	Days     []alpaca.CalendarDay
	Location *time.Location
	Parallel int
}

func (b *Builder) Run(ctx context.Context) error {
	if len(b.Days) == 0 {
		return fmt.Errorf("build cache: no reference days")
	}
	assets, err := b.Client.EquityAssets(ctx)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}
	if err := os.MkdirAll(b.Root, 0o755); err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	parallel := b.Parallel
	if parallel <= 0 {
		parallel = 5
	}
	sem := make(chan struct{}, parallel)
	done := make(chan struct{})
	var inFlight int

	for _, a := range assets {
		if ctx.Err() != nil {
			break
		}
		sym := a.Symbol
		sem <- struct{}{}
		inFlight++
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			if err := b.buildSymbol(ctx, sym); err != nil && ctx.Err() == nil {
				log.Printf("[cache] %s: %v", sym, err)
			}
		}()
	}
	for i := 0; i < inFlight; i++ {
		<-done
	}
	return ctx.Err()
}

func (b *Builder) buildSymbol(ctx context.Context, sym string) error {
	dir := filepath.Join(b.Root, sym)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, day := range b.Days {
		path := filepath.Join(dir, day.Date+".json")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		start, end, err := day.SessionWindow(b.Location)
		if err != nil {
			return err
		}
		bars, err := b.Client.Bars(ctx, sym, "1Min", start, end, alpaca.MaxBarLimit)
		if err != nil {
			return err
		}
		data, err := json.Marshal(bars)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		log.Printf("[cache] wrote %s", path)
	}
	return nil
}
