// File: main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rvat/internal/alpaca"
	"rvat/internal/cache"
	"rvat/internal/config"
	"rvat/internal/display"
	"rvat/internal/rank"
	"rvat/internal/scan"
	"rvat/internal/universe"
)

// tradingDays splits the most-recent-first calendar into the analysis day
// (the most recent trading day, today when the market is open) and the
// reference window behind it.
func tradingDays(calendar []alpaca.CalendarDay, periods int) (analysis alpaca.CalendarDay, refs []alpaca.CalendarDay, err error) {
	if len(calendar) < 2 {
		return alpaca.CalendarDay{}, nil, fmt.Errorf("calendar too short: %d days", len(calendar))
	}
	analysis = calendar[0]
	rest := calendar[1:]
	if periods > len(rest) {
		periods = len(rest)
	}
	return analysis, rest[:periods], nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	buildCache := flag.Bool("build-cache", false, "populate the historical bar cache and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		log.Fatalf("load credentials: %v", err)
	}
	loc := cfg.Location()
	client := alpaca.NewClient(creds.KeyID, creds.SecretKey)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	now := time.Now().In(loc)
	calCtx, calCancel := context.WithTimeout(ctx, 30*time.Second)
	calendar, err := client.Calendar(calCtx, now.AddDate(0, 0, -cfg.LookbackDays), now)
	calCancel()
	if err != nil {
		log.Fatalf("load calendar: %v", err)
	}
	analysisDay, refDays, err := tradingDays(calendar, cfg.TradingPeriods)
	if err != nil {
		log.Fatalf("trading days: %v", err)
	}

	if *buildCache {
		b := &cache.Builder{
			Client:   client,
			Root:     cfg.CacheDir,
			Days:     refDays,
			Location: loc,
			Parallel: cfg.Workers,
		}
		if err := b.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("build cache: %v", err)
		}
		return
	}

	store, err := cache.Load(cfg.CacheDir)
	if err != nil {
		log.Fatalf("load cache: %v", err)
	}
	excl, err := universe.LoadExclusions(cfg.ExclusionsFile)
	if err != nil {
		log.Fatalf("load exclusions: %v", err)
	}
	queue, err := universe.NewQueue(store.Symbols())
	if err != nil {
		log.Fatalf("build queue: %v", err)
	}
	log.Printf("[main] %d symbols, %d excluded, analysis day %s, %d reference days",
		queue.Len(), excl.Len(), analysisDay.Date, len(refDays))

	var live scan.LiveSource = &scan.RESTSource{Client: client, Location: loc}
	if cfg.Stream.Enabled {
		barStore := alpaca.NewBarStore()
		stream := alpaca.NewStream(creds.KeyID, creds.SecretKey, barStore, cfg.Stream.URL)
		stream.SetSymbols(store.Symbols())
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[stream] stopped: %v", err)
			}
		}()
		live = &scan.StreamSource{Store: barStore, Fallback: live, Location: loc}
	}

	board := rank.NewBoard(cfg.TopN)
	pool := &scan.Pool{
		Workers:    cfg.Workers,
		Queue:      queue,
		Exclusions: excl,
		Aggregator: &scan.Aggregator{
			History:     store,
			Live:        live,
			RefDays:     refDays,
			Day:         analysisDay,
			MinBaseline: cfg.MinBaseline,
			Location:    loc,
		},
		Board:          board,
		AlertThreshold: cfg.AlertThreshold,
	}

	poolCtx, cancelPool := context.WithCancel(ctx)
	poolDone := make(chan struct{})
	go func() {
		pool.Run(poolCtx)
		close(poolDone)
	}()

	loop := &display.Loop{Board: board, Tick: cfg.Tick(), In: os.Stdin, Out: os.Stdout}
	runErr := loop.Run(ctx)

	cancelPool()
	<-poolDone
	if runErr != nil {
		log.Fatalf("display: %v", runErr)
	}
	log.Printf("[main] stopped after %d full passes", queue.Pass())
}
