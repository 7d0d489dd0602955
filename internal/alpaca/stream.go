// File: internal/alpaca/stream.go
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultStreamURL = "wss://stream.data.alpaca.markets/v2/iex"

// streamBar is a minute aggregate from the data websocket.
type streamBar struct {
	T      string  `json:"T"` // "b"
	Symbol string  `json:"S"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Time   string  `json:"t"` // RFC3339
}

// BarStore accumulates live minute bars per symbol for the current session.
// Workers read from it instead of re-fetching today's bars over REST.
type BarStore struct {
	mu    sync.RWMutex
	bySym map[string][]Bar
}

func NewBarStore() *BarStore {
	return &BarStore{bySym: make(map[string][]Bar)}
}

func (s *BarStore) add(sym string, b Bar) {
	s.mu.Lock()
	slice := s.bySym[sym]
	// replace the last bar when the stream re-emits the same minute
	if n := len(slice); n > 0 && slice[n-1].Timestamp.Equal(b.Timestamp) {
		slice[n-1] = b
	} else {
		slice = append(slice, b)
		if len(slice) > 1600 { // ~one full extended session
			slice = slice[len(slice)-1600:]
		}
	}
	s.bySym[sym] = slice
	s.mu.Unlock()
}

// Bars returns a most-recent-first copy of the stored bars for sym within
// [start, end].
func (s *BarStore) Bars(sym string, start, end time.Time) []Bar {
	s.mu.RLock()
	src := s.bySym[sym]
	out := make([]Bar, 0, len(src))
	for _, b := range src {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *BarStore) Reset() {
	s.mu.Lock()
	s.bySym = make(map[string][]Bar)
	s.mu.Unlock()
}

// Stream maintains a websocket connection to the Alpaca data feed and folds
// incoming minute bars into a BarStore. It reconnects with exponential
// backoff until the context is cancelled.
type Stream struct {
	keyID     string
	secretKey string
	wsURL     string
	store     *BarStore

	mu      sync.Mutex
	symbols []string
}

func NewStream(keyID, secretKey string, store *BarStore, wsOptional ...string) *Stream {
	u := defaultStreamURL
	if len(wsOptional) > 0 && strings.TrimSpace(wsOptional[0]) != "" {
		u = wsOptional[0]
	}
	return &Stream{keyID: keyID, secretKey: secretKey, wsURL: u, store: store}
}

// SetSymbols replaces the subscription set used on the next (re)connect.
func (s *Stream) SetSymbols(symbols []string) {
	cp := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if v := strings.ToUpper(strings.TrimSpace(sym)); v != "" {
			cp = append(cp, v)
		}
	}
	s.mu.Lock()
	s.symbols = cp
	s.mu.Unlock()
}

func (s *Stream) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := s.runOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[stream] disconnected: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}
}

type streamControl struct {
	Action string   `json:"action"`
	Key    string   `json:"key,omitempty"`
	Secret string   `json:"secret,omitempty"`
	Bars   []string `json:"bars,omitempty"`
}

func (s *Stream) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: true,
	}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(streamControl{Action: "auth", Key: s.keyID, Secret: s.secretKey}); err != nil {
		return fmt.Errorf("auth write: %w", err)
	}
	s.mu.Lock()
	syms := append([]string(nil), s.symbols...)
	s.mu.Unlock()
	if len(syms) > 0 {
		if err := conn.WriteJSON(streamControl{Action: "subscribe", Bars: syms}); err != nil {
			return fmt.Errorf("subscribe write: %w", err)
		}
	}

	ping := time.NewTicker(45 * time.Second)
	defer ping.Stop()

	errCh := make(chan error, 1)
	go func() {
		for {
			var msgs []json.RawMessage
			if err := conn.ReadJSON(&msgs); err != nil {
				errCh <- err
				return
			}
			for _, raw := range msgs {
				var head struct {
					T string `json:"T"`
				}
				_ = json.Unmarshal(raw, &head)
				switch head.T {
				case "b":
					var sb streamBar
					if err := json.Unmarshal(raw, &sb); err == nil {
						s.fold(sb)
					}
				case "error":
					log.Printf("[stream] server error: %s", string(raw))
				default:
					// ignore "success" and subscription echoes
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case err := <-errCh:
			return err
		}
	}
}

func (s *Stream) fold(sb streamBar) {
	ts, err := time.Parse(time.RFC3339, sb.Time)
	if err != nil {
		return
	}
	s.store.add(strings.ToUpper(sb.Symbol), Bar{
		Timestamp: ts,
		Open:      floatNum(sb.Open),
		High:      floatNum(sb.High),
		Low:       floatNum(sb.Low),
		Close:     floatNum(sb.Close),
		Volume:    floatNum(sb.Volume),
	})
}

func floatNum(f float64) Num {
	return Num(strconv.FormatFloat(f, 'f', -1, 64))
}
