package alpaca

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNum_Unmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want Num
	}{
		{`{"v":12345}`, "12345"},
		{`{"v":"12345"}`, "12345"},
		{`{"v":10.5}`, "10.5"},
		{`{"v":null}`, ""},
		{`{}`, ""},
	}
	for _, c := range cases {
		var out struct {
			V Num `json:"v"`
		}
		if err := json.Unmarshal([]byte(c.in), &out); err != nil {
			t.Errorf("%s: %v", c.in, err)
			continue
		}
		if out.V != c.want {
			t.Errorf("%s: got %q, want %q", c.in, out.V, c.want)
		}
	}
}

func TestNum_MarshalRoundTrip(t *testing.T) {
	data, err := json.Marshal(Num("12345"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "12345" {
		t.Errorf("numeric Num should marshal unquoted, got %s", data)
	}
	data, err = json.Marshal(Num("n/a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"n/a"` {
		t.Errorf("non-numeric Num should marshal as string, got %s", data)
	}
}

func TestNum_Int64(t *testing.T) {
	cases := []struct {
		in   Num
		want int64
		ok   bool
	}{
		{"12345", 12345, true},
		{"0", 0, true},
		{"1e3", 1000, true},
		{"10.5", 0, false},
		{"-5", 0, false},
		{"oops", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := c.in.Int64()
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("%q: got %d, %v; want %d", c.in, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Errorf("%q: expected error, got %d", c.in, got)
		}
	}
}

func TestBar_DecodeWireShape(t *testing.T) {
	payload := `[{"t":"2024-03-01T14:30:00Z","o":170.1,"h":171,"l":169.9,"c":"170.55","v":120345}]`
	var bars []Bar
	if err := json.Unmarshal([]byte(payload), &bars); err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	b := bars[0]
	if !b.Timestamp.Equal(time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)) {
		t.Errorf("timestamp %s", b.Timestamp)
	}
	if c, err := b.Close.Float64(); err != nil || c != 170.55 {
		t.Errorf("close: %v, %v", c, err)
	}
	if v, err := b.Volume.Int64(); err != nil || v != 120345 {
		t.Errorf("volume: %v, %v", v, err)
	}
}

func TestSessionWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	cases := []struct {
		name   string
		day    CalendarDay
		offset string // expected zone offset at session open
	}{
		{"winter", CalendarDay{Date: "2024-03-01", SessionOpen: "0400", SessionClose: "2000"}, "-05:00"},
		{"summer", CalendarDay{Date: "2024-07-01", SessionOpen: "0400", SessionClose: "2000"}, "-04:00"},
		{"colon form", CalendarDay{Date: "2024-03-01", SessionOpen: "04:00", SessionClose: "20:00"}, "-05:00"},
	}
	for _, c := range cases {
		start, end, err := c.day.SessionWindow(loc)
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if got := start.Format("-07:00"); got != c.offset {
			t.Errorf("%s: open offset %s, want %s", c.name, got, c.offset)
		}
		if start.Hour() != 4 || end.Hour() != 20 {
			t.Errorf("%s: window %s..%s", c.name, start, end)
		}
		if got := end.Sub(start); got != 16*time.Hour {
			t.Errorf("%s: span %s, want 16h", c.name, got)
		}
	}
}

func TestSessionWindow_Malformed(t *testing.T) {
	loc := time.UTC
	bad := []CalendarDay{
		{Date: "03/01/2024", SessionOpen: "0400", SessionClose: "2000"},
		{Date: "2024-03-01", SessionOpen: "4am", SessionClose: "2000"},
		{Date: "2024-03-01", SessionOpen: "0400", SessionClose: ""},
	}
	for _, d := range bad {
		if _, _, err := d.SessionWindow(loc); err == nil {
			t.Errorf("%+v: expected error", d)
		}
	}
}

func TestBars_ArgumentValidation(t *testing.T) {
	c := NewClient("key", "secret")
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	cases := []struct {
		name      string
		symbol    string
		timeframe string
		start     time.Time
		end       time.Time
		limit     int
	}{
		{"empty symbol", "", "1Min", t0, t1, 100},
		{"blank symbol", "   ", "1Min", t0, t1, 100},
		{"empty timeframe", "AAPL", "", t0, t1, 100},
		{"zero limit", "AAPL", "1Min", t0, t1, 0},
		{"limit too large", "AAPL", "1Min", t0, t1, MaxBarLimit + 1},
		{"start after end", "AAPL", "1Min", t1, t0, 100},
		{"start equals end", "AAPL", "1Min", t0, t0, 100},
	}
	for _, tc := range cases {
		if _, err := c.Bars(ctx, tc.symbol, tc.timeframe, tc.start, tc.end, tc.limit); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestCalendar_ArgumentValidation(t *testing.T) {
	c := NewClient("key", "secret")
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.Calendar(context.Background(), t0, t0); err == nil {
		t.Error("expected error for empty range")
	}
	if _, err := c.Calendar(context.Background(), t0.Add(time.Hour), t0); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestBarStore(t *testing.T) {
	s := NewBarStore()
	t0 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	s.add("AAPL", Bar{Timestamp: t0, Close: "10", Volume: "100"})
	s.add("AAPL", Bar{Timestamp: t0.Add(time.Minute), Close: "11", Volume: "200"})
	// same minute re-emitted: replaces, not appends
	s.add("AAPL", Bar{Timestamp: t0.Add(time.Minute), Close: "12", Volume: "250"})
	s.add("MSFT", Bar{Timestamp: t0, Close: "99", Volume: "1"})

	bars := s.Bars("AAPL", t0.Add(-time.Hour), t0.Add(time.Hour))
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if !bars[0].Timestamp.After(bars[1].Timestamp) {
		t.Error("bars not most-recent-first")
	}
	if bars[0].Close != "12" || bars[0].Volume != "250" {
		t.Errorf("re-emitted minute not replaced: %+v", bars[0])
	}

	// window filtering
	if got := s.Bars("AAPL", t0.Add(30*time.Second), t0.Add(time.Hour)); len(got) != 1 {
		t.Errorf("window filter: got %d bars, want 1", len(got))
	}
	if got := s.Bars("TSLA", t0, t0.Add(time.Hour)); len(got) != 0 {
		t.Errorf("unknown symbol: got %d bars", len(got))
	}

	s.Reset()
	if got := s.Bars("AAPL", t0.Add(-time.Hour), t0.Add(time.Hour)); len(got) != 0 {
		t.Errorf("reset: got %d bars", len(got))
	}
}

func TestStreamFold(t *testing.T) {
	store := NewBarStore()
	s := NewStream("k", "s", store)
	s.fold(streamBar{
		T: "b", Symbol: "aapl",
		Open: 170.1, High: 171, Low: 169.9, Close: 170.55, Volume: 120345,
		Time: "2024-03-04T14:30:00Z",
	})
	s.fold(streamBar{T: "b", Symbol: "AAPL", Time: "not a time"})

	bars := store.Bars("AAPL", time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if v, err := bars[0].Volume.Int64(); err != nil || v != 120345 {
		t.Errorf("volume: %v, %v", v, err)
	}
	if bars[0].Close != "170.55" {
		t.Errorf("close %q", bars[0].Close)
	}
}
