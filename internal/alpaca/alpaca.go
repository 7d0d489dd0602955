// File: internal/alpaca/alpaca.go
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	apiHost  = "https://api.alpaca.markets"
	dataHost = "https://data.alpaca.markets"

	// MaxBarLimit is the largest per-request bar count the data API accepts.
	MaxBarLimit = 10000
)

// Num is a JSON scalar that may arrive as a number, a quoted number, or be
// absent entirely. Bar fields use it so one odd field never fails a whole
// day's decode.
type Num string

func (n *Num) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*n = Num(s)
	return nil
}

func (n Num) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(n), 64); err == nil {
		return []byte(n), nil
	}
	return json.Marshal(string(n))
}

func (n Num) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Int64 parses the value as a non-negative integer quantity. Fractional or
// negative values are rejected.
func (n Num) Int64() (int64, error) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a non-negative integer: %q", string(n))
	}
	return int64(f), nil
}

// Bar is a single OHLCV sample.
type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      Num       `json:"o"`
	High      Num       `json:"h"`
	Low       Num       `json:"l"`
	Close     Num       `json:"c"`
	Volume    Num       `json:"v"`
}

// CalendarDay is one entry of the trading calendar. Open/Close are the
// regular session ("09:30"/"16:00"); SessionOpen/SessionClose are the
// extended session in HHMM form ("0400"/"2000").
type CalendarDay struct {
	Date           string `json:"date"`
	Open           string `json:"open"`
	Close          string `json:"close"`
	SessionOpen    string `json:"session_open"`
	SessionClose   string `json:"session_close"`
	SettlementDate string `json:"settlement_date"`
}

func parseHHMM(s string) (h, m int, err error) {
	s = strings.Replace(strings.TrimSpace(s), ":", "", 1)
	if len(s) != 4 {
		return 0, 0, fmt.Errorf("bad clock %q", s)
	}
	h, err = strconv.Atoi(s[:2])
	if err != nil {
		return 0, 0, err
	}
	m, err = strconv.Atoi(s[2:])
	if err != nil {
		return 0, 0, err
	}
	return h, m, nil
}

// SessionWindow returns the extended-session start and end of the day as
// wall-clock times in loc. Building them with time.Date in the exchange
// location keeps the UTC offset correct across DST transitions.
func (d CalendarDay) SessionWindow(loc *time.Location) (start, end time.Time, err error) {
	day, err := time.ParseInLocation("2006-01-02", d.Date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("calendar date: %w", err)
	}
	oh, om, err := parseHHMM(d.SessionOpen)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("session_open: %w", err)
	}
	ch, cm, err := parseHHMM(d.SessionClose)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("session_close: %w", err)
	}
	start = time.Date(day.Year(), day.Month(), day.Day(), oh, om, 0, 0, loc)
	end = time.Date(day.Year(), day.Month(), day.Day(), ch, cm, 0, 0, loc)
	return start, end, nil
}

// Asset is one tradable instrument from the assets endpoint.
type Asset struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Status   string `json:"status"`
	Tradable bool   `json:"tradable"`
}

var bigBoard = map[string]struct{}{
	"ARCA":   {},
	"NASDAQ": {},
	"NYSE":   {},
	"BATS":   {},
}

// Client talks to the Alpaca REST API. A single bounded retry is configured
// so one transient blip does not cost a symbol its whole pass.
type Client struct {
	rc *resty.Client
}

func NewClient(keyID, secretKey string) *Client {
	rc := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("APCA-API-KEY-ID", keyID).
		SetHeader("APCA-API-SECRET-KEY", secretKey)
	return &Client{rc: rc}
}

// Calendar returns the trading calendar between start and end,
// most-recent-first.
func (c *Client) Calendar(ctx context.Context, start, end time.Time) ([]CalendarDay, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("calendar: start %s must precede end %s", start, end)
	}
	var days []CalendarDay
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		}).
		SetResult(&days).
		Get(apiHost + "/v2/calendar")
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("calendar: status %d: %s", resp.StatusCode(), resp.String())
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date > days[j].Date })
	return days, nil
}

type barsPage struct {
	Symbol        string `json:"symbol"`
	Bars          []Bar  `json:"bars"`
	NextPageToken string `json:"next_page_token"`
}

// Bars fetches 1-to-limit bars of the given timeframe for symbol in
// [start, end), following pagination, and returns them most-recent-first.
// Argument misuse is a caller defect and returns an error rather than an
// empty result.
func (c *Client) Bars(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("bars: empty symbol")
	}
	if strings.TrimSpace(timeframe) == "" {
		return nil, fmt.Errorf("bars: empty timeframe")
	}
	if limit <= 0 || limit > MaxBarLimit {
		return nil, fmt.Errorf("bars: limit %d out of range (0, %d]", limit, MaxBarLimit)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("bars: start %s must precede end %s", start, end)
	}

	var all []Bar
	pageToken := ""
	for {
		params := map[string]string{
			"timeframe":  timeframe,
			"start":      start.Format(time.RFC3339),
			"end":        end.Format(time.RFC3339),
			"limit":      strconv.Itoa(limit),
			"adjustment": "all",
		}
		if pageToken != "" {
			params["page_token"] = pageToken
		}
		var page barsPage
		resp, err := c.rc.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(&page).
			Get(dataHost + "/v2/stocks/" + symbol + "/bars")
		if err != nil {
			return nil, fmt.Errorf("bars %s: %w", symbol, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("bars %s: status %d: %s", symbol, resp.StatusCode(), resp.String())
		}
		all = append(all, page.Bars...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	// Most-recent-first, matching the calendar ordering.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// EquityAssets returns active, tradable symbols listed on the big-board
// exchanges.
func (c *Client) EquityAssets(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&assets).
		Get(apiHost + "/v2/assets")
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("assets: status %d", resp.StatusCode())
	}
	out := assets[:0]
	for _, a := range assets {
		if !a.Tradable || a.Status != "active" {
			continue
		}
		if _, ok := bigBoard[a.Exchange]; !ok {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
