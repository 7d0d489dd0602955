// File: internal/display/display.go
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"rvat/internal/rank"
)

type key int

const (
	keyNone key = iota
	keyQuit
	keyUp
	keyDown
	keyClear
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	headerStyle   = lipgloss.NewStyle().Faint(true).Underline(true)
	rowStyle      = lipgloss.NewStyle()
	selectedStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("22")).Foreground(lipgloss.Color("15"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Loop renders the leaderboard on a fixed tick and feeds operator keys back
// into the board's selection state. It is the only reader of board
// snapshots and never mutates result data.
type Loop struct {
	Board *rank.Board
	Tick  time.Duration
	In    *os.File
	Out   io.Writer
}

// Run drives the render/input loop until the operator quits or ctx is
// cancelled. It puts the terminal into raw mode for the duration and always
// restores it.
func (l *Loop) Run(ctx context.Context) error {
	tick := l.Tick
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	in := l.In
	if in == nil {
		in = os.Stdin
	}
	out := l.Out
	if out == nil {
		out = os.Stdout
	}

	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	// alternate screen, hidden cursor
	fmt.Fprint(out, "\x1b[?1049h\x1b[?25l")
	defer fmt.Fprint(out, "\x1b[?25h\x1b[?1049l")

	keys := make(chan key, 8)
	go readKeys(in, keys)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		l.render(out)
		select {
		case <-ctx.Done():
			return nil
		case k := <-keys:
			switch k {
			case keyQuit:
				return nil
			case keyDown:
				l.Board.SelectNext()
			case keyUp:
				l.Board.SelectPrev()
			case keyClear:
				l.Board.ClearSelection()
			}
		case <-ticker.C:
		}
	}
}

// readKeys decodes raw terminal input into key events. Arrow keys arrive as
// ESC [ A/B/D sequences.
func readKeys(in io.Reader, keys chan<- key) {
	buf := make([]byte, 16)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			switch buf[i] {
			case 'q', 'Q', 0x03: // q or Ctrl-C
				keys <- keyQuit
				return
			case 0x1b:
				if i+2 < n && buf[i+1] == '[' {
					switch buf[i+2] {
					case 'A':
						keys <- keyUp
					case 'B':
						keys <- keyDown
					case 'D':
						keys <- keyClear
					}
					i += 2
				}
			}
		}
	}
}

func (l *Loop) render(out io.Writer) {
	results, title, selected := l.Board.Snapshot()

	var b strings.Builder
	b.WriteString("\x1b[2J\x1b[H")
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\r\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-4s %-8s %10s %16s %16s %9s",
		"#", "SYM", "SCORE", "SESSION VOL", "AVG VOL", "CHG%")))
	b.WriteString("\r\n")

	for i, r := range results {
		line := fmt.Sprintf("%-4d %-8s %10.2f %16s %16s %+8.2f%%",
			i+1, r.Symbol, r.Score,
			humanize.Comma(r.SessionVolume),
			humanize.Commaf(float64(int64(r.AvgVolume))),
			r.ChangePct)
		style := rowStyle
		switch {
		case i == selected:
			style = selectedStyle
		case r.ChangePct > 0:
			style = gainStyle
		case r.ChangePct < 0:
			style = lossStyle
		}
		b.WriteString(style.Render(line))
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(headerStyle.Render("q quit · ↑/↓ select · ← clear"))
	b.WriteString("\r\n")
	fmt.Fprint(out, b.String())
}
