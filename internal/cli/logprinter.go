package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/chardev/chardev/internal/chardevd/auditlog"
	"github.com/fatih/color"
)

var opColors = map[string]*color.Color{
	"open":  color.New(color.FgGreen).Add(color.Bold),
	"close": color.New(color.FgRed).Add(color.Bold),
	"seek":  color.New(color.FgYellow),
	"read":  color.New(color.FgCyan),
	"write": color.New(color.FgMagenta),

	auditlog.OpDropped: color.New(color.FgHiRed),
}

// Predefined palette of distinct colors for sessions
var colorPalette = []*color.Color{
	color.New(color.FgGreen),
	color.New(color.FgCyan),
	color.New(color.FgMagenta),
	color.New(color.FgYellow),
	color.New(color.FgBlue),
}

var timeLabel = color.New(color.FgHiWhite, color.Faint)

// opPrinter prints store operations one per line, giving each session its
// own color.
type opPrinter struct {
	w             io.Writer
	sessionColors map[string]*color.Color
}

func newOpPrinter(w io.Writer) *opPrinter {
	return &opPrinter{w: w, sessionColors: map[string]*color.Color{}}
}

type opLine struct {
	Time      time.Time
	Op        string
	SessionID string
	Offset    int64
	Position  int64
	Count     int
	Error     string
}

func (p *opPrinter) sessionColor(id string) *color.Color {
	c, ok := p.sessionColors[id]
	if !ok {
		c = colorPalette[len(p.sessionColors)%len(colorPalette)]
		p.sessionColors[id] = c
	}
	return c
}

func (p *opPrinter) print(l opLine) {
	timeLabel.Fprintf(p.w, "%s ", l.Time.Local().Format("15:04:05.000"))
	p.sessionColor(l.SessionID).Fprintf(p.w, "%s ", shortID(l.SessionID))

	opColor, ok := opColors[l.Op]
	if !ok {
		opColor = color.New(color.FgWhite)
	}
	opColor.Fprintf(p.w, "%-5s", l.Op)

	switch l.Op {
	case "read", "write":
		fmt.Fprintf(p.w, " %d bytes at %d, position %d", l.Count, l.Offset, l.Position)
	case "seek":
		fmt.Fprintf(p.w, " %d -> %d", l.Offset, l.Position)
	case auditlog.OpDropped:
		fmt.Fprintf(p.w, " %d events not recorded", l.Count)
	}
	if l.Error != "" {
		errorLabel.Fprintf(p.w, " error: %s", l.Error)
	}
	fmt.Fprintln(p.w)
}

// shortID keeps the random tail of a UUIDv7, which differs between
// sessions opened in the same millisecond.
func shortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[len(id)-8:]
}
