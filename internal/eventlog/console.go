package eventlog

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/ligun0805/wethcycle/internal/swap"
)

const timeLayout = "15:04:05"

var (
	dim    = color.New(color.FgHiBlack).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	amber  = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	accent = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

// Paint colours s by severity. Colour is dropped when color.NoColor is set.
func Paint(sev swap.Severity, s string) string {
	switch sev {
	case swap.SeveritySuccess:
		return green(s)
	case swap.SeverityWarn:
		return amber(s)
	case swap.SeverityError:
		return red(s)
	}
	return cyan(s)
}

// Accent is used for headings in the menu and views.
func Accent(s string) string { return accent(s) }

// Dim is used for secondary text such as timestamps and hints.
func Dim(s string) string { return dim(s) }

// Console writes one timestamped, colour-coded line per event.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console { return &Console{w: w} }

func (c *Console) Emit(ev swap.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s\n", dim("["+ev.Time.Format(timeLayout)+"]"), Paint(ev.Severity, ev.Message))
}
