package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var errInputClosed = errors.New("input closed")

// lineReader feeds stdin lines to the menu so reads can be abandoned when ctx ends.
type lineReader struct {
	out   io.Writer
	lines chan string
}

func newLineReader(in io.Reader, out io.Writer) *lineReader {
	lr := &lineReader{out: out, lines: make(chan string)}
	go func() {
		defer close(lr.lines)
		r := bufio.NewReader(in)
		for {
			t, err := r.ReadString('\n')
			if t != "" || err == nil {
				lr.lines <- strings.TrimSpace(t)
			}
			if err != nil {
				return
			}
		}
	}()
	return lr
}

func (lr *lineReader) readLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(lr.out, prompt)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case s, ok := <-lr.lines:
		if !ok {
			return "", errInputClosed
		}
		return s, nil
	}
}

func stdoutIsTerminal() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

// setupColor disables ANSI colours when stdout is not a terminal or when asked to.
func setupColor(disable bool) {
	if disable || !stdoutIsTerminal() {
		color.NoColor = true
	}
}

// ruleWidth is the terminal width clamped to a readable range.
func ruleWidth() int {
	const def, lo, hi = 60, 40, 80
	if !stdoutIsTerminal() {
		return def
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return def
	}
	return min(max(w, lo), hi)
}
