package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ligun0805/wethcycle/internal/chain"
	"github.com/ligun0805/wethcycle/internal/eventlog"
	"github.com/ligun0805/wethcycle/internal/swap"
)

const menuHelp = `  [1] Toggle mode      [2] Set amount     [3] Set loop count   [4] Toggle randomize
  [B] Wallet balances  [T] Nonces         [L] Transaction logs
  [Enter]/[S] Start    [Q] Stop / Quit`

// runMenu is the interactive console. Settings edited here only affect the next run.
// The run outlives ctx: when ctx ends the run is asked to stop and awaited.
func (a *app) runMenu(ctx context.Context, in io.Reader) error {
	cfg, err := a.st.RunConfig()
	if err != nil {
		return err
	}
	lr := newLineReader(in, a.out)
	var h *swap.RunHandle

	for {
		running := a.ctrl.IsRunning(h)
		prompt := "> "
		if running {
			prompt = ""
		} else {
			a.printSettings(cfg, ruleWidth())
			fmt.Fprintln(a.out, menuHelp)
		}

		line, err := lr.readLine(ctx, prompt)
		if err != nil {
			return a.leaveMenu(h, err)
		}

		switch strings.ToLower(line) {
		case "1":
			cfg.Mode = cfg.Mode.Next()
		case "2":
			s, err := lr.readLine(ctx, "Amount (ETH): ")
			if err != nil {
				return a.leaveMenu(h, err)
			}
			amt, err := chain.ParseEther(s)
			if err != nil || amt.Sign() <= 0 {
				a.emit(swap.SeverityError, fmt.Sprintf("Invalid amount %q", s))
				continue
			}
			cfg.Amount = amt
		case "3":
			s, err := lr.readLine(ctx, "Loop count: ")
			if err != nil {
				return a.leaveMenu(h, err)
			}
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n <= 0 {
				a.emit(swap.SeverityError, fmt.Sprintf("Invalid loop count %q", s))
				continue
			}
			cfg.Loops = n
		case "4":
			cfg.Randomize = !cfg.Randomize
		case "b":
			a.printBalances(ctx)
		case "t":
			a.printNonces(ctx)
		case "l":
			a.printLogs()
		case "", "s":
			if running {
				fmt.Fprintln(a.out, eventlog.Dim("Swap running, [Q] to stop, [L] for logs"))
				continue
			}
			// An interrupt ends the console, not the transaction in flight.
			h, err = a.ctrl.Start(context.WithoutCancel(ctx), cfg)
			if err != nil {
				a.emit(swap.SeverityError, err.Error())
			}
		case "q":
			if running {
				a.ctrl.RequestCancel(h)
				continue
			}
			return nil
		default:
			fmt.Fprintln(a.out, eventlog.Dim("Unknown option "+strconv.Quote(line)))
		}
	}
}

// leaveMenu ends the console. A run still in progress is asked to stop and awaited.
func (a *app) leaveMenu(h *swap.RunHandle, err error) error {
	if a.ctrl.IsRunning(h) {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		a.ctrl.RequestCancel(h)
		a.emit(swap.SeverityWarn, "Waiting for the transaction in flight, press Ctrl+C again to exit now")
		if werr := a.awaitRun(h, sig); werr != nil {
			return werr
		}
	}
	if errors.Is(err, errInputClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
