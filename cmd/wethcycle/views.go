package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/wethcycle/internal/chain"
	"github.com/ligun0805/wethcycle/internal/eventlog"
	"github.com/ligun0805/wethcycle/internal/swap"
	"github.com/ligun0805/wethcycle/internal/wallet"
)

const viewParallelism = 4

type walletRow struct {
	addr    string
	native  string
	wrapped string
	nonce   string
	route   string
}

func readErr(err error) string { return "err: " + chain.FriendlyError(err) }

// fetchRows reads every wallet in parallel; a failed read is shown in place of the value.
func (a *app) fetchRows(ctx context.Context, withBalances, withNonce bool) []walletRow {
	accts := a.pool.Accounts()
	rows := make([]walletRow, len(accts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(viewParallelism)
	for i, acct := range accts {
		g.Go(func() error {
			rows[i] = readRow(gctx, acct, withBalances, withNonce)
			return nil
		})
	}
	_ = g.Wait()
	return rows
}

func readRow(ctx context.Context, acct *wallet.Account, withBalances, withNonce bool) walletRow {
	row := walletRow{
		addr:  chain.ShortAddress(acct.Address()),
		route: wallet.RouteLabel(acct.Route()),
	}
	if withBalances {
		row.native = fmtBalance(acct.NativeBalance(ctx))
		row.wrapped = fmtBalance(acct.WrappedBalance(ctx))
	}
	if withNonce {
		if n, err := acct.Nonce(ctx); err != nil {
			row.nonce = readErr(err)
		} else {
			row.nonce = fmt.Sprint(n)
		}
	}
	return row
}

func fmtBalance(v *big.Int, err error) string {
	if err != nil {
		return readErr(err)
	}
	return chain.FormatEther(v, 4)
}

func (a *app) printBalances(ctx context.Context) {
	rows := a.fetchRows(ctx, true, false)
	fmt.Fprintln(a.out, eventlog.Accent("WALLET INFORMATION")+" "+eventlog.Dim("("+a.st.NetworkName+")"))
	fmt.Fprintf(a.out, "  %-4s %-15s %14s %14s  %s\n", "#", "Address", "ETH", "WETH", "Proxy")
	for i, r := range rows {
		fmt.Fprintf(a.out, "  %-4d %-15s %14s %14s  %s\n", i+1, r.addr, r.native, r.wrapped, eventlog.Dim(r.route))
	}
}

func (a *app) printNonces(ctx context.Context) {
	rows := a.fetchRows(ctx, false, true)
	fmt.Fprintln(a.out, eventlog.Accent("TRANSACTION COUNT"))
	for i, r := range rows {
		fmt.Fprintf(a.out, "  %-4d %-15s nonce %s\n", i+1, r.addr, r.nonce)
	}
}

func (a *app) printLogs() {
	lines := a.buffer.Lines()
	fmt.Fprintln(a.out, eventlog.Accent("TRANSACTION LOGS"))
	if len(lines) == 0 {
		fmt.Fprintln(a.out, eventlog.Dim("  (empty)"))
		return
	}
	fmt.Fprintln(a.out, "  "+strings.Join(lines, "\n  "))
}

func (a *app) printSettings(cfg swap.RunConfig, width int) {
	rule := strings.Repeat("─", width)
	fmt.Fprintln(a.out, eventlog.Dim(rule))
	fmt.Fprintf(a.out, "%s  %s  wallets: %d\n",
		eventlog.Accent("WETH CYCLE"), eventlog.Dim(a.st.NetworkName), a.pool.Len())
	fmt.Fprintf(a.out, "  Mode: %s | Amount: %s ETH | Loops: %d | Randomize: %s\n",
		cfg.Mode, chain.FormatEther(cfg.Amount, 6), cfg.Loops, onOff(cfg.Randomize))
	fmt.Fprintln(a.out, eventlog.Dim(rule))
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
