package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/ligun0805/wethcycle/internal/chain"
	"github.com/ligun0805/wethcycle/internal/config"
	"github.com/ligun0805/wethcycle/internal/eventlog"
	"github.com/ligun0805/wethcycle/internal/metrics"
	"github.com/ligun0805/wethcycle/internal/swap"
	"github.com/ligun0805/wethcycle/internal/wallet"
)

// app holds everything a command needs once settings are loaded and wallets dialed.
type app struct {
	st      config.Settings
	log     *zap.Logger
	chainID *big.Int
	pool    *wallet.Pool
	buffer  *eventlog.Buffer
	rec     *metrics.Recorder
	sink    swap.Sink
	ctrl    *swap.Controller
	out     io.Writer
}

func newApp(ctx context.Context, out io.Writer) (*app, error) {
	config.LoadEnvFiles()
	st := config.Load()
	if err := st.Validate(); err != nil {
		return nil, err
	}

	log, err := eventlog.NewLogger(st.LogLevel, st.LogFile)
	if err != nil {
		return nil, err
	}

	a := &app{
		st:     st,
		log:    log,
		buffer: eventlog.NewBuffer(eventlog.DefaultBufferSize),
		rec:    metrics.NewRecorder(),
		out:    out,
	}
	a.sink = eventlog.Multi{eventlog.NewConsole(out), a.buffer, eventlog.NewZap(log), a.rec}

	// Keys are checked before anything is dialed.
	creds, err := a.readCredentials()
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	if err := a.resolveChainID(ctx); err != nil {
		_ = log.Sync()
		return nil, err
	}
	if err := a.openWallets(ctx, creds); err != nil {
		_ = log.Sync()
		return nil, err
	}

	orch := swap.NewOrchestrator(a.pool.SwapAccounts(), a.sink,
		swap.WithPacing(st.Pacing()),
		swap.WithReadRetry(st.ReadAttempts, 200*time.Millisecond),
	)
	a.ctrl = swap.NewController(orch, a.sink)

	if st.MetricsAddr != "" {
		go func() {
			if err := a.rec.Serve(ctx, st.MetricsAddr, log); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}
	return a, nil
}

// resolveChainID asks the node for its chain id over a direct connection and checks it
// against CHAIN_ID when that is set.
func (a *app) resolveChainID(ctx context.Context) error {
	want, err := a.st.ChainIDBig()
	if err != nil {
		return err
	}
	hc, err := wallet.HTTPClientForRoute("", a.st.RPCTimeout)
	if err != nil {
		return err
	}
	ec, err := chain.Dial(a.st.RPCURL, hc)
	if err != nil {
		return err
	}
	defer ec.Close()

	cctx, cancel := context.WithTimeout(ctx, a.st.RPCTimeout)
	defer cancel()
	got, err := chain.VerifyChainID(cctx, ec, want)
	if err != nil {
		return err
	}
	a.chainID = got
	a.log.Info("connected",
		zap.String("network", a.st.NetworkName),
		zap.String("rpc", a.st.RPCURL),
		zap.String("chainId", got.String()),
		zap.String("weth", a.st.WETH().Hex()))
	return nil
}

// readCredentials loads the key and proxy files and validates the keys offline.
func (a *app) readCredentials() ([]wallet.Credential, error) {
	keys, err := wallet.ReadLines(a.st.PrivateKeysFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.st.PrivateKeysFile, err)
	}
	routes, err := wallet.ReadLines(a.st.ProxyFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		a.log.Info("no proxy file, using direct RPC", zap.String("file", a.st.ProxyFile))
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", a.st.ProxyFile, err)
	}
	return wallet.ParseCredentials(keys, routes, a.sink)
}

func (a *app) openWallets(ctx context.Context, creds []wallet.Credential) error {
	pool, err := wallet.Open(ctx, creds, wallet.NewDialer(a.st.RPCURL, a.st.RPCTimeout), wallet.LoadOptions{
		Client: a.st.ClientOptions(a.chainID),
		Sink:   a.sink,
	})
	if err != nil {
		return err
	}
	a.pool = pool

	proxied := 0
	for _, acct := range pool.Accounts() {
		if acct.Route() != "" {
			proxied++
		}
	}
	a.emit(swap.SeverityInfo, fmt.Sprintf("Loaded %d wallet(s), %d via proxy", pool.Len(), proxied))
	return nil
}

func (a *app) emit(sev swap.Severity, msg string) {
	a.sink.Emit(swap.Event{Time: time.Now(), Severity: sev, Message: msg})
}

// close cancels any active run, waits for it to settle, then releases connections.
func (a *app) close() {
	if a.ctrl != nil {
		if h := a.ctrl.Active(); h != nil {
			a.ctrl.RequestCancel(h)
			<-h.Done()
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.log.Sync()
}
