package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/wethcycle/internal/chain"
	"github.com/ligun0805/wethcycle/internal/swap"
)

var ErrNoAccounts = errors.New("no valid private keys")

// Conn is one dedicated RPC connection.
type Conn interface {
	chain.Backend
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Dialer opens a new connection over route; an empty route means direct.
type Dialer func(ctx context.Context, route string) (Conn, error)

// NewDialer dials rpcURL through the per-route HTTP client.
func NewDialer(rpcURL string, timeout time.Duration) Dialer {
	return func(ctx context.Context, route string) (Conn, error) {
		hc, err := HTTPClientForRoute(route, timeout)
		if err != nil {
			return nil, err
		}
		ec, err := chain.Dial(rpcURL, hc)
		if err != nil {
			return nil, err
		}
		return ec, nil
	}
}

// Account is one wallet with its own connection. It satisfies swap.Account.
type Account struct {
	index  int
	addr   common.Address
	route  string
	client *chain.Client
}

func (a *Account) Index() int              { return a.index }
func (a *Account) Address() common.Address { return a.addr }

// Route is the proxy the account's traffic uses, empty when direct.
func (a *Account) Route() string { return a.route }

func (a *Account) NativeBalance(ctx context.Context) (*big.Int, error) {
	return a.client.NativeBalance(ctx)
}

func (a *Account) WrappedBalance(ctx context.Context) (*big.Int, error) {
	return a.client.WrappedBalance(ctx)
}

func (a *Account) Deposit(ctx context.Context, amount *big.Int, onSubmitted func(common.Hash)) (*types.Receipt, error) {
	return a.client.Deposit(ctx, amount, onSubmitted)
}

func (a *Account) Withdraw(ctx context.Context, amount *big.Int, onSubmitted func(common.Hash)) (*types.Receipt, error) {
	return a.client.Withdraw(ctx, amount, onSubmitted)
}

func (a *Account) Nonce(ctx context.Context) (uint64, error) { return a.client.Nonce(ctx) }

// Pool is the fixed set of accounts for the process lifetime.
type Pool struct {
	accounts []*Account
}

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.accounts)
}

func (p *Pool) Accounts() []*Account { return append([]*Account(nil), p.accounts...) }

// SwapAccounts returns the accounts in load order as orchestrator inputs.
func (p *Pool) SwapAccounts() []swap.Account {
	out := make([]swap.Account, len(p.accounts))
	for i, a := range p.accounts {
		out[i] = a
	}
	return out
}

func (p *Pool) Close() {
	for _, a := range p.accounts {
		a.client.Close()
	}
}

// LoadOptions carries what every account client shares.
type LoadOptions struct {
	Client chain.Options
	Sink   swap.Sink
}

// Credential is a validated key, the 1-based line it came from and its route.
type Credential struct {
	Line  int
	Route string
	Key   *ecdsa.PrivateKey
	Addr  common.Address
}

func warnf(sink swap.Sink, format string, args ...any) {
	if sink != nil {
		sink.Emit(swap.Event{Time: time.Now(), Severity: swap.SeverityWarn, Message: fmt.Sprintf(format, args...)})
	}
}

// ParseCredentials validates every key without touching the network. Malformed and
// duplicate keys are reported by position on sink and skipped. Routes pair with keys by
// position. It fails with ErrNoAccounts when no key survives.
func ParseCredentials(keys, routes []string, sink swap.Sink) ([]Credential, error) {
	var valid []Credential
	seen := make(map[common.Address]int)
	for i, raw := range keys {
		line := i + 1
		key, err := ParseKey(raw)
		if err != nil {
			warnf(sink, "Skipping private key #%d: %v", line, err)
			continue
		}
		addr := gethcrypto.PubkeyToAddress(key.PublicKey)
		if first, dup := seen[addr]; dup {
			warnf(sink, "Skipping private key #%d: duplicate of #%d (%s)", line, first, chain.ShortAddress(addr))
			continue
		}
		seen[addr] = line
		route := ""
		if i < len(routes) {
			route = routes[i]
		}
		valid = append(valid, Credential{Line: line, Route: route, Key: key, Addr: addr})
	}
	if len(valid) == 0 {
		return nil, ErrNoAccounts
	}
	return valid, nil
}

// Open builds one account per credential. A route that cannot be reached degrades to a
// direct connection; a direct connection that cannot be opened is an error.
func Open(ctx context.Context, creds []Credential, dial Dialer, opts LoadOptions) (*Pool, error) {
	if len(creds) == 0 {
		return nil, ErrNoAccounts
	}
	pool := &Pool{}
	for _, v := range creds {
		conn, route, err := openConn(ctx, dial, v.Route, func(err error) {
			warnf(opts.Sink, "[%s] proxy %s unreachable (%s), using direct RPC",
				chain.ShortAddress(v.Addr), RouteLabel(v.Route), chain.FriendlyError(err))
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("account #%d (%s): %w", v.Line, chain.ShortAddress(v.Addr), err)
		}
		copts := opts.Client
		copts.OnClose = conn.Close
		client, err := chain.NewClient(conn, v.Key, copts)
		if err != nil {
			conn.Close()
			pool.Close()
			return nil, err
		}
		pool.accounts = append(pool.accounts, &Account{
			index:  len(pool.accounts),
			addr:   v.Addr,
			route:  route,
			client: client,
		})
	}
	return pool, nil
}

// Load is ParseCredentials followed by Open; nothing is dialed unless a key is valid.
func Load(ctx context.Context, keys, routes []string, dial Dialer, opts LoadOptions) (*Pool, error) {
	creds, err := ParseCredentials(keys, routes, opts.Sink)
	if err != nil {
		return nil, err
	}
	return Open(ctx, creds, dial, opts)
}

// openConn dials route and checks it answers; on failure it falls back to direct.
func openConn(ctx context.Context, dial Dialer, route string, onFallback func(error)) (Conn, string, error) {
	if route != "" {
		conn, err := dial(ctx, route)
		if err == nil {
			if _, err = conn.ChainID(ctx); err == nil {
				return conn, route, nil
			}
			conn.Close()
		}
		onFallback(err)
	}
	conn, err := dial(ctx, "")
	if err != nil {
		return nil, "", fmt.Errorf("dial direct: %w", err)
	}
	return conn, "", nil
}
