package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/time/rate"
)

// WETH9 surface used by the tool.
const wethABIJSON = `[
  {"type":"function","stateMutability":"payable","name":"deposit","inputs":[],"outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"withdraw",
   "inputs":[{"name":"wad","type":"uint256"}],"outputs":[]},
  {"type":"function","stateMutability":"view","name":"balanceOf",
   "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var wethABI abi.ABI

func init() {
	ab, err := abi.JSON(strings.NewReader(wethABIJSON))
	if err != nil {
		panic(fmt.Sprintf("weth abi: %v", err))
	}
	wethABI = ab
}

var (
	ErrReverted       = errors.New("transaction reverted")
	ErrNonPositive    = errors.New("amount must be positive")
	ErrMissingChainID = errors.New("chain id is required")
)

const DefaultConfirmTimeout = 5 * time.Minute

// Backend is what a Client needs from the node: contract calls and transactions,
// receipts, and plain account state.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

type Options struct {
	ChainID        *big.Int
	WETH           common.Address
	RateLimit      float64 // requests per second, 0 disables throttling
	ConfirmTimeout time.Duration
	OnClose        func()
}

// Client performs one account's calls against the node it was built over.
type Client struct {
	backend  Backend
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	weth     common.Address
	contract *bind.BoundContract
	limiter  *rate.Limiter
	confirm  time.Duration
	onClose  func()
}

func NewClient(backend Backend, key *ecdsa.PrivateKey, opts Options) (*Client, error) {
	if backend == nil {
		return nil, errors.New("nil backend")
	}
	if key == nil {
		return nil, errors.New("nil private key")
	}
	if opts.ChainID == nil || opts.ChainID.Sign() <= 0 {
		return nil, ErrMissingChainID
	}
	c := &Client{
		backend:  backend,
		key:      key,
		from:     gethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:  new(big.Int).Set(opts.ChainID),
		weth:     opts.WETH,
		contract: bind.NewBoundContract(opts.WETH, wethABI, backend, backend, backend),
		confirm:  opts.ConfirmTimeout,
		onClose:  opts.OnClose,
	}
	if c.confirm <= 0 {
		c.confirm = DefaultConfirmTimeout
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c, nil
}

func (c *Client) Address() common.Address { return c.from }

func (c *Client) WETH() common.Address { return c.weth }

func (c *Client) Close() {
	if c.onClose != nil {
		c.onClose()
		c.onClose = nil
	}
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// NativeBalance returns the account's balance of the chain's base asset, in wei.
func (c *Client) NativeBalance(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.backend.BalanceAt(ctx, c.from, nil)
}

// WrappedBalance returns balanceOf(account) on the wrapped-token contract.
func (c *Client) WrappedBalance(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", c.from); err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	if len(out) == 0 {
		return new(big.Int), nil
	}
	bal, ok := out[0].(*big.Int)
	if !ok || bal == nil {
		return nil, fmt.Errorf("balanceOf: unexpected result %T", out[0])
	}
	return bal, nil
}

// Nonce returns the confirmed transaction count of the account.
func (c *Client) Nonce(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.backend.NonceAt(ctx, c.from, nil)
}

// Deposit wraps amount of the native asset. onSubmitted, if set, runs as soon as the
// node accepts the transaction; the call then blocks until it is mined.
func (c *Client) Deposit(ctx context.Context, amount *big.Int, onSubmitted func(common.Hash)) (*types.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrNonPositive
	}
	return c.transact(ctx, new(big.Int).Set(amount), onSubmitted, "deposit")
}

// Withdraw unwraps amount of the wrapped token back to the native asset.
func (c *Client) Withdraw(ctx context.Context, amount *big.Int, onSubmitted func(common.Hash)) (*types.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrNonPositive
	}
	return c.transact(ctx, nil, onSubmitted, "withdraw", new(big.Int).Set(amount))
}

func (c *Client) transact(ctx context.Context, value *big.Int, onSubmitted func(common.Hash), method string, args ...any) (*types.Receipt, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	opts, err := c.transactor(ctx)
	if err != nil {
		return nil, err
	}
	opts.Value = value

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", method, err)
	}
	if onSubmitted != nil {
		onSubmitted(tx.Hash())
	}
	return c.waitConfirmed(ctx, tx)
}

func (c *Client) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (c *Client) waitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	wctx, cancel := context.WithTimeout(ctx, c.confirm)
	defer cancel()
	receipt, err := bind.WaitMined(wctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w", ShortHash(tx.Hash()), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s in block %s", ErrReverted, ShortHash(tx.Hash()), receipt.BlockNumber)
	}
	return receipt, nil
}
