package swap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/wethcycle/internal/chain"
)

const (
	defaultReadAttempts = 3
	defaultReadBackoff  = 200 * time.Millisecond
)

// Orchestrator walks every account through the wrap/unwrap state machine, loop by loop.
// Accounts are visited sequentially in the order given; per-account failures are
// reported and never abort the run.
type Orchestrator struct {
	accounts     []Account
	sink         Sink
	amounts      *AmountPolicy
	pacing       *Pacing
	readAttempts int
	readBackoff  time.Duration
	now          func() time.Time
}

type Option func(*Orchestrator)

func WithAmountPolicy(p *AmountPolicy) Option { return func(o *Orchestrator) { o.amounts = p } }

func WithPacing(p *Pacing) Option { return func(o *Orchestrator) { o.pacing = p } }

// WithReadRetry bounds balance-read retries. Backoff doubles on rate-limit errors.
func WithReadRetry(attempts int, backoff time.Duration) Option {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.readAttempts = attempts
		}
		if backoff >= 0 {
			o.readBackoff = backoff
		}
	}
}

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func NewOrchestrator(accounts []Account, sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		accounts:     append([]Account(nil), accounts...),
		sink:         sink,
		readAttempts: defaultReadAttempts,
		readBackoff:  defaultReadBackoff,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.amounts == nil {
		o.amounts = NewAmountPolicy(nil)
	}
	if o.pacing == nil {
		o.pacing = DefaultPacing()
	}
	if o.sink == nil {
		o.sink = SinkFunc(func(Event) {})
	}
	return o
}

// Accounts returns the accounts in visiting order.
func (o *Orchestrator) Accounts() []Account { return append([]Account(nil), o.accounts...) }

// Run executes cfg until the loop count is exhausted or state is cancelled. Cancellation
// is observed before each account, between the deposit and withdraw legs, and after each
// account; an operation already submitted is always awaited.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig, state *RunState) (Summary, error) {
	sum := Summary{Started: o.now()}
	if err := cfg.Validate(); err != nil {
		return sum, err
	}
	if len(o.accounts) == 0 {
		return sum, fmt.Errorf("no accounts to run")
	}

	o.emit(SeverityInfo, fmt.Sprintf("Starting swap: Mode=%s, Amount=%s ETH, Loops=%d, Randomize=%v",
		cfg.Mode, chain.FormatEther(cfg.Amount, 6), cfg.Loops, cfg.Randomize), nil)

	stopped := func() bool { return state.Cancelled() || ctx.Err() != nil }

	for loop := 1; loop <= cfg.Loops && !stopped(); loop++ {
		state.setLoop(loop)
		o.emit(SeverityInfo, fmt.Sprintf("Loop %d/%d", loop, cfg.Loops), nil)

		for idx, acct := range o.accounts {
			if stopped() {
				break
			}
			state.setCursor(idx)
			o.visit(ctx, cfg, state, acct, &sum)
			sum.Visits++

			if idx < len(o.accounts)-1 && !state.Sleep(ctx, o.pacing.InterAccountDelay()) {
				break
			}
		}
		sum.Loops = loop

		if loop < cfg.Loops && !stopped() {
			state.Sleep(ctx, o.pacing.InterLoopDelay())
		}
	}

	sum.Cancelled = stopped()
	sum.Finished = o.now()
	counts := fmt.Sprintf("%d confirmed, %d skipped, %d failed", sum.Confirmed, sum.Skipped, sum.Failed)
	final := sum
	ev := Event{Time: sum.Finished, Severity: SeveritySuccess, Summary: &final,
		Message: fmt.Sprintf("Swaps completed: %d loop(s), %s", sum.Loops, counts)}
	if sum.Cancelled {
		ev.Severity = SeverityWarn
		ev.Message = fmt.Sprintf("Swaps stopped at loop %d/%d: %s", sum.Loops, cfg.Loops, counts)
	}
	o.sink.Emit(ev)
	return sum, nil
}

func (o *Orchestrator) visit(ctx context.Context, cfg RunConfig, state *RunState, acct Account, sum *Summary) {
	addr := acct.Address()
	amount := o.amounts.Resolve(cfg.Amount, cfg.Randomize)

	// CheckingNative -> Depositing | SkippedDeposit
	if cfg.Mode.deposits() {
		bal, err := o.read(ctx, acct.NativeBalance)
		switch {
		case err != nil:
			o.finish(sum, Outcome{Kind: Failed, Op: OpDeposit, Account: addr, Amount: amount,
				Err: &OperationError{Op: OpDeposit, Account: addr, Err: fmt.Errorf("read native balance: %w", err)}})
		case bal.Cmp(amount) < 0:
			o.finish(sum, Outcome{Kind: Skipped, Op: OpDeposit, Account: addr, Amount: amount, Reason: ReasonLowBalance})
		default:
			o.execute(ctx, sum, acct, OpDeposit, amount, acct.Deposit)
		}
	}

	if state.Cancelled() {
		return
	}

	// CheckingWrapped -> Withdrawing | SkippedWithdraw
	if cfg.Mode.withdraws() {
		wbal, err := o.read(ctx, acct.WrappedBalance)
		switch {
		case err != nil:
			o.finish(sum, Outcome{Kind: Failed, Op: OpWithdraw, Account: addr,
				Err: &OperationError{Op: OpWithdraw, Account: addr, Err: fmt.Errorf("read wrapped balance: %w", err)}})
		case wbal.Sign() <= 0:
			o.finish(sum, Outcome{Kind: Skipped, Op: OpWithdraw, Account: addr, Amount: wbal, Reason: ReasonNoWrappedBalance})
		default:
			o.execute(ctx, sum, acct, OpWithdraw, wbal, acct.Withdraw)
		}
	}
}

type submitFunc func(ctx context.Context, amount *big.Int, onSubmitted func(common.Hash)) (*types.Receipt, error)

func (o *Orchestrator) execute(ctx context.Context, sum *Summary, acct Account, op Op, amount *big.Int, submit submitFunc) {
	addr := acct.Address()
	var hash common.Hash
	receipt, err := submit(ctx, amount, func(h common.Hash) {
		hash = h
		out := Outcome{Kind: Submitted, Op: op, Account: addr, Amount: amount, TxHash: h}
		o.emit(SeverityInfo, o.describe(out), &out)
	})
	if err != nil {
		o.finish(sum, Outcome{Kind: Failed, Op: op, Account: addr, Amount: amount, TxHash: hash,
			Err: &OperationError{Op: op, Account: addr, Err: err}})
		return
	}
	if receipt != nil {
		hash = receipt.TxHash
	}
	o.finish(sum, Outcome{Kind: Confirmed, Op: op, Account: addr, Amount: amount, TxHash: hash})
}

// finish emits the single terminal line of an operation attempt.
func (o *Orchestrator) finish(sum *Summary, out Outcome) {
	sum.record(out)
	sev := SeveritySuccess
	switch out.Kind {
	case Skipped:
		sev = SeverityWarn
	case Failed:
		sev = SeverityError
	}
	o.emit(sev, o.describe(out), &out)
}

func (o *Orchestrator) describe(out Outcome) string {
	prefix := fmt.Sprintf("[%s] %s", chain.ShortAddress(out.Account), out.Op.Label())
	switch out.Kind {
	case Submitted:
		return fmt.Sprintf("%s TX: %s (%s ETH)", prefix, out.TxHash.Hex(), chain.FormatEther(out.Amount, 6))
	case Confirmed:
		return fmt.Sprintf("%s Confirmed: %s", prefix, chain.ShortHash(out.TxHash))
	case Skipped:
		return fmt.Sprintf("%s Skipped: %s", prefix, out.Reason)
	default:
		return fmt.Sprintf("%s Failed: %s", prefix, chain.FriendlyError(out.Err))
	}
}

func (o *Orchestrator) emit(sev Severity, msg string, out *Outcome) {
	o.sink.Emit(Event{Time: o.now(), Severity: sev, Message: msg, Outcome: out})
}

// read retries a balance read; the backoff doubles on rate-limit errors.
func (o *Orchestrator) read(ctx context.Context, fn func(context.Context) (*big.Int, error)) (*big.Int, error) {
	backoff := o.readBackoff
	var lastErr error
	for attempt := 1; attempt <= o.readAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			if v == nil {
				v = new(big.Int)
			}
			return v, nil
		}
		lastErr = err
		if attempt == o.readAttempts || ctx.Err() != nil {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, lastErr
		case <-t.C:
		}
		if chain.IsRateLimit(err) {
			backoff *= 2
		}
	}
	return nil, lastErr
}
