package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Mode selects which legs of the wrap cycle are attempted.
type Mode string

const (
	ModeToWrapped Mode = "to-wrapped"
	ModeToNative  Mode = "to-native"
	ModeBoth      Mode = "both"
)

var ErrInvalidMode = errors.New("invalid swap mode")

// ParseMode accepts the canonical names and the legacy eth->weth / weth->eth aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "to-wrapped", "wrap", "eth->weth":
		return ModeToWrapped, nil
	case "to-native", "unwrap", "weth->eth":
		return ModeToNative, nil
	case "both", "":
		return ModeBoth, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Next cycles to-wrapped -> to-native -> both -> to-wrapped (menu toggle order).
func (m Mode) Next() Mode {
	switch m {
	case ModeToWrapped:
		return ModeToNative
	case ModeToNative:
		return ModeBoth
	default:
		return ModeToWrapped
	}
}

func (m Mode) deposits() bool  { return m == ModeToWrapped || m == ModeBoth }
func (m Mode) withdraws() bool { return m == ModeToNative || m == ModeBoth }

// RunConfig is the immutable snapshot a run is started with.
type RunConfig struct {
	Mode      Mode
	Amount    *big.Int // nominal amount in wei
	Loops     int
	Randomize bool
	Recurring bool
}

// Clone returns a deep copy so later edits by the caller cannot reach an in-flight run.
func (c RunConfig) Clone() RunConfig {
	out := c
	if c.Amount != nil {
		out.Amount = new(big.Int).Set(c.Amount)
	}
	return out
}

// Validate reports configuration errors that must stop a run before it starts.
func (c RunConfig) Validate() error {
	switch c.Mode {
	case ModeToWrapped, ModeToNative, ModeBoth:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if c.Amount == nil || c.Amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	if c.Loops <= 0 {
		return fmt.Errorf("loop count must be positive, got %d", c.Loops)
	}
	return nil
}

// Op names a single on-chain operation.
type Op string

const (
	OpDeposit  Op = "deposit"
	OpWithdraw Op = "withdraw"
)

// Label is the human direction used in log lines.
func (o Op) Label() string {
	if o == OpDeposit {
		return "ETH->WETH"
	}
	return "WETH->ETH"
}

type OutcomeKind int

const (
	Submitted OutcomeKind = iota
	Confirmed
	Skipped
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Submitted:
		return "submitted"
	case Confirmed:
		return "confirmed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the kind ends an operation attempt.
func (k OutcomeKind) Terminal() bool { return k != Submitted }

// Skip reasons.
const (
	ReasonLowBalance       = "low balance"
	ReasonNoWrappedBalance = "no wrapped balance"
)

// Outcome is produced for every attempted operation.
type Outcome struct {
	Kind    OutcomeKind
	Op      Op
	Account common.Address
	Amount  *big.Int
	TxHash  common.Hash
	Reason  string
	Err     error
}

// OperationError attributes a recovered failure to one account and operation.
type OperationError struct {
	Op      Op
	Account common.Address
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Account.Hex(), e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	}
	return "info"
}

// Event is one line for the presentation layer. Outcome is nil for status lines;
// Summary is set only on the line that ends a run.
type Event struct {
	Time     time.Time
	Severity Severity
	Message  string
	Outcome  *Outcome
	Summary  *Summary
}

// Sink receives events. Implementations must tolerate being called from the run goroutine.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Account is the per-wallet network surface the orchestrator drives.
type Account interface {
	Address() common.Address
	NativeBalance(ctx context.Context) (*big.Int, error)
	WrappedBalance(ctx context.Context) (*big.Int, error)
	Deposit(ctx context.Context, amount *big.Int, onSubmitted func(common.Hash)) (*types.Receipt, error)
	Withdraw(ctx context.Context, amount *big.Int, onSubmitted func(common.Hash)) (*types.Receipt, error)
}

// Summary counts terminal outcomes of one run.
type Summary struct {
	Loops     int
	Visits    int
	Confirmed int
	Skipped   int
	Failed    int
	Cancelled bool
	Started   time.Time
	Finished  time.Time
}

func (s *Summary) record(o Outcome) {
	switch o.Kind {
	case Confirmed:
		s.Confirmed++
	case Skipped:
		s.Skipped++
	case Failed:
		s.Failed++
	}
}
