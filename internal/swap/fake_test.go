package swap

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var errRPCDown = errors.New("dial tcp 10.0.0.1:8545: connection refused")

// fakeAccount is an in-memory wallet that mines every transaction immediately.
type fakeAccount struct {
	addr common.Address
	log  *callLog

	mu      sync.Mutex
	native  *big.Int
	wrapped *big.Int
	nonce   uint64

	nativeErr  error
	wrappedErr error
	depositErr error
	// beforeConfirm runs after submission and before the receipt is returned.
	beforeConfirm func()
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func eth(f float64) *big.Int {
	v, _ := new(big.Float).Mul(big.NewFloat(f), big.NewFloat(1e18)).Int(nil)
	return v
}

func newFake(b byte, log *callLog, native, wrapped *big.Int) *fakeAccount {
	return &fakeAccount{
		addr:    common.BytesToAddress([]byte{b}),
		log:     log,
		native:  new(big.Int).Set(native),
		wrapped: new(big.Int).Set(wrapped),
	}
}

func (f *fakeAccount) tag() string { return f.addr.Hex()[38:] }

func (f *fakeAccount) Address() common.Address { return f.addr }

func (f *fakeAccount) NativeBalance(context.Context) (*big.Int, error) {
	f.log.add(f.tag() + ":native")
	if f.nativeErr != nil {
		return nil, f.nativeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.native), nil
}

func (f *fakeAccount) WrappedBalance(context.Context) (*big.Int, error) {
	f.log.add(f.tag() + ":wrapped")
	if f.wrappedErr != nil {
		return nil, f.wrappedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.wrapped), nil
}

func (f *fakeAccount) Deposit(_ context.Context, amount *big.Int, onSubmitted func(common.Hash)) (*types.Receipt, error) {
	f.log.add(f.tag() + ":deposit")
	if f.depositErr != nil {
		return nil, f.depositErr
	}
	h := f.submit(onSubmitted)
	f.mu.Lock()
	f.native.Sub(f.native, amount)
	f.wrapped.Add(f.wrapped, amount)
	f.mu.Unlock()
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: h}, nil
}

func (f *fakeAccount) Withdraw(_ context.Context, amount *big.Int, onSubmitted func(common.Hash)) (*types.Receipt, error) {
	f.log.add(f.tag() + ":withdraw")
	h := f.submit(onSubmitted)
	f.mu.Lock()
	f.wrapped.Sub(f.wrapped, amount)
	f.native.Add(f.native, amount)
	f.mu.Unlock()
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: h}, nil
}

func (f *fakeAccount) submit(onSubmitted func(common.Hash)) common.Hash {
	f.mu.Lock()
	f.nonce++
	h := common.BigToHash(new(big.Int).SetUint64(uint64(f.addr[19])<<32 | f.nonce))
	f.mu.Unlock()
	if onSubmitted != nil {
		onSubmitted(h)
	}
	if f.beforeConfirm != nil {
		f.beforeConfirm()
	}
	return h
}

func (f *fakeAccount) balances() (native, wrapped *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.native), new(big.Int).Set(f.wrapped)
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) outcomes() []Outcome {
	var out []Outcome
	for _, ev := range r.all() {
		if ev.Outcome != nil {
			out = append(out, *ev.Outcome)
		}
	}
	return out
}

func (r *recorder) terminal() []Outcome {
	var out []Outcome
	for _, o := range r.outcomes() {
		if o.Kind.Terminal() {
			out = append(out, o)
		}
	}
	return out
}

func (r *recorder) messages() []string {
	var out []string
	for _, ev := range r.all() {
		out = append(out, ev.Message)
	}
	return out
}

func instant(accounts []Account, sink Sink) *Orchestrator {
	return NewOrchestrator(accounts, sink,
		WithPacing(NewPacing(Fixed(0), Fixed(0), nil)),
		WithReadRetry(2, 0),
	)
}

func waitDone(t *testing.T, h *RunHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}
