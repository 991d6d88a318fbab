package swap

import (
	"errors"
	"math/big"
	"math/rand/v2"
	"sync"
	"time"
)

var ErrNonPositiveAmount = errors.New("swap amount must be positive")

// variance is ±10% expressed in basis points.
const (
	varianceBps = 1_000
	bpsDenom    = 10_000
	drawSteps   = 1_000_000_000
)

// AmountPolicy turns the nominal amount into the amount submitted for one operation.
type AmountPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewAmountPolicy returns a policy drawing from rng; a nil rng seeds from the clock.
func NewAmountPolicy(rng *rand.Rand) *AmountPolicy {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return &AmountPolicy{rng: rng}
}

// Bounds returns the inclusive randomization range [ceil(0.9n), floor(1.1n)].
func Bounds(nominal *big.Int) (lo, hi *big.Int, err error) {
	if nominal == nil || nominal.Sign() <= 0 {
		return nil, nil, ErrNonPositiveAmount
	}
	lo, hi = bounds(nominal)
	return lo, hi, nil
}

// bounds requires nominal > 0; lo never drops below 1 wei.
func bounds(nominal *big.Int) (lo, hi *big.Int) {
	denom := big.NewInt(bpsDenom)
	lo = new(big.Int).Mul(nominal, big.NewInt(bpsDenom-varianceBps))
	lo.Add(lo, big.NewInt(bpsDenom-1))
	lo.Quo(lo, denom)
	hi = new(big.Int).Mul(nominal, big.NewInt(bpsDenom+varianceBps))
	hi.Quo(hi, denom)
	if lo.Sign() <= 0 {
		lo.SetInt64(1)
	}
	return lo, hi
}

// Resolve returns nominal unchanged when randomize is false, otherwise a value drawn
// uniformly from Bounds(nominal). nominal must be positive, which RunConfig.Validate
// guarantees for every run.
func (p *AmountPolicy) Resolve(nominal *big.Int, randomize bool) *big.Int {
	if !randomize {
		return new(big.Int).Set(nominal)
	}
	lo, hi := bounds(nominal)
	span := new(big.Int).Sub(hi, lo)
	if span.Sign() <= 0 {
		return lo
	}

	p.mu.Lock()
	step := p.rng.Int64N(drawSteps + 1)
	p.mu.Unlock()

	off := new(big.Int).Mul(span, big.NewInt(step))
	off.Quo(off, big.NewInt(drawSteps))
	return lo.Add(lo, off)
}
