package swap

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Range is a delay window; Min == Max means a fixed delay.
type Range struct {
	Min time.Duration
	Max time.Duration
}

func Fixed(d time.Duration) Range { return Range{Min: d, Max: d} }

func (r Range) Validate() error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("invalid delay range [%s, %s]", r.Min, r.Max)
	}
	return nil
}

// Pacing produces advisory delays between accounts and between loops.
type Pacing struct {
	Account Range
	Loop    Range

	mu  sync.Mutex
	rng *rand.Rand
}

// DefaultPacing waits 1-4s between accounts and 3-6s between loops.
func DefaultPacing() *Pacing {
	return NewPacing(
		Range{Min: time.Second, Max: 4 * time.Second},
		Range{Min: 3 * time.Second, Max: 6 * time.Second},
		nil,
	)
}

func NewPacing(account, loop Range, rng *rand.Rand) *Pacing {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>7|1))
	}
	return &Pacing{Account: account, Loop: loop, rng: rng}
}

func (p *Pacing) InterAccountDelay() time.Duration { return p.draw(p.Account) }

func (p *Pacing) InterLoopDelay() time.Duration { return p.draw(p.Loop) }

func (p *Pacing) draw(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.Min + time.Duration(p.rng.Int64N(int64(r.Max-r.Min)+1))
}
