package swap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrRunActive = errors.New("a run is already active")

// RecurInterval is the pause between repetitions of a recurring run.
const RecurInterval = 24 * time.Hour

// Controller owns the single active run of the process.
type Controller struct {
	orch  *Orchestrator
	sink  Sink
	recur time.Duration

	mu     sync.Mutex
	active *RunHandle
}

func NewController(orch *Orchestrator, sink Sink) *Controller {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	return &Controller{orch: orch, sink: sink, recur: RecurInterval}
}

// SetRecurInterval overrides the 24h pause; used by tests and short-cycle setups.
func (c *Controller) SetRecurInterval(d time.Duration) { c.recur = d }

// RunHandle identifies one started run.
type RunHandle struct {
	id     uuid.UUID
	cfg    RunConfig
	state  *RunState
	done   chan struct{}
	cycles int

	summary Summary
	err     error
}

func (h *RunHandle) ID() uuid.UUID { return h.id }

// Config returns the snapshot the run was started with.
func (h *RunHandle) Config() RunConfig { return h.cfg.Clone() }

func (h *RunHandle) Loop() int { return h.state.Loop() }

func (h *RunHandle) Cancelled() bool { return h.state.Cancelled() }

func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run ends and returns the summary of its last cycle.
func (h *RunHandle) Wait() (Summary, error) {
	<-h.done
	return h.summary, h.err
}

// Start snapshots cfg and launches the run in its own goroutine.
func (c *Controller) Start(ctx context.Context, cfg RunConfig) (*RunHandle, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return nil, ErrRunActive
	}
	h := &RunHandle{
		id:    uuid.New(),
		cfg:   cfg,
		state: NewRunState(),
		done:  make(chan struct{}),
	}
	c.active = h
	go c.run(ctx, h)
	return h, nil
}

func (c *Controller) run(ctx context.Context, h *RunHandle) {
	defer func() {
		c.mu.Lock()
		if c.active == h {
			c.active = nil
		}
		c.mu.Unlock()
		close(h.done)
	}()

	for {
		h.cycles++
		sum, err := c.orch.Run(ctx, h.cfg, h.state)
		h.summary, h.err = sum, err
		if err != nil || !h.cfg.Recurring || h.state.Cancelled() || ctx.Err() != nil {
			return
		}
		next := time.Now().Add(c.recur)
		c.sink.Emit(Event{Time: time.Now(), Severity: SeverityInfo,
			Message: fmt.Sprintf("Cycle %d finished. Next run at %s", h.cycles, next.Format("2006-01-02 15:04:05"))})
		if !h.state.Sleep(ctx, c.recur) {
			return
		}
	}
}

// RequestCancel sets the run's cancellation flag. It never interrupts an in-flight
// network call and is a no-op on a finished or already cancelled run.
func (c *Controller) RequestCancel(h *RunHandle) {
	if h == nil || !c.IsRunning(h) {
		return
	}
	if h.state.Cancel() {
		c.sink.Emit(Event{Time: time.Now(), Severity: SeverityWarn, Message: "Stopping current swaps..."})
	}
}

func (c *Controller) IsRunning(h *RunHandle) bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Active returns the running handle, if any.
func (c *Controller) Active() *RunHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
