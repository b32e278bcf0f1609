package engine

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/satindergrewal/liteshow/internal/stream"
	"github.com/satindergrewal/liteshow/internal/transport"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("engine loop stopped")

// DefaultMaxStep is the clamp used when NewLoop is given none.
const DefaultMaxStep = 50 * time.Millisecond

// Loop runs the engine at a fixed tick rate on a single goroutine.
// Everything that touches the engine goes through Do, between ticks.
type Loop struct {
	engine  *Engine
	clock   transport.Clock
	period  time.Duration
	maxStep time.Duration
	out     *stream.Broadcaster[Snapshot]

	cmds    chan func(*Engine)
	stopped chan struct{}
	latest  atomic.Pointer[Snapshot]
}

// NewLoop ticks e rate times per second. Elapsed time between ticks is
// measured on clock and clamped to maxStep. Every snapshot is published on out.
func NewLoop(e *Engine, clock transport.Clock, rate int, maxStep time.Duration, out *stream.Broadcaster[Snapshot]) *Loop {
	if rate <= 0 {
		rate = 60
	}
	if maxStep <= 0 {
		maxStep = DefaultMaxStep
	}
	l := &Loop{
		engine:  e,
		clock:   clock,
		period:  time.Second / time.Duration(rate),
		maxStep: maxStep,
		out:     out,
		cmds:    make(chan func(*Engine), 64),
		stopped: make(chan struct{}),
	}
	first := e.Last()
	l.latest.Store(&first)
	return l
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	log.Printf("Engine loop running at %v per tick", l.period)
	last := l.clock.Now()
	for {
		select {
		case <-ctx.Done():
			log.Println("Engine loop stopped")
			return
		case fn := <-l.cmds:
			fn(l.engine)
		case <-ticker.C:
			now := l.clock.Now()
			l.step(now - last)
			last = now
		}
	}
}

func (l *Loop) step(elapsed time.Duration) {
	if elapsed > l.maxStep {
		elapsed = l.maxStep
	}
	s := l.engine.Tick(elapsed.Seconds())
	l.latest.Store(&s)
	if l.out != nil {
		l.out.Publish(s)
	}
}

// Do runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func(*Engine)) error {
	done := make(chan struct{})
	cmd := func(e *Engine) {
		defer close(done)
		fn(e)
	}
	select {
	case l.cmds <- cmd:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the most recently published snapshot. Safe from any goroutine.
func (l *Loop) Latest() Snapshot {
	return *l.latest.Load()
}
