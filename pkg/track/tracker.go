package track

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stratosbot/stratos/pkg/price"
	"github.com/stratosbot/stratos/pkg/signal"
)

// Tracker owns one position and the polling task that drives it. It is the
// single writer of the position's state; other goroutines read via Snapshot.
type Tracker struct {
	cfg         Config
	source      price.Source
	log         func(v ...interface{})
	notify      func(Event)
	trailFactor decimal.Decimal

	lock sync.Mutex
	pos  Position

	cancel chan struct{}
	once   sync.Once
	done   chan struct{}
}

func newTracker(sig *signal.Signal, initialPrice decimal.Decimal, source price.Source, cfg Config, log func(v ...interface{}), notify func(Event)) *Tracker {
	return &Tracker{
		cfg:         cfg,
		source:      source,
		log:         log,
		notify:      notify,
		trailFactor: decimal.NewFromFloat(1 - cfg.TrailingPct),
		pos: Position{
			SignalID:      sig.Fingerprint,
			TokenID:       sig.TokenID,
			EntryPrice:    initialPrice,
			HighWaterMark: initialPrice,
			LastPrice:     initialPrice,
			StopPrice:     initialPrice.Mul(decimal.NewFromFloat(1 - cfg.InitialStopPct)),
			Status:        StatusActive,
			StartTime:     time.Now().UTC(),
		},
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Snapshot returns a copy of the current position state. It never blocks the
// polling task beyond a field copy.
func (t *Tracker) Snapshot() Position {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.pos
}

// Cancel requests a transition to CANCELLED. It is idempotent and safe to
// call concurrently with an in-flight poll; the task observes it at its next
// scheduling point.
func (t *Tracker) Cancel() {
	t.once.Do(func() { close(t.cancel) })
}

// Done is closed once the polling task has released the position.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)
	timer := time.NewTimer(t.pollWait())
	defer timer.Stop()
	var failures int
	for {
		select {
		case <-ctx.Done():
			snap := t.finish(StatusCancelled)
			t.notify(Event{Type: EventCancelled, Position: snap})
			return
		case <-t.cancel:
			snap := t.finish(StatusCancelled)
			t.notify(Event{Type: EventCancelled, Position: snap})
			t.log(fmt.Sprintf("track: %s cancelled", t.pos.SignalID))
			return
		case <-timer.C:
		}

		fctx, cancel := context.WithTimeout(ctx, t.cfg.FetchTimeout)
		p, err := t.source.Price(fctx, t.pos.TokenID)
		cancel()
		if err != nil {
			failures++
			t.setFailures(failures)
			t.log(fmt.Errorf("track: couldn't fetch price for %s (%d/%d): %w", t.pos.TokenID, failures, t.cfg.FailureThreshold, err))
			if failures >= t.cfg.FailureThreshold {
				snap := t.finish(StatusStale)
				t.notify(Event{Type: EventStale, Position: snap})
				return
			}
			timer.Reset(t.backoffWait(failures))
			continue
		}
		failures = 0

		triggered, raised, snap := t.evaluate(p)
		if raised {
			t.notify(Event{Type: EventStopRaised, Position: snap, Price: p})
		}
		if triggered {
			t.notify(Event{Type: EventTriggered, Position: snap, Price: p})
			return
		}
		timer.Reset(t.pollWait())
	}
}

// evaluate applies one successful price sample: ratchet the high-water mark
// and stop price, then check the trigger condition. The stop only ever moves
// up; a dip never lowers it.
func (t *Tracker) evaluate(p decimal.Decimal) (triggered, raised bool, snap Position) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.pos.LastPrice = p
	t.pos.ConsecutiveFailures = 0
	if p.GreaterThan(t.pos.HighWaterMark) {
		t.pos.HighWaterMark = p
		candidate := p.Mul(t.trailFactor)
		if candidate.GreaterThan(t.pos.StopPrice) {
			t.pos.StopPrice = candidate
			raised = true
		}
	}
	if p.LessThanOrEqual(t.pos.StopPrice) {
		t.pos.Status = StatusTriggered
		t.pos.ExitPrice = p
		t.pos.EndTime = time.Now().UTC()
		triggered = true
	}
	return triggered, raised, t.pos
}

func (t *Tracker) setFailures(n int) {
	t.lock.Lock()
	t.pos.ConsecutiveFailures = n
	t.lock.Unlock()
}

// finish moves the position to a terminal state unless one was already
// reached. Terminal transitions are monotone.
func (t *Tracker) finish(status Status) Position {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.pos.Status == StatusActive {
		t.pos.Status = status
		t.pos.EndTime = time.Now().UTC()
	}
	return t.pos
}

func (t *Tracker) pollWait() time.Duration {
	wait := t.cfg.PollInterval
	if t.cfg.Jitter > 0 {
		wait += time.Duration(rand.Int63n(int64(t.cfg.Jitter)))
	}
	return wait
}

// backoffWait doubles the poll interval per consecutive failure, capped at
// eight intervals.
func (t *Tracker) backoffWait(failures int) time.Duration {
	wait := t.cfg.PollInterval
	for i := 1; i < failures; i++ {
		wait *= 2
		if wait >= 8*t.cfg.PollInterval {
			return 8 * t.cfg.PollInterval
		}
	}
	return wait
}
