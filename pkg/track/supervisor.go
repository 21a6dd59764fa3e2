package track

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stratosbot/stratos/pkg/price"
	"github.com/stratosbot/stratos/pkg/signal"
)

var ErrDuplicateTracking = errors.New("track: position already tracked")

// Supervisor owns the set of tracked positions. It is the only component
// that creates, cancels and enumerates trackers. Price fetches never happen
// while its lock is held; callers fetch the initial price before Start.
type Supervisor struct {
	cfg    Config
	source price.Source
	log    func(v ...interface{})
	notify func(Event)

	lock   sync.Mutex
	active map[string]*Tracker
	stale  map[string]Position
	wg     sync.WaitGroup
}

func NewSupervisor(source price.Source, cfg Config, log func(v ...interface{}), notify func(Event)) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		source: source,
		log:    log,
		notify: notify,
		active: make(map[string]*Tracker),
		stale:  make(map[string]Position),
	}
}

// Start creates a position from the signal and the price observed at
// admission and launches its polling task. A second Start for a signal with
// a non-terminal position is rejected with ErrDuplicateTracking.
func (s *Supervisor) Start(ctx context.Context, sig *signal.Signal, initialPrice decimal.Decimal) (*Tracker, error) {
	t := newTracker(sig, initialPrice, s.source, s.cfg, s.log, s.notify)
	s.lock.Lock()
	if _, ok := s.active[sig.Fingerprint]; ok {
		s.lock.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTracking, sig.Fingerprint)
	}
	s.active[sig.Fingerprint] = t
	s.wg.Add(1)
	s.lock.Unlock()

	go func() {
		defer s.wg.Done()
		t.run(ctx)
		snap := t.Snapshot()
		s.lock.Lock()
		delete(s.active, sig.Fingerprint)
		if snap.Status == StatusStale {
			// Stale positions are kept for operator visibility.
			s.stale[snap.SignalID] = snap
		}
		s.lock.Unlock()
	}()
	return t, nil
}

// Cancel requests cancellation of a tracked position. Cancelling an unknown
// or already-terminal position is a no-op.
func (s *Supervisor) Cancel(signalID string) bool {
	s.lock.Lock()
	t, ok := s.active[signalID]
	s.lock.Unlock()
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// ListActive returns snapshots of the tracked positions ordered by start
// time. Snapshotting doesn't block the polling tasks.
func (s *Supervisor) ListActive() []Position {
	s.lock.Lock()
	trackers := make([]*Tracker, 0, len(s.active))
	for _, t := range s.active {
		trackers = append(trackers, t)
	}
	s.lock.Unlock()

	snaps := make([]Position, 0, len(trackers))
	for _, t := range trackers {
		snaps = append(snaps, t.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartTime.Before(snaps[j].StartTime)
	})
	return snaps
}

// ListStale returns the terminal positions whose price feed was lost.
func (s *Supervisor) ListStale() []Position {
	s.lock.Lock()
	defer s.lock.Unlock()
	snaps := make([]Position, 0, len(s.stale))
	for _, p := range s.stale {
		snaps = append(snaps, p)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartTime.Before(snaps[j].StartTime)
	})
	return snaps
}

// Close cancels every active position and waits for the polling tasks to
// release, up to the grace period. Safe to call more than once.
func (s *Supervisor) Close(grace time.Duration) {
	s.lock.Lock()
	for _, t := range s.active {
		t.Cancel()
	}
	s.lock.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		s.log("track: grace period elapsed with polling tasks still running")
	}
}
