package track

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stratosbot/stratos/pkg/signal"
)

func testConfig() Config {
	return Config{
		InitialStopPct:   0.10,
		TrailingPct:      0.05,
		PollInterval:     2 * time.Millisecond,
		FetchTimeout:     time.Second,
		FailureThreshold: 3,
	}
}

func testSignal() *signal.Signal {
	return signal.New("0xdeadbeef", 100, time.Now(), "buy 0xdeadbeef")
}

// scriptSource replays a fixed sequence of samples. Once exhausted it keeps
// returning the last step.
type scriptSource struct {
	lock  sync.Mutex
	steps []scriptStep
	i     int
}

type scriptStep struct {
	price decimal.Decimal
	err   error
}

func prices(values ...float64) []scriptStep {
	var steps []scriptStep
	for _, v := range values {
		steps = append(steps, scriptStep{price: decimal.NewFromFloat(v)})
	}
	return steps
}

func (s *scriptSource) Price(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	step := s.steps[s.i]
	if s.i < len(s.steps)-1 {
		s.i++
	}
	return step.price, step.err
}

type eventRecorder struct {
	lock   sync.Mutex
	events []Event
}

func (r *eventRecorder) notify(e Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Event(nil), r.events...)
}

func discard(v ...interface{}) {}

func waitDone(t *testing.T, tr *Tracker) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("tracker didn't finish in time")
	}
}

func TestTrailingStopScenario(t *testing.T) {
	// Entry 100, initial stop 90, trail 5%. The 110 and 130 samples ratchet
	// the stop to 104.5 and 123.5; the dip to 120 crosses 123.5 and exits
	// there.
	src := &scriptSource{steps: prices(110, 130, 120)}
	rec := &eventRecorder{}
	tr := newTracker(testSignal(), decimal.NewFromFloat(100), src, testConfig(), discard, rec.notify)

	go tr.run(context.Background())
	waitDone(t, tr)

	pos := tr.Snapshot()
	if pos.Status != StatusTriggered {
		t.Fatalf("got status %s, want %s", pos.Status, StatusTriggered)
	}
	if want := decimal.NewFromFloat(120); !pos.ExitPrice.Equal(want) {
		t.Errorf("got exit price %s, want %s", pos.ExitPrice, want)
	}
	if want := decimal.NewFromFloat(130); !pos.HighWaterMark.Equal(want) {
		t.Errorf("got high-water mark %s, want %s", pos.HighWaterMark, want)
	}
	if want := decimal.NewFromFloat(123.5); !pos.StopPrice.Equal(want) {
		t.Errorf("got stop price %s, want %s", pos.StopPrice, want)
	}

	var raises []decimal.Decimal
	var triggers int
	for _, e := range rec.all() {
		switch e.Type {
		case EventStopRaised:
			raises = append(raises, e.Position.StopPrice)
		case EventTriggered:
			triggers++
		}
	}
	wantRaises := []decimal.Decimal{decimal.NewFromFloat(104.5), decimal.NewFromFloat(123.5)}
	if len(raises) != len(wantRaises) {
		t.Fatalf("got %d stop raises, want %d", len(raises), len(wantRaises))
	}
	for i := range raises {
		if !raises[i].Equal(wantRaises[i]) {
			t.Errorf("raise %d: got %s, want %s", i, raises[i], wantRaises[i])
		}
	}
	if triggers != 1 {
		t.Errorf("got %d trigger events, want 1", triggers)
	}
}

func TestRatchetNeverLowersStop(t *testing.T) {
	// All samples stay above the stop, so the tracker never triggers.
	src := &scriptSource{steps: prices(105, 103, 110, 108, 120, 118, 121, 119)}
	rec := &eventRecorder{}
	tr := newTracker(testSignal(), decimal.NewFromFloat(100), src, testConfig(), discard, rec.notify)

	go tr.run(context.Background())
	time.Sleep(50 * time.Millisecond)
	tr.Cancel()
	waitDone(t, tr)

	prev := decimal.NewFromFloat(90)
	for i, e := range rec.all() {
		if e.Type == EventTriggered {
			t.Fatal("position must not trigger while samples stay above the stop")
		}
		if e.Position.StopPrice.LessThan(prev) {
			t.Errorf("event %d: stop price decreased from %s to %s", i, prev, e.Position.StopPrice)
		}
		prev = e.Position.StopPrice
	}
	pos := tr.Snapshot()
	if pos.Status != StatusCancelled {
		t.Errorf("got status %s, want %s", pos.Status, StatusCancelled)
	}
	if pos.HighWaterMark.LessThan(pos.EntryPrice) {
		t.Errorf("high-water mark %s below entry price %s", pos.HighWaterMark, pos.EntryPrice)
	}
}

func TestImmediateTrigger(t *testing.T) {
	src := &scriptSource{steps: prices(80)}
	rec := &eventRecorder{}
	tr := newTracker(testSignal(), decimal.NewFromFloat(100), src, testConfig(), discard, rec.notify)

	go tr.run(context.Background())
	waitDone(t, tr)

	pos := tr.Snapshot()
	if pos.Status != StatusTriggered {
		t.Fatalf("got status %s, want %s", pos.Status, StatusTriggered)
	}
	if want := decimal.NewFromFloat(80); !pos.ExitPrice.Equal(want) {
		t.Errorf("got exit price %s, want %s", pos.ExitPrice, want)
	}
	if want := decimal.NewFromFloat(90); !pos.StopPrice.Equal(want) {
		t.Errorf("got stop price %s, want %s", pos.StopPrice, want)
	}
}

func TestStaleAfterConsecutiveFailures(t *testing.T) {
	src := &scriptSource{steps: []scriptStep{{err: errors.New("feed down")}}}
	rec := &eventRecorder{}
	tr := newTracker(testSignal(), decimal.NewFromFloat(100), src, testConfig(), discard, rec.notify)

	go tr.run(context.Background())
	waitDone(t, tr)

	pos := tr.Snapshot()
	if pos.Status != StatusStale {
		t.Fatalf("got status %s, want %s", pos.Status, StatusStale)
	}
	if want := decimal.NewFromFloat(90); !pos.StopPrice.Equal(want) {
		t.Errorf("fetch failures must not touch the stop price: got %s, want %s", pos.StopPrice, want)
	}
	if want := decimal.NewFromFloat(100); !pos.HighWaterMark.Equal(want) {
		t.Errorf("fetch failures must not touch the high-water mark: got %s, want %s", pos.HighWaterMark, want)
	}
	if pos.ConsecutiveFailures != 3 {
		t.Errorf("got %d consecutive failures, want 3", pos.ConsecutiveFailures)
	}
	events := rec.all()
	if len(events) != 1 || events[0].Type != EventStale {
		t.Errorf("got events %v, want a single stale event", events)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	feedDown := errors.New("feed down")
	src := &scriptSource{steps: []scriptStep{
		{err: feedDown},
		{err: feedDown},
		{price: decimal.NewFromFloat(100)},
		{err: feedDown},
		{err: feedDown},
		{price: decimal.NewFromFloat(100)},
	}}
	rec := &eventRecorder{}
	tr := newTracker(testSignal(), decimal.NewFromFloat(100), src, testConfig(), discard, rec.notify)

	go tr.run(context.Background())
	time.Sleep(100 * time.Millisecond)
	tr.Cancel()
	waitDone(t, tr)

	pos := tr.Snapshot()
	if pos.Status != StatusCancelled {
		t.Errorf("interleaved failures below the threshold must not go stale: got %s", pos.Status)
	}
	for _, e := range rec.all() {
		if e.Type == EventStale {
			t.Error("stale event emitted despite successful samples resetting the count")
		}
	}
}

func TestCancelStopsWithoutExitEvent(t *testing.T) {
	src := &scriptSource{steps: prices(100)}
	rec := &eventRecorder{}
	tr := newTracker(testSignal(), decimal.NewFromFloat(100), src, testConfig(), discard, rec.notify)

	go tr.run(context.Background())
	tr.Cancel()
	tr.Cancel() // idempotent
	waitDone(t, tr)

	pos := tr.Snapshot()
	if pos.Status != StatusCancelled {
		t.Fatalf("got status %s, want %s", pos.Status, StatusCancelled)
	}
	var cancelled int
	for _, e := range rec.all() {
		switch e.Type {
		case EventTriggered:
			t.Error("cancelled position must not emit an exit event")
		case EventCancelled:
			cancelled++
			if e.Position.EndTime.IsZero() {
				t.Error("cancelled event carries no end time")
			}
		}
	}
	// The terminal transition still reaches the audit log.
	if cancelled != 1 {
		t.Errorf("got %d cancelled events, want 1", cancelled)
	}
}
