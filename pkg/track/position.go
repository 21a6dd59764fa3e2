package track

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusTriggered Status = "TRIGGERED"
	StatusCancelled Status = "CANCELLED"
	StatusStale     Status = "STALE"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Position is the trailing-stop state for one admitted signal. Values
// returned by Snapshot and carried by events are copies; only the position's
// own polling task mutates the live state.
type Position struct {
	SignalID            string
	TokenID             string
	EntryPrice          decimal.Decimal
	HighWaterMark       decimal.Decimal
	StopPrice           decimal.Decimal
	LastPrice           decimal.Decimal
	ExitPrice           decimal.Decimal
	Status              Status
	StartTime           time.Time
	EndTime             time.Time
	ConsecutiveFailures int
}

// Elapsed is the tracking duration so far, or the total duration once the
// position reached a terminal state.
func (p Position) Elapsed() time.Duration {
	if p.EndTime.IsZero() {
		return time.Since(p.StartTime)
	}
	return p.EndTime.Sub(p.StartTime)
}

type EventType string

const (
	// EventStopRaised fires when the trailing stop ratchets up.
	EventStopRaised EventType = "stop_raised"
	// EventTriggered fires when a sample crosses the stop price.
	EventTriggered EventType = "triggered"
	// EventStale fires when tracking is lost after repeated fetch failures.
	EventStale EventType = "stale"
	// EventCancelled fires when an operator or shutdown cancels tracking.
	// It feeds the audit log only; no outbound notice is sent.
	EventCancelled EventType = "cancelled"
)

type Event struct {
	Type     EventType
	Position Position
	// Price is the sample that caused the event. Zero for stale events.
	Price decimal.Decimal
}

// Config holds per-position tracking parameters, validated at startup.
type Config struct {
	InitialStopPct   float64
	TrailingPct      float64
	PollInterval     time.Duration
	FetchTimeout     time.Duration
	FailureThreshold int
	Jitter           time.Duration
}
