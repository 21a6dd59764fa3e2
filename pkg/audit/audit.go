package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalRecord is written once per admitted signal.
type SignalRecord struct {
	Fingerprint     string
	TokenID         string
	SourceChannelID int64
	EntryPrice      decimal.Decimal
	AdmittedAt      time.Time
}

// EventRecord is written once per terminal position transition.
type EventRecord struct {
	SignalID      string
	TokenID       string
	Status        string
	EntryPrice    decimal.Decimal
	ExitPrice     decimal.Decimal
	StopPrice     decimal.Decimal
	HighWaterMark decimal.Decimal
	At            time.Time
	Elapsed       time.Duration
}

// Store is an append-only log suitable for offline analysis. Records are
// never mutated after being appended.
type Store interface {
	AppendSignal(*SignalRecord) error
	AppendEvent(*EventRecord) error
	Signals(from, to time.Time) ([]*SignalRecord, error)
	Events(from, to time.Time) ([]*EventRecord, error)
}
