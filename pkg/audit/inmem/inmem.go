package inmem

import (
	"sort"
	"sync"
	"time"

	"github.com/stratosbot/stratos/pkg/audit"
)

// Store keeps audit records in memory. Used for tests and dry runs.
type Store struct {
	lock    sync.Mutex
	signals []*audit.SignalRecord
	events  []*audit.EventRecord
}

func New() *Store {
	return &Store{}
}

func (s *Store) AppendSignal(r *audit.SignalRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	c := *r
	s.signals = append(s.signals, &c)
	return nil
}

func (s *Store) AppendEvent(r *audit.EventRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	c := *r
	s.events = append(s.events, &c)
	return nil
}

func (s *Store) Signals(from, to time.Time) ([]*audit.SignalRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	var records []*audit.SignalRecord
	for _, r := range s.signals {
		if r.AdmittedAt.Before(from) || r.AdmittedAt.After(to) {
			continue
		}
		c := *r
		records = append(records, &c)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AdmittedAt.Before(records[j].AdmittedAt)
	})
	return records, nil
}

func (s *Store) Events(from, to time.Time) ([]*audit.EventRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	var records []*audit.EventRecord
	for _, r := range s.events {
		if r.At.Before(from) || r.At.After(to) {
			continue
		}
		c := *r
		records = append(records, &c)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].At.Before(records[j].At)
	})
	return records, nil
}
