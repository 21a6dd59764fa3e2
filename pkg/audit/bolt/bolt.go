package bolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/stratosbot/stratos/pkg/audit"
)

const (
	signalBucket = "signals"
	eventBucket  = "events"
)

type Store struct {
	db *bolt.DB
}

func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: couldn't open db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{signalBucket, eventBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("bolt: couldn't create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	s.db.Close()
}

func (s *Store) AppendSignal(r *audit.SignalRecord) error {
	return s.append(signalBucket, key(r.AdmittedAt, r.Fingerprint), r)
}

func (s *Store) AppendEvent(r *audit.EventRecord) error {
	return s.append(eventBucket, key(r.At, r.SignalID), r)
}

func (s *Store) Signals(from, to time.Time) ([]*audit.SignalRecord, error) {
	var records []*audit.SignalRecord
	err := s.scan(signalBucket, from, to, func(v []byte) error {
		var r audit.SignalRecord
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.AdmittedAt.Before(from) || r.AdmittedAt.After(to) {
			return nil
		}
		records = append(records, &r)
		return nil
	})
	return records, err
}

func (s *Store) Events(from, to time.Time) ([]*audit.EventRecord, error) {
	var records []*audit.EventRecord
	err := s.scan(eventBucket, from, to, func(v []byte) error {
		var r audit.EventRecord
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if r.At.Before(from) || r.At.After(to) {
			return nil
		}
		records = append(records, &r)
		return nil
	})
	return records, err
}

func (s *Store) append(bucket string, key []byte, record interface{}) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		byt, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("couldn't encode: %w", err)
		}
		return b.Put(key, byt)
	}); err != nil {
		return fmt.Errorf("bolt: couldn't put %s: %w", key, err)
	}
	return nil
}

func (s *Store) scan(bucket string, from, to time.Time, decode func([]byte) error) error {
	if err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()

		// Keys start with an RFC3339Nano timestamp, so a cursor range scan
		// covers the requested window.
		min := []byte(from.UTC().Format(time.RFC3339Nano))
		max := []byte(to.UTC().Add(time.Second).Format(time.RFC3339Nano))

		for k, v := c.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = c.Next() {
			if err := decode(v); err != nil {
				return fmt.Errorf("couldn't decode: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("bolt: couldn't query: %w", err)
	}
	return nil
}

func key(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s_%s", at.UTC().Format(time.RFC3339Nano), id))
}
