package dedup

import (
	"sync"
	"time"
)

// Index is a time-windowed record of relayed signal fingerprints. It answers
// "seen before?" and records new fingerprints in a single atomic step, so two
// near-simultaneous messages with the same fingerprint can't both be admitted.
type Index struct {
	window  time.Duration
	lock    sync.Mutex
	entries map[string]time.Time
}

func New(window time.Duration) *Index {
	return &Index{
		window:  window,
		entries: make(map[string]time.Time),
	}
}

// Admit checks membership and, if the fingerprint is absent or expired,
// records it and returns true. Otherwise it returns false without mutation.
func (i *Index) Admit(fingerprint string, now time.Time) bool {
	i.lock.Lock()
	defer i.lock.Unlock()
	i.purge(now)
	if at, ok := i.entries[fingerprint]; ok && now.Sub(at) < i.window {
		return false
	}
	i.entries[fingerprint] = now
	return true
}

func (i *Index) Len() int {
	i.lock.Lock()
	defer i.lock.Unlock()
	return len(i.entries)
}

// purge drops expired entries so the index is bounded by the retention
// window, not by uptime. Called with the lock held.
func (i *Index) purge(now time.Time) {
	for fp, at := range i.entries {
		if now.Sub(at) >= i.window {
			delete(i.entries, fp)
		}
	}
}
