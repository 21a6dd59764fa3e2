package simulated

import (
	"context"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stratosbot/stratos/pkg/price"
)

type source struct {
	lock  sync.Mutex
	rand  *rand.Rand
	last  map[string]decimal.Decimal
	start decimal.Decimal
}

// New creates a random-walk price source for dry runs. The first sample for
// any token is start; later samples drift up 70% of the time and down 30%.
func New(start decimal.Decimal, seed int64) price.Source {
	return &source{
		rand:  rand.New(rand.NewSource(seed)),
		last:  make(map[string]decimal.Decimal),
		start: start,
	}
}

func (s *source) Price(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	last, ok := s.last[tokenID]
	if !ok {
		s.last[tokenID] = s.start
		return s.start, nil
	}
	var change float64
	if s.rand.Float64() < 0.7 {
		change = s.rand.Float64()*0.049 + 0.001
	} else {
		change = -(s.rand.Float64()*0.029 + 0.001)
	}
	next := last.Mul(decimal.NewFromFloat(1 + change))
	s.last[tokenID] = next
	return next, nil
}
