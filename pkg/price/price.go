package price

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Source supplies a best-effort current price for a token identifier.
// Implementations may be slow or unreliable; callers bound every call
// with a timeout.
type Source interface {
	Price(ctx context.Context, tokenID string) (decimal.Decimal, error)
}

var ErrNotFound = errors.New("price: not found")
