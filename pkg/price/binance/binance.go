package binance

import (
	"context"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stratosbot/stratos/pkg/price"
)

var zero = decimal.Decimal{}

type source struct {
	client *binance.Client
	quote  string
}

// New creates a price source backed by binance spot tickers. Tokens are
// resolved as symbols against the given quote currency.
func New(quote string) price.Source {
	cli := binance.NewClient("", "")
	cli.NewSetServerTimeService().Do(context.Background())
	return &source{
		client: cli,
		quote:  quote,
	}
}

func (s *source) Price(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	symbol := fmt.Sprintf("%s%s", strings.ToUpper(tokenID), s.quote)
	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return zero, fmt.Errorf("binance: couldn't get price for %s: %w", symbol, err)
	}
	for _, p := range prices {
		if p.Symbol != symbol {
			continue
		}
		d, err := decimal.NewFromString(p.Price)
		if err != nil {
			return zero, fmt.Errorf("binance: couldn't parse price %s: %w", p.Price, err)
		}
		return d, nil
	}
	return zero, fmt.Errorf("binance: %s: %w", symbol, price.ErrNotFound)
}
