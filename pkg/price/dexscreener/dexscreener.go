package dexscreener

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stratosbot/stratos/pkg/price"
)

var zero = decimal.Decimal{}

type source struct {
	client *resty.Client
}

type response struct {
	Pairs []struct {
		PriceUSD string `json:"priceUsd"`
	} `json:"pairs"`
}

// New creates a price source backed by the dexscreener token endpoint.
// An empty baseURL uses the public API.
func New(baseURL string) price.Source {
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com"
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")
	return &source{client: client}
}

func (s *source) Price(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	var out response
	res, err := s.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetPathParam("token", tokenID).
		Get("/latest/dex/tokens/{token}")
	if err != nil {
		return zero, fmt.Errorf("dexscreener: couldn't get price for %s: %w", tokenID, err)
	}
	if res.IsError() {
		return zero, fmt.Errorf("dexscreener: unexpected status %s for %s", res.Status(), tokenID)
	}
	if len(out.Pairs) == 0 {
		return zero, fmt.Errorf("dexscreener: %s: %w", tokenID, price.ErrNotFound)
	}
	d, err := decimal.NewFromString(out.Pairs[0].PriceUSD)
	if err != nil {
		return zero, fmt.Errorf("dexscreener: couldn't parse price %s: %w", out.Pairs[0].PriceUSD, err)
	}
	return d, nil
}
