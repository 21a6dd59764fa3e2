package dexscreener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/tokens/0xabc" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[{"priceUsd":"0.000123"}]}`))
	}))
	defer srv.Close()

	s := New(srv.URL)
	got, err := s.Price(context.Background(), "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	want := decimal.NewFromFloat(0.000123)
	if !got.Equal(want) {
		t.Errorf("got: %s, want: %s", got, want)
	}
}

func TestPriceNoPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer srv.Close()

	s := New(srv.URL)
	if _, err := s.Price(context.Background(), "0xabc"); err == nil {
		t.Error("expected error for token with no pairs")
	}
}

func TestPriceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := New(srv.URL)
	if _, err := s.Price(context.Background(), "0xabc"); err == nil {
		t.Error("expected error for non-2xx status")
	}
}
