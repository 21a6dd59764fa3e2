package simulated

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFirstSampleIsStart(t *testing.T) {
	start := decimal.NewFromFloat(0.0001)
	s := New(start, 1)
	got, err := s.Price(context.Background(), "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(start) {
		t.Errorf("got: %s, want: %s", got, start)
	}
}

func TestWalkStaysPositive(t *testing.T) {
	s := New(decimal.NewFromFloat(0.0001), 42)
	for i := 0; i < 1000; i++ {
		p, err := s.Price(context.Background(), "0xabc")
		if err != nil {
			t.Fatal(err)
		}
		if !p.IsPositive() {
			t.Fatalf("price went non-positive at step %d: %s", i, p)
		}
	}
}

func TestTokensWalkIndependently(t *testing.T) {
	s := New(decimal.NewFromFloat(1), 7)
	a1, _ := s.Price(context.Background(), "a")
	b1, _ := s.Price(context.Background(), "b")
	if !a1.Equal(b1) {
		t.Fatalf("both tokens must start at the same price: %s vs %s", a1, b1)
	}
	s.Price(context.Background(), "a")
	b2, _ := s.Price(context.Background(), "b")
	if !b2.IsPositive() {
		t.Errorf("token b must keep its own positive walk: %s", b2)
	}
}
