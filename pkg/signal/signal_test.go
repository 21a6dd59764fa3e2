package signal

import (
	"testing"
	"time"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
		ok   bool
	}{
		{
			name: "buy call with contract address",
			msg: `🚀 APE NOW 🚀
Contract: 0x7a250d5630b4cf539739df2c5dacb4c659f2488d
SL -30%
TP: 20%, 40%, 100%`,
			want: "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
			ok:   true,
		},
		{
			name: "base58 address with entry keyword",
			msg:  "entry now: 7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj",
			want: "7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj",
			ok:   true,
		},
		{
			name: "address without any signal keyword",
			msg:  "0x7a250d5630b4cf539739df2c5dacb4c659f2488d is a router",
			ok:   false,
		},
		{
			name: "keywords without address",
			msg:  "buy the dip, stop loss at 30%",
			ok:   false,
		},
		{
			name: "empty message",
			msg:  "",
			ok:   false,
		},
	}

	ex, err := NewExtractor()
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ex.Extract(tt.msg)
			if ok != tt.ok {
				t.Fatalf("got ok %t, want %t", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got: %s, want: %s", got, tt.want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	now := time.Now()
	a := New("0xabc", 100, now, "buy 0xabc")
	b := New("0xabc", 100, now.Add(time.Minute), "ape 0xabc again")
	if a.Fingerprint != b.Fingerprint {
		t.Errorf("same token and channel must share a fingerprint: %s vs %s", a.Fingerprint, b.Fingerprint)
	}
	c := New("0xabc", 200, now, "buy 0xabc")
	if a.Fingerprint == c.Fingerprint {
		t.Errorf("different channels must not share a fingerprint: %s", a.Fingerprint)
	}
}
