package signal

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Signal is a candidate trading event extracted from one monitored message.
// All fields are immutable after creation.
type Signal struct {
	Fingerprint     string
	TokenID         string
	SourceChannelID int64
	ReceivedAt      time.Time
	RawText         string
}

func New(tokenID string, sourceChannelID int64, receivedAt time.Time, rawText string) *Signal {
	return &Signal{
		Fingerprint:     Fingerprint(tokenID, sourceChannelID),
		TokenID:         tokenID,
		SourceChannelID: sourceChannelID,
		ReceivedAt:      receivedAt,
		RawText:         rawText,
	}
}

// Fingerprint derives the dedup identifier for a token seen on a channel.
// Two messages carrying the same token from the same channel share it.
func Fingerprint(tokenID string, sourceChannelID int64) string {
	return fmt.Sprintf("%s_%d", tokenID, sourceChannelID)
}

type Extractor interface {
	Extract(text string) (string, bool)
}

// Words commonly present in trading signal messages. A message without any
// of them is treated as chatter even if it contains an address-like string.
var keywords = []string{
	"buy", "sell", "pump", "ape", "degen", "hunt", "sl", "stop loss",
	"target", "entry", "exit", "take profit", "tp", "contract",
}

type extractor struct {
	address *regexp.Regexp
}

func NewExtractor() (Extractor, error) {
	// Contract addresses are long alphanumeric runs (hex or base58).
	address, err := regexp.Compile(`[a-zA-Z0-9]{40,}`)
	if err != nil {
		return nil, fmt.Errorf("signal: couldn't create regex: %w", err)
	}
	return &extractor{address: address}, nil
}

func (e *extractor) Extract(text string) (string, bool) {
	lower := strings.ToLower(text)
	var found bool
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			found = true
			break
		}
	}
	if !found {
		return "", false
	}
	match := e.address.FindString(text)
	if match == "" {
		return "", false
	}
	return match, true
}
