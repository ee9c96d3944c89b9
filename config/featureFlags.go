package config

import (
	"os"
	"strings"
)

// SingleRoundingTotals switches the totals engine from the legacy behavior
// (each line rounded at write, aggregates rounded again at write) to a single
// rounding pass at aggregate-write time.
//
// Historical rows were produced with double rounding; leave this off when
// parity with stored aggregates matters.
//
// Set via env:
// - TOTALS_SINGLE_ROUNDING=true
func SingleRoundingTotals() bool {
	return boolFromEnv("TOTALS_SINGLE_ROUNDING")
}

// StrictStatusTransitions rejects status updates that are not in the
// document's transition table instead of writing them through.
//
// Set via env:
// - STRICT_STATUS_TRANSITIONS=false (default true)
func StrictStatusTransitions() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_STATUS_TRANSITIONS")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
