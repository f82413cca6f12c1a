package service

import (
	"errors"
	"strings"
)

var (
	ErrTextRequired     = errors.New("text is required")
	ErrSimulatedFailure = errors.New("simulated failure")
	ErrUnexpectedStatus = errors.New("unexpected persistence api status")
)

// Error-simulation markers. A text containing one forces the failure path of that hop.
// The publisher and persistence markers match case-sensitively, the consumer marker ignores case.
const (
	PublisherFailureMarker   = "node error"
	ConsumerSkipMarker       = ".net error"
	PersistenceFailureMarker = "go error"
)

func containsMarker(text, marker string) bool {
	return strings.Contains(text, marker)
}

func containsMarkerFold(text, marker string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(marker))
}
