package dispatch

import (
	"errors"
	"fmt"
)

// ErrUnknownStrategy rejects intents naming a strategy no provider serves.
// Raised before any provider is invoked or any record written.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ValidationError covers malformed input rejected before any network or
// ledger effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ComplianceError rejects a destination whose risk score exceeds the
// configured threshold without an explicit override. Raised before the
// ledger record is created.
type ComplianceError struct {
	Score     int
	Threshold int
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("destination risk score %d exceeds threshold %d", e.Score, e.Threshold)
}
