package settle

import (
	"fmt"
	"strings"
)

// FailureKind classifies a settlement failure by the program's error
// message. Only Unknown (network, timeout, anything unrecognized) is
// ambiguous; the rest are definitive program rejections.
type FailureKind uint8

const (
	Unknown FailureKind = iota
	CommitmentMismatch
	AlreadyFilled
	PriceIncompatible
	InvalidExecutionPrice
)

func (k FailureKind) String() string {
	switch k {
	case CommitmentMismatch:
		return "commitment_mismatch"
	case AlreadyFilled:
		return "already_filled"
	case PriceIncompatible:
		return "price_incompatible"
	case InvalidExecutionPrice:
		return "invalid_execution_price"
	default:
		return "unknown"
	}
}

// SettlementError wraps a failed settlement attempt with its classification.
// The match stays pending; retry policy is the queue's concern.
type SettlementError struct {
	Kind FailureKind
	Err  error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement failed (%s): %v", e.Kind, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }

// Program error strings, verbatim from the on-chain error codes.
var failureMarkers = []struct {
	marker string
	kind   FailureKind
}{
	{"Invalid commitment hash", CommitmentMismatch},
	{"already been filled", AlreadyFilled},
	{"Buy price must be >= sell price", PriceIncompatible},
	{"Execution price must be between", InvalidExecutionPrice},
}

// Classify maps a chain submission error onto the failure taxonomy.
func Classify(err error) *SettlementError {
	msg := err.Error()
	for _, fm := range failureMarkers {
		if strings.Contains(msg, fm.marker) {
			return &SettlementError{Kind: fm.kind, Err: err}
		}
	}
	return &SettlementError{Kind: Unknown, Err: err}
}
