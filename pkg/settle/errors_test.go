package settle

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{
			name: "commitment mismatch",
			err:  errors.New("Program log: Error: Invalid commitment hash"),
			want: CommitmentMismatch,
		},
		{
			name: "already filled",
			err:  errors.New("Error: Order has already been filled"),
			want: AlreadyFilled,
		},
		{
			name: "price incompatible",
			err:  errors.New("Error: Buy price must be >= sell price"),
			want: PriceIncompatible,
		},
		{
			name: "invalid execution price",
			err:  errors.New("Error: Execution price must be between sell and buy prices"),
			want: InvalidExecutionPrice,
		},
		{
			name: "network error",
			err:  errors.New("connection refused"),
			want: Unknown,
		},
		{
			name: "wrapped program error",
			err:  fmt.Errorf("send transaction: %w", errors.New("Invalid commitment hash")),
			want: CommitmentMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serr := Classify(tt.err)
			if serr.Kind != tt.want {
				t.Errorf("Classify(%v).Kind = %s, want %s", tt.err, serr.Kind, tt.want)
			}
			if !errors.Is(serr, tt.err) {
				t.Error("classified error does not unwrap to the original")
			}
		})
	}
}

func TestFailureKindString(t *testing.T) {
	kinds := map[FailureKind]string{
		Unknown:               "unknown",
		CommitmentMismatch:    "commitment_mismatch",
		AlreadyFilled:         "already_filled",
		PriceIncompatible:     "price_incompatible",
		InvalidExecutionPrice: "invalid_execution_price",
	}
	for k, want := range kinds {
		if got := k.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
