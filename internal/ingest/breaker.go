package ingest

import (
	"context"
	"fmt"

	"github.com/zombor/ride-receipts/internal/receipt"
)

// DefaultThreshold is the run of consecutive duplicates that pauses a vendor batch
const DefaultThreshold = 10

// Decider is asked whether to keep going after a run of duplicates
type Decider interface {
	AskContinue(ctx context.Context, vendor receipt.Vendor, count int) (bool, error)
}

// DeciderFunc adapts a function to a Decider
type DeciderFunc func(ctx context.Context, vendor receipt.Vendor, count int) (bool, error)

func (f DeciderFunc) AskContinue(ctx context.Context, vendor receipt.Vendor, count int) (bool, error) {
	return f(ctx, vendor, count)
}

// AlwaysContinue never abandons a batch
var AlwaysContinue Decider = DeciderFunc(func(context.Context, receipt.Vendor, int) (bool, error) {
	return true, nil
})

// BreakerState is a snapshot of a vendor's breaker
type BreakerState struct {
	Vendor                receipt.Vendor `json:"vendor"`
	ConsecutiveDuplicates int            `json:"consecutive_duplicates"`
	Threshold             int            `json:"threshold"`
	Paused                bool           `json:"paused"`
}

// Breaker counts consecutive duplicates for one vendor batch
type Breaker struct {
	state   BreakerState
	decider Decider
}

// NewBreaker creates a breaker for a vendor. A threshold below 1 means
// DefaultThreshold and a nil decider means AlwaysContinue.
func NewBreaker(vendor receipt.Vendor, threshold int, decider Decider) *Breaker {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	if decider == nil {
		decider = AlwaysContinue
	}
	return &Breaker{
		state:   BreakerState{Vendor: vendor, Threshold: threshold},
		decider: decider,
	}
}

// RecordDuplicate counts a duplicate. When the run reaches the threshold the
// decider is asked; it returns false when the rest of the batch should be skipped.
func (b *Breaker) RecordDuplicate(ctx context.Context) (bool, error) {
	b.state.ConsecutiveDuplicates++
	if b.state.ConsecutiveDuplicates < b.state.Threshold {
		return true, nil
	}

	b.state.Paused = true
	cont, err := b.decider.AskContinue(ctx, b.state.Vendor, b.state.ConsecutiveDuplicates)
	b.state.Paused = false
	if err != nil {
		return false, fmt.Errorf("asking to continue %s: %w", b.state.Vendor, err)
	}
	if cont {
		b.state.ConsecutiveDuplicates = 0
	}
	return cont, nil
}

// RecordAccepted resets the run after a new record
func (b *Breaker) RecordAccepted() {
	b.state.ConsecutiveDuplicates = 0
}

// State returns a snapshot of the breaker
func (b *Breaker) State() BreakerState {
	return b.state
}
