package ingest

import "github.com/zombor/ride-receipts/internal/receipt"

// Phase names the stage a progress event reports on
type Phase string

const (
	PhaseSearching  Phase = "searching"
	PhaseProcessing Phase = "processing"
	PhaseError      Phase = "error"
	PhaseComplete   Phase = "complete"
)

// Event is a progress update for a UI sink
type Event struct {
	Phase   Phase            `json:"phase"`
	Vendor  receipt.Vendor   `json:"vendor,omitempty"`
	Query   string           `json:"query,omitempty"`
	Current int              `json:"current"`
	Total   int              `json:"total"`
	New     int              `json:"new"`
	Message string           `json:"message,omitempty"`
	Receipt *receipt.Receipt `json:"receipt,omitempty"` // set when a record was accepted
}

// ProgressReporter receives progress events
type ProgressReporter interface {
	Report(Event)
}

// ProgressFunc adapts a function to a ProgressReporter
type ProgressFunc func(Event)

func (f ProgressFunc) Report(e Event) { f(e) }

type discard struct{}

func (discard) Report(Event) {}
