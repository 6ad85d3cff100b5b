// Package ingest runs bulk syncs: it walks each vendor's mailbox query, skips
// messages already stored, pre-checks likely duplicates, and parses the rest.
//
// Messages are handled one at a time. Each duplicate check must see every record
// accepted before it, and the breaker counts duplicates in listing order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombor/ride-receipts/internal/dedup"
	"github.com/zombor/ride-receipts/internal/receipt"
)

// MessageSource lists and fetches raw messages
type MessageSource interface {
	// List returns the ids of every message matching the query, across all pages
	List(ctx context.Context, query string) ([]string, error)

	// Get fetches a message
	Get(ctx context.Context, id string) (*receipt.Message, error)
}

// Parser runs the duplicate pre-check and the full parse
type Parser interface {
	PreCheck(vendor receipt.Vendor, msg *receipt.Message, known *dedup.Index) bool
	Parse(ctx context.Context, vendor receipt.Vendor, msg *receipt.Message, known *dedup.Index) (*receipt.Receipt, error)
}

// Store is the known-record store. The runner is its only writer during a sync.
type Store interface {
	HasMessage(messageID string) (bool, error)
	ListReceipts() ([]*receipt.Receipt, error)
	Accept(r *receipt.Receipt) (*receipt.Receipt, error)
}

// Config controls a sync run
type Config struct {
	// Threshold is the run of consecutive duplicates that asks the decider
	Threshold int

	// Limit caps the messages fetched per vendor query; 0 means no limit
	Limit int

	// Queries maps each vendor to its mailbox query; vendors without one are skipped
	Queries map[receipt.Vendor]string
}

// Result counts the outcomes of a run
type Result struct {
	Accepted   int              `json:"accepted"`
	Duplicates int              `json:"duplicates"`
	Skipped    int              `json:"skipped"`
	Unparsed   int              `json:"unparsed"`
	Failed     int              `json:"failed"`
	Abandoned  []receipt.Vendor `json:"abandoned,omitempty"`
}

// Runner drives a sync across all vendors
type Runner struct {
	cfg      Config
	source   MessageSource
	parser   Parser
	store    Store
	decider  Decider
	reporter ProgressReporter
	logger   *slog.Logger
}

// NewRunner creates a Runner. A nil decider means AlwaysContinue and a nil
// reporter drops events.
func NewRunner(cfg Config, source MessageSource, parser Parser, store Store, decider Decider, reporter ProgressReporter) *Runner {
	return NewRunnerWithLogger(cfg, source, parser, store, decider, reporter, slog.Default())
}

// NewRunnerWithLogger creates a Runner with a custom logger
func NewRunnerWithLogger(cfg Config, source MessageSource, parser Parser, store Store, decider Decider, reporter ProgressReporter, logger *slog.Logger) *Runner {
	if cfg.Threshold < 1 {
		cfg.Threshold = DefaultThreshold
	}
	if decider == nil {
		decider = AlwaysContinue
	}
	if reporter == nil {
		reporter = discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:      cfg,
		source:   source,
		parser:   parser,
		store:    store,
		decider:  decider,
		reporter: reporter,
		logger:   logger,
	}
}

// Run syncs every configured vendor in order. A failed query or message is
// logged and skipped; only cancellation or an unreadable store stops the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	known, err := r.store.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("loading known receipts: %w", err)
	}
	index := dedup.NewIndex(known)
	res := &Result{}

	for _, vendor := range receipt.Vendors {
		query := r.cfg.Queries[vendor]
		if query == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r.runVendor(ctx, vendor, query, index, res)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	r.logger.Info("Sync complete", "new", res.Accepted, "duplicates", res.Duplicates, "total", index.Len())
	r.reporter.Report(Event{
		Phase:   PhaseComplete,
		New:     res.Accepted,
		Total:   index.Len(),
		Message: fmt.Sprintf("%d new, %d total", res.Accepted, index.Len()),
	})
	return res, nil
}

func (r *Runner) runVendor(ctx context.Context, vendor receipt.Vendor, query string, index *dedup.Index, res *Result) {
	logger := r.logger.With("vendor", vendor, "query", query)
	r.reporter.Report(Event{Phase: PhaseSearching, Vendor: vendor, Query: query, New: res.Accepted})

	ids, err := r.source.List(ctx, query)
	if err != nil {
		logger.Error("Error listing messages", "error", err)
		r.reporter.Report(Event{Phase: PhaseError, Vendor: vendor, Query: query, New: res.Accepted, Message: err.Error()})
		return
	}
	logger.Info("Found messages", "count", len(ids))

	breaker := NewBreaker(vendor, r.cfg.Threshold, r.decider)
	fetched := 0

	for i, id := range ids {
		if ctx.Err() != nil {
			return
		}

		seen, err := r.store.HasMessage(id)
		if err != nil {
			logger.Error("Error checking message", "message_id", id, "error", err)
			res.Failed++
			continue
		}
		if seen {
			res.Skipped++
			continue
		}

		if r.cfg.Limit > 0 && fetched >= r.cfg.Limit {
			logger.Info("Message limit reached", "limit", r.cfg.Limit)
			return
		}
		fetched++

		progress := Event{Phase: PhaseProcessing, Vendor: vendor, Query: query, Current: i + 1, Total: len(ids), New: res.Accepted}
		r.reporter.Report(progress)

		msg, err := r.source.Get(ctx, id)
		if err != nil {
			logger.Error("Error fetching message", "message_id", id, "error", err)
			res.Failed++
			progress.Phase, progress.Message = PhaseError, err.Error()
			r.reporter.Report(progress)
			continue
		}

		if r.parser.PreCheck(vendor, msg, index) {
			logger.Debug("Likely duplicate", "message_id", id)
			if !r.duplicate(ctx, breaker, res, logger) {
				return
			}
			continue
		}

		parsed, err := r.parser.Parse(ctx, vendor, msg, index)
		switch {
		case err == nil:
			stored, err := r.store.Accept(parsed)
			if err != nil {
				logger.Error("Error storing receipt", "message_id", id, "error", err)
				res.Failed++
				continue
			}
			index.Add(stored)
			breaker.RecordAccepted()
			res.Accepted++
			progress.New, progress.Receipt = res.Accepted, stored
			r.reporter.Report(progress)
		case errors.Is(err, receipt.ErrDuplicate):
			logger.Debug("Duplicate receipt", "message_id", id)
			if !r.duplicate(ctx, breaker, res, logger) {
				return
			}
		default:
			logger.Debug("Message not parsed", "message_id", id, "subject", msg.Subject, "error", err)
			res.Unparsed++
		}
	}
}

// duplicate feeds the breaker and reports whether the vendor batch should go on
func (r *Runner) duplicate(ctx context.Context, breaker *Breaker, res *Result, logger *slog.Logger) bool {
	res.Duplicates++
	cont, err := breaker.RecordDuplicate(ctx)
	if err != nil {
		logger.Warn("Abandoning vendor", "error", err)
		res.Abandoned = append(res.Abandoned, breaker.State().Vendor)
		return false
	}
	if !cont {
		logger.Info("Skipping rest of vendor after duplicates", "count", breaker.State().ConsecutiveDuplicates)
		res.Abandoned = append(res.Abandoned, breaker.State().Vendor)
		return false
	}
	return true
}
