// Package parsing sequences grammars, the AI extractor, date reconciliation and
// duplicate detection according to a parser policy.
package parsing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/zombor/ride-receipts/internal/dedup"
	"github.com/zombor/ride-receipts/internal/grammar"
	"github.com/zombor/ride-receipts/internal/receipt"
	"github.com/zombor/ride-receipts/internal/reconcile"
)

// AIExtractor defines the interface for generative extraction
type AIExtractor interface {
	Extract(ctx context.Context, vendor receipt.Vendor, body string) (*receipt.Receipt, error)
}

// Orchestrator turns one message into at most one new receipt
type Orchestrator struct {
	policy   Policy
	grammars map[receipt.Vendor]grammar.Grammar
	ai       AIExtractor
	detector *dedup.Detector
	subjects map[receipt.Vendor]*regexp.Regexp
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. ai may be nil only for the regex-only
// and regex-first policies; regex-first then never falls back.
func NewOrchestrator(cfg Config, ai AIExtractor) (*Orchestrator, error) {
	if cfg.Policy == "" {
		cfg.Policy = PolicyRegexFirst
	}
	if _, err := ParsePolicy(string(cfg.Policy)); err != nil {
		return nil, err
	}
	if ai == nil && (cfg.Policy == PolicyAIOnly || cfg.Policy == PolicyAISubjectFilter) {
		return nil, fmt.Errorf("parser policy %s requires an AI extractor", cfg.Policy)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		policy:   cfg.Policy,
		grammars: grammar.All(cfg.Now),
		ai:       ai,
		detector: dedup.NewDetector(cfg.ToleranceCents, cfg.Now),
		subjects: make(map[receipt.Vendor]*regexp.Regexp, len(receipt.Vendors)),
		logger:   logger,
	}

	for _, v := range receipt.Vendors {
		re, err := cfg.subjectPattern(v)
		if err != nil {
			logger.Warn("Invalid subject pattern, matching on vendor name", "vendor", v, "error", err)
		}
		o.subjects[v] = re
	}

	return o, nil
}

// Policy returns the configured policy
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Parse extracts a receipt from msg, reconciles its date, fingerprints it and
// checks it against known.
//
// It returns receipt.ErrDuplicate when the record is already known and
// receipt.ErrSubjectMismatch when the subject filter rejects the message. Other
// failures are *receipt.ExtractionError. Parse never mutates known.
func (o *Orchestrator) Parse(ctx context.Context, vendor receipt.Vendor, msg *receipt.Message, known *dedup.Index) (*receipt.Receipt, error) {
	if msg == nil {
		return nil, receipt.NewExtractionError(vendor, receipt.ParsedByRegex, "no message")
	}
	r, err := o.extract(ctx, vendor, msg)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, receipt.NewExtractionError(vendor, receipt.ParsedByAI, "extractor returned no record")
	}

	r.Vendor = vendor
	r.MessageID = msg.ID
	if !msg.ReceivedAt.IsZero() {
		r.Date = reconcile.Date(r.Date, msg.ReceivedAt)
	}
	if !r.Valid() {
		return nil, receipt.NewExtractionError(vendor, r.ParsedBy, "record is missing a total or date")
	}
	r.Fingerprint = dedup.Fingerprint(r)

	if o.detector.IsDuplicate(r, known) {
		o.logger.Debug("Duplicate receipt", "vendor", vendor, "message_id", msg.ID, "fingerprint", r.Fingerprint)
		return nil, fmt.Errorf("message %s: %w", msg.ID, receipt.ErrDuplicate)
	}
	return r, nil
}

// ParseAgainst is Parse against a plain slice of known receipts
func (o *Orchestrator) ParseAgainst(ctx context.Context, vendor receipt.Vendor, msg *receipt.Message, known []*receipt.Receipt) (*receipt.Receipt, error) {
	return o.Parse(ctx, vendor, msg, dedup.NewIndex(known))
}

// PreCheck reports whether msg is almost certainly already known
func (o *Orchestrator) PreCheck(vendor receipt.Vendor, msg *receipt.Message, known *dedup.Index) bool {
	return o.detector.PreCheck(vendor, msg, known)
}

func (o *Orchestrator) extract(ctx context.Context, vendor receipt.Vendor, msg *receipt.Message) (*receipt.Receipt, error) {
	switch o.policy {
	case PolicyRegexOnly:
		return o.runGrammar(vendor, msg)

	case PolicyAIOnly:
		return o.runAI(ctx, vendor, msg)

	case PolicyAISubjectFilter:
		if !subjectMatch(o.subjects[vendor], vendor, msg.Subject) {
			return nil, fmt.Errorf("%s subject %q: %w", vendor, msg.Subject, receipt.ErrSubjectMismatch)
		}
		return o.runAI(ctx, vendor, msg)

	default:
		r, err := o.runGrammar(vendor, msg)
		if err == nil || o.ai == nil {
			return r, err
		}
		o.logger.Debug("Regex parse failed, trying AI", "vendor", vendor, "message_id", msg.ID, "error", err)
		r, aiErr := o.runAI(ctx, vendor, msg)
		if aiErr != nil {
			return nil, errors.Join(err, aiErr)
		}
		return r, nil
	}
}

func (o *Orchestrator) runGrammar(vendor receipt.Vendor, msg *receipt.Message) (*receipt.Receipt, error) {
	g, ok := o.grammars[vendor]
	if !ok {
		return nil, receipt.NewExtractionError(vendor, receipt.ParsedByRegex, "no grammar for vendor")
	}
	return g.Parse(msg.Subject, msg.Body)
}

func (o *Orchestrator) runAI(ctx context.Context, vendor receipt.Vendor, msg *receipt.Message) (*receipt.Receipt, error) {
	if o.ai == nil {
		return nil, receipt.NewExtractionError(vendor, receipt.ParsedByAI, "no AI extractor configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, &receipt.ExtractionError{Vendor: vendor, Source: receipt.ParsedByAI, Reason: "cancelled", Err: err}
	}
	return o.ai.Extract(ctx, vendor, msg.Body)
}
