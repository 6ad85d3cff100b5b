package dedup

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/zombor/ride-receipts/internal/grammar"
	"github.com/zombor/ride-receipts/internal/receipt"
	"github.com/zombor/ride-receipts/internal/reconcile"
)

// DefaultTolerance is the largest total difference, in cents, still treated as the same trip
const DefaultTolerance = 1

// Detector performs exact and fuzzy duplicate checks against an Index
type Detector struct {
	tolerance int64
	grammars  map[receipt.Vendor]grammar.Grammar
}

// NewDetector creates a Detector. A tolerance of zero or less means DefaultTolerance.
func NewDetector(toleranceCents int64, now grammar.Clock) *Detector {
	if toleranceCents <= 0 {
		toleranceCents = DefaultTolerance
	}
	return &Detector{
		tolerance: toleranceCents,
		grammars:  grammar.All(now),
	}
}

// IsDuplicate reports whether candidate matches a known record exactly or fuzzily
func (d *Detector) IsDuplicate(candidate *receipt.Receipt, known *Index) bool {
	if candidate == nil || known == nil {
		return false
	}
	if known.HasFingerprint(fingerprintOf(candidate)) {
		return true
	}
	for _, k := range known.SameDay(candidate.Vendor, candidate.Date) {
		if d.fuzzyMatch(candidate, k) {
			return true
		}
	}
	return false
}

func (d *Detector) fuzzyMatch(a, b *receipt.Receipt) bool {
	if a.Vendor != b.Vendor || !receipt.Day(a.Date).Equal(receipt.Day(b.Date)) {
		return false
	}
	if !d.closeTotals(a.Total, b.Total) {
		return false
	}
	return sameOrUnknown(a.StartCity(), b.StartCity()) && sameOrUnknown(a.EndCity(), b.EndCity())
}

func (d *Detector) closeTotals(a, b decimal.Decimal) bool {
	diff := Cents(a) - Cents(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= d.tolerance
}

// sameOrUnknown treats a missing city as agreeing with anything
func sameOrUnknown(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return cases.Fold().String(a) == cases.Fold().String(b)
}

// PreCheck reports whether a raw message is almost certainly a known record,
// using only the vendor grammar's cheap total and date scan. The scanned date
// is reconciled against receivedAt before comparison.
func (d *Detector) PreCheck(vendor receipt.Vendor, msg *receipt.Message, known *Index) bool {
	if msg == nil || known == nil || known.Len() == 0 {
		return false
	}
	g, ok := d.grammars[vendor]
	if !ok {
		return false
	}
	q, ok := g.Scan(msg.Subject, msg.Body)
	if !ok {
		return false
	}
	return d.quickMatch(vendor, q.Total, reconcile.Date(q.Date, receivedOr(msg.ReceivedAt)), known)
}

func (d *Detector) quickMatch(vendor receipt.Vendor, total decimal.Decimal, date time.Time, known *Index) bool {
	for _, k := range known.SameDay(vendor, date) {
		if d.closeTotals(total, k.Total) {
			return true
		}
	}
	return false
}

func receivedOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
