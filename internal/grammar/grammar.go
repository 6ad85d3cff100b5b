// Package grammar holds the per-vendor text extractors that turn a receipt
// email body into a candidate record.
//
// Every field is read through an ordered chain of alternative patterns; the
// first pattern that yields a value wins. The chains tolerate template drift
// between older and current vendor email formats.
package grammar

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/ride-receipts/internal/receipt"
)

// Clock supplies the current time. Grammars use it only to fill in a missing year.
type Clock func() time.Time

// Grammar extracts a receipt from one vendor's email format
type Grammar interface {
	// Vendor returns the vendor this grammar understands
	Vendor() receipt.Vendor

	// Parse extracts a full record. Failures are *receipt.ExtractionError.
	Parse(subject, body string) (*receipt.Receipt, error)

	// Scan extracts only the total and date, for cheap duplicate pre-checks
	Scan(subject, body string) (Quick, bool)
}

// Quick is the cheap subset of a receipt used by duplicate pre-checks
type Quick struct {
	Total decimal.Decimal
	Date  time.Time
}

// ForVendor returns the grammar for a vendor. A nil clock means time.Now.
func ForVendor(vendor receipt.Vendor, now Clock) (Grammar, error) {
	if now == nil {
		now = time.Now
	}
	switch vendor {
	case receipt.VendorUber:
		return &Uber{}, nil
	case receipt.VendorLyft:
		return &Lyft{}, nil
	case receipt.VendorCurb:
		return &Curb{now: now}, nil
	case receipt.VendorAmtrak:
		return &Amtrak{now: now}, nil
	default:
		return nil, fmt.Errorf("no grammar for vendor %q", vendor)
	}
}

// All returns a grammar for every supported vendor
func All(now Clock) map[receipt.Vendor]Grammar {
	grammars := make(map[receipt.Vendor]Grammar, len(receipt.Vendors))
	for _, v := range receipt.Vendors {
		g, _ := ForVendor(v, now)
		grammars[v] = g
	}
	return grammars
}

// guard turns a panic inside a grammar into an extraction failure so callers
// can always move on to the next strategy
func guard(vendor receipt.Vendor, parse func() (*receipt.Receipt, error)) (r *receipt.Receipt, err error) {
	defer func() {
		if p := recover(); p != nil {
			r = nil
			err = &receipt.ExtractionError{
				Vendor: vendor,
				Source: receipt.ParsedByRegex,
				Reason: "grammar panicked",
				Err:    fmt.Errorf("%v", p),
			}
		}
	}()
	return parse()
}

func fail(vendor receipt.Vendor, reason string) error {
	return receipt.NewExtractionError(vendor, receipt.ParsedByRegex, reason)
}

func newReceipt(vendor receipt.Vendor, total, tip decimal.Decimal, date time.Time) *receipt.Receipt {
	return &receipt.Receipt{
		Vendor:   vendor,
		Total:    total,
		Tip:      tip,
		Date:     receipt.Day(date),
		ParsedBy: receipt.ParsedByRegex,
	}
}
