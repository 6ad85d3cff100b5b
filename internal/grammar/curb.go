package grammar

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/ride-receipts/internal/receipt"
)

var curbTotals = []extractor[decimal.Decimal]{
	amount(regexp.MustCompile(`(?i)\bTotal[:\s]*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`(?i)\bAmount[:\s]*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`(?i)\bFare[:\s]*\$?([\d,]+\.?\d{0,2})`)),
}

// Curb reads Curb taxi receipts. Curb emails often omit the year and carry no
// pickup or drop-off details.
type Curb struct {
	now Clock
}

func (g *Curb) Vendor() receipt.Vendor { return receipt.VendorCurb }

func (g *Curb) dates() []extractor[time.Time] {
	return []extractor[time.Time]{longDate, monthDayThisYear(g.now)}
}

func (g *Curb) Scan(_, body string) (Quick, bool) {
	total, ok := firstOf(body, curbTotals...)
	if !ok || !total.IsPositive() {
		return Quick{}, false
	}
	date, ok := firstOf(body, g.dates()...)
	if !ok {
		return Quick{}, false
	}
	return Quick{Total: total, Date: date}, true
}

func (g *Curb) Parse(_, body string) (*receipt.Receipt, error) {
	return guard(receipt.VendorCurb, func() (*receipt.Receipt, error) {
		total, ok := firstOf(body, curbTotals...)
		if !ok {
			return nil, fail(receipt.VendorCurb, "no total found")
		}
		if !total.IsPositive() {
			return nil, fail(receipt.VendorCurb, "total is not positive")
		}
		date, ok := firstOf(body, g.dates()...)
		if !ok {
			return nil, fail(receipt.VendorCurb, "no date found")
		}
		return newReceipt(receipt.VendorCurb, total, tipOrZero(body), date), nil
	})
}
