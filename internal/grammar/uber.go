package grammar

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/zombor/ride-receipts/internal/receipt"
)

var uberTotals = []extractor[decimal.Decimal]{
	amount(regexp.MustCompile(`(?i)\bTotal[:\s]*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`(?i)You were charged[:\s]*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`(?i)Amount charged[:\s]*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`(?m)\$(\d+\.\d{2})\s*$`)),
}

var uberStops = []string{"Report an issue", "Contact", "Trip fare"}

// Uber reads Uber trip receipts. The trip block lists two "clock time + address"
// runs: the first is the pickup, the second the drop-off.
type Uber struct{}

func (g *Uber) Vendor() receipt.Vendor { return receipt.VendorUber }

func (g *Uber) Scan(_, body string) (Quick, bool) {
	total, ok := firstOf(body, uberTotals...)
	if !ok || !total.IsPositive() {
		return Quick{}, false
	}
	date, ok := longDate(body)
	if !ok {
		return Quick{}, false
	}
	return Quick{Total: total, Date: date}, true
}

func (g *Uber) Parse(_, body string) (*receipt.Receipt, error) {
	return guard(receipt.VendorUber, func() (*receipt.Receipt, error) {
		total, ok := firstOf(body, uberTotals...)
		if !ok {
			return nil, fail(receipt.VendorUber, "no total found")
		}
		if !total.IsPositive() {
			return nil, fail(receipt.VendorUber, "total is not positive")
		}
		date, ok := longDate(body)
		if !ok {
			return nil, fail(receipt.VendorUber, "no date found")
		}

		r := newReceipt(receipt.VendorUber, total, tipOrZero(body), date)

		stops := clockRe.FindAllStringSubmatchIndex(body, -1)
		if len(stops) >= 2 {
			for i := 0; i < 2; i++ {
				end := len(body)
				if i+1 < len(stops) {
					end = stops[i+1][0]
				}
				clock := normalizeClock(body[stops[i][2]:stops[i][3]])
				loc := receipt.ParseAddress(firstLine(body[stops[i][1]:end], uberStops...))
				if i == 0 {
					r.StartTime, r.StartLocation = clock, loc
				} else {
					r.EndTime, r.EndLocation = clock, loc
				}
			}
		}

		return r, nil
	})
}
