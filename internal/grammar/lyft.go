package grammar

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/ride-receipts/internal/receipt"
)

var lyftTotals = []extractor[decimal.Decimal]{
	amount(regexp.MustCompile(`(?i)\bTotal[:\s]*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`(?i)You paid[:\s]*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`(?i)\bAmount[:\s]*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`\$(\d+\.\d{2})`)),
}

var (
	lyftPickupRe  = regexp.MustCompile(`(?is)\b(?:Pickup|Picked up)[:\s]*(\d{1,2}:\d{2}\s*[AP]M)?(.*?)(?:Drop-?off|Dropped|$)`)
	lyftDropoffRe = regexp.MustCompile(`(?is)\b(?:Drop-?off|Dropped off|Dropped)[:\s]*(\d{1,2}:\d{2}\s*[AP]M)?(.*?)(?:Ride time|Driver|Total|$)`)
)

// Lyft reads Lyft ride receipts, which label the pickup and drop-off blocks explicitly
type Lyft struct{}

func (g *Lyft) Vendor() receipt.Vendor { return receipt.VendorLyft }

func (g *Lyft) Scan(_, body string) (Quick, bool) {
	total, ok := firstOf(body, lyftTotals...)
	if !ok || !total.IsPositive() {
		return Quick{}, false
	}
	date, ok := longDate(body)
	if !ok {
		return Quick{}, false
	}
	return Quick{Total: total, Date: date}, true
}

func (g *Lyft) Parse(_, body string) (*receipt.Receipt, error) {
	return guard(receipt.VendorLyft, func() (*receipt.Receipt, error) {
		total, ok := firstOf(body, lyftTotals...)
		if !ok {
			return nil, fail(receipt.VendorLyft, "no total found")
		}
		if !total.IsPositive() {
			return nil, fail(receipt.VendorLyft, "total is not positive")
		}
		date, ok := longDate(body)
		if !ok {
			return nil, fail(receipt.VendorLyft, "no date found")
		}

		r := newReceipt(receipt.VendorLyft, total, tipOrZero(body), date)
		r.StartTime, r.StartLocation = labeledStop(lyftPickupRe, body)
		r.EndTime, r.EndLocation = labeledStop(lyftDropoffRe, body)
		return r, nil
	})
}

// labeledStop reads the optional time and the address line following a label
func labeledStop(re *regexp.Regexp, body string) (string, *receipt.Location) {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", nil
	}
	clock := ""
	if strings.TrimSpace(m[1]) != "" {
		clock = normalizeClock(m[1])
	}
	return clock, receipt.ParseAddress(firstLine(m[2]))
}
