package grammar

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/ride-receipts/internal/receipt"
)

var (
	amtrakReservationRe = regexp.MustCompile(`(?i)Reservation\s*(?:Number|No\.?|#)\s*[-:#]?\s*([A-Z0-9]{4,})`)
	amtrakRouteRe       = regexp.MustCompile(`(?is)TRAIN\s+\d+:\s*([^(]+?)\s+to\s+([^(]+?)\s*(?:\(|Depart)`)
	amtrakDepartTimeRe  = regexp.MustCompile(`(?i)Depart\s+(\d{1,2}:\d{2}\s*[AP]M)`)
	amtrakDepartDateRe  = regexp.MustCompile(`(?i)Depart\s+\d{1,2}:\d{2}\s*[AP]M,\s+\w+,\s+(` + monthNames + `)\s+(\d{1,2}),\s+(\d{4})`)
	amtrakPurchasedRe   = regexp.MustCompile(`(?i)Purchased:\s*(\d{1,2})/(\d{1,2})/(\d{4})`)
	amtrakModifiedRe    = regexp.MustCompile(`(?i)Modified:\s*(\d{1,2})/(\d{1,2})/(\d{4})`)
	amtrakStationRe     = regexp.MustCompile(`^([^,]+),\s*([A-Z]{2})\b`)
)

var amtrakPurchaseTotals = []extractor[decimal.Decimal]{
	amount(regexp.MustCompile(`(?i)Total Charged by Amtrak\s*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`(?i)\bTotal\s*\$?([\d,]+\.?\d{0,2})`)),
}

var amtrakRefundTotals = []extractor[decimal.Decimal]{
	amount(regexp.MustCompile(`(?i)Total Refunded\s*\$?([\d,]+\.?\d{0,2})`)),
	amount(regexp.MustCompile(`(?i)\bTotal\s*\$?([\d,]+\.?\d{0,2})`)),
}

// Amtrak reads rail purchase and refund receipts. Refunds are stored with a
// negative total and carry only an amount, a date, and the reservation id.
type Amtrak struct {
	now Clock
}

func (g *Amtrak) Vendor() receipt.Vendor { return receipt.VendorAmtrak }

// IsRefund reports whether a message is a refund receipt rather than a purchase.
// In the body only the upper-case banner counts; purchase emails mention refund
// receipts in running text.
func IsRefund(subject, body string) bool {
	return strings.Contains(strings.ToLower(subject), "refund receipt") ||
		strings.Contains(body, "REFUND RECEIPT")
}

func (g *Amtrak) purchaseDates() []extractor[time.Time] {
	return []extractor[time.Time]{
		func(text string) (time.Time, bool) { return monthNameDate(amtrakDepartDateRe, text) },
		slashDate(amtrakPurchasedRe),
	}
}

func (g *Amtrak) refundDates() []extractor[time.Time] {
	return []extractor[time.Time]{
		slashDate(amtrakModifiedRe),
		slashDate(amtrakPurchasedRe),
		func(string) (time.Time, bool) { return g.now(), true },
	}
}

func (g *Amtrak) Scan(subject, body string) (Quick, bool) {
	if IsRefund(subject, body) {
		total, ok := firstOf(body, amtrakRefundTotals...)
		if !ok || !total.IsPositive() {
			return Quick{}, false
		}
		date, _ := firstOf(body, g.refundDates()...)
		return Quick{Total: total.Neg(), Date: date}, true
	}
	total, ok := firstOf(body, amtrakPurchaseTotals...)
	if !ok || !total.IsPositive() {
		return Quick{}, false
	}
	date, ok := firstOf(body, g.purchaseDates()...)
	if !ok {
		return Quick{}, false
	}
	return Quick{Total: total, Date: date}, true
}

func (g *Amtrak) Parse(subject, body string) (*receipt.Receipt, error) {
	return guard(receipt.VendorAmtrak, func() (*receipt.Receipt, error) {
		reservation := ""
		if m := amtrakReservationRe.FindStringSubmatch(body); m != nil {
			reservation = strings.ToUpper(m[1])
		}
		if IsRefund(subject, body) {
			return g.parseRefund(body, reservation)
		}
		return g.parsePurchase(body, reservation)
	})
}

func (g *Amtrak) parsePurchase(body, reservation string) (*receipt.Receipt, error) {
	total, ok := firstOf(body, amtrakPurchaseTotals...)
	if !ok {
		return nil, fail(receipt.VendorAmtrak, "no total found")
	}
	if !total.IsPositive() {
		return nil, fail(receipt.VendorAmtrak, "total is not positive")
	}
	date, ok := firstOf(body, g.purchaseDates()...)
	if !ok {
		return nil, fail(receipt.VendorAmtrak, "no departure or purchase date found")
	}

	r := newReceipt(receipt.VendorAmtrak, total, decimal.Zero, date)
	r.ReservationID = reservation
	r.IsRoundTrip = strings.Contains(body, "(Round-Trip)")

	if m := amtrakRouteRe.FindStringSubmatch(body); m != nil {
		r.StartLocation = parseStation(m[1])
		r.EndLocation = parseStation(m[2])
	}
	if m := amtrakDepartTimeRe.FindStringSubmatch(body); m != nil {
		r.StartTime = normalizeClock(m[1])
	}
	return r, nil
}

func (g *Amtrak) parseRefund(body, reservation string) (*receipt.Receipt, error) {
	refund, ok := firstOf(body, amtrakRefundTotals...)
	if !ok {
		return nil, fail(receipt.VendorAmtrak, "no refund amount found")
	}
	if !refund.IsPositive() {
		return nil, fail(receipt.VendorAmtrak, "refund amount is not positive")
	}
	date, _ := firstOf(body, g.refundDates()...)

	r := newReceipt(receipt.VendorAmtrak, refund.Neg(), decimal.Zero, date)
	r.IsRefund = true
	r.ReservationID = reservation
	return r, nil
}

// parseStation reads "Philadelphia, PA - William H Gray III 30th St. Sta."
func parseStation(s string) *receipt.Location {
	s = strings.Join(strings.Fields(s), " ")
	cityState, station, _ := strings.Cut(s, " - ")
	m := amtrakStationRe.FindStringSubmatch(strings.TrimSpace(cityState))
	if m == nil {
		return nil
	}
	city, state := strings.TrimSpace(m[1]), m[2]
	address := strings.TrimSpace(station)
	if address == "" {
		address = city + ", " + state
	}
	return &receipt.Location{
		Address: address,
		City:    city,
		State:   state,
		Country: "US",
	}
}
