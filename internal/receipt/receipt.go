package receipt

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Vendor identifies the carrier that issued a receipt email
type Vendor string

const (
	VendorUber   Vendor = "Uber"
	VendorLyft   Vendor = "Lyft"
	VendorCurb   Vendor = "Curb"
	VendorAmtrak Vendor = "Amtrak"
)

// Vendors lists every supported vendor in sync order
var Vendors = []Vendor{VendorUber, VendorLyft, VendorCurb, VendorAmtrak}

// ParseVendor resolves a vendor name case-insensitively
func ParseVendor(name string) (Vendor, bool) {
	for _, v := range Vendors {
		if strings.EqualFold(string(v), strings.TrimSpace(name)) {
			return v, true
		}
	}
	return "", false
}

// IsRail reports whether the vendor is the rail carrier
func (v Vendor) IsRail() bool {
	return v == VendorAmtrak
}

// ParsedBy records which extraction path produced a receipt
type ParsedBy string

const (
	ParsedByRegex ParsedBy = "regex"
	ParsedByAI    ParsedBy = "ai"
)

// Message is a raw email as delivered by a message source
type Message struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"` // verified by the message source
	Body       string    `json:"body"`
}

// Location is a value type; an empty field means the value is unknown
type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Receipt is a parsed trip or rail transaction
type Receipt struct {
	ID            string          `json:"id"`
	MessageID     string          `json:"message_id,omitempty"`
	Vendor        Vendor          `json:"vendor"`
	Total         decimal.Decimal `json:"total"` // negative only for rail refunds
	Tip           decimal.Decimal `json:"tip"`
	Date          time.Time       `json:"date"` // UTC midnight
	StartTime     string          `json:"start_time,omitempty"`
	EndTime       string          `json:"end_time,omitempty"`
	StartLocation *Location       `json:"start_location,omitempty"`
	EndLocation   *Location       `json:"end_location,omitempty"`
	ParsedBy      ParsedBy        `json:"parsed_by"`
	Fingerprint   string          `json:"content_fingerprint,omitempty"`
	IsRefund      bool            `json:"is_refund,omitempty"`
	IsRoundTrip   bool            `json:"is_round_trip,omitempty"`
	ReservationID string          `json:"reservation_id,omitempty"`

	// Caller-owned annotations, never set by extraction
	Category string `json:"category,omitempty"`
	Billed   bool   `json:"billed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Valid reports whether the receipt carries the fields every record requires
func (r *Receipt) Valid() bool {
	return r != nil && !r.Date.IsZero() && !r.Total.IsZero()
}

// Day truncates t to a UTC calendar date, keeping the wall-clock date of t
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartCity returns the start city or "" when unknown
func (r *Receipt) StartCity() string {
	if r.StartLocation == nil {
		return ""
	}
	return r.StartLocation.City
}

// EndCity returns the end city or "" when unknown
func (r *Receipt) EndCity() string {
	if r.EndLocation == nil {
		return ""
	}
	return r.EndLocation.City
}
