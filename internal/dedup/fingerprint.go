// Package dedup decides whether a parsed receipt is already known.
//
// A record is an exact duplicate when its content fingerprint matches a known
// record's. It is a fuzzy duplicate when vendor and day match, totals differ by
// at most the configured number of cents, and start and end cities agree or are
// unknown on either side.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/zombor/ride-receipts/internal/receipt"
)

var hundred = decimal.NewFromInt(100)

// Fingerprint hashes the identifying fields of a receipt: vendor, day, total and
// tip in cents, start and end city and state, and start and end time.
func Fingerprint(r *receipt.Receipt) string {
	fields := map[string]any{
		"vendor":      string(r.Vendor),
		"date":        receipt.Day(r.Date).Format("2006-01-02"),
		"total_cents": Cents(r.Total),
		"tip_cents":   Cents(r.Tip),
		"start_city":  fold(city(r.StartLocation)),
		"start_state": fold(state(r.StartLocation)),
		"end_city":    fold(city(r.EndLocation)),
		"end_state":   fold(state(r.EndLocation)),
		"start_time":  strings.TrimSpace(r.StartTime),
		"end_time":    strings.TrimSpace(r.EndTime),
	}
	// encoding/json writes map keys in sorted order
	data, _ := json.Marshal(fields)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fingerprintOf returns the stored fingerprint, computing it when absent
func fingerprintOf(r *receipt.Receipt) string {
	if r.Fingerprint != "" {
		return r.Fingerprint
	}
	return Fingerprint(r)
}

// Cents rounds an amount to whole cents
func Cents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func city(l *receipt.Location) string {
	if l == nil {
		return ""
	}
	return l.City
}

func state(l *receipt.Location) string {
	if l == nil {
		return ""
	}
	return l.State
}
