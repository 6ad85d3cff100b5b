package dedup

import (
	"time"

	"github.com/zombor/ride-receipts/internal/receipt"
)

type dayKey struct {
	vendor receipt.Vendor
	day    string
}

// Index holds the known records with lookups by fingerprint and by vendor day.
// It is not safe for concurrent use; the batch runner is its only writer.
type Index struct {
	fingerprints map[string]struct{}
	days         map[dayKey][]*receipt.Receipt
	count        int
}

// NewIndex builds an index over the known records
func NewIndex(known []*receipt.Receipt) *Index {
	idx := &Index{
		fingerprints: make(map[string]struct{}, len(known)),
		days:         make(map[dayKey][]*receipt.Receipt),
	}
	for _, r := range known {
		idx.Add(r)
	}
	return idx
}

// Add records an accepted receipt
func (i *Index) Add(r *receipt.Receipt) {
	if r == nil {
		return
	}
	i.fingerprints[fingerprintOf(r)] = struct{}{}
	k := keyFor(r.Vendor, r.Date)
	i.days[k] = append(i.days[k], r)
	i.count++
}

// HasFingerprint reports whether any known record has the fingerprint
func (i *Index) HasFingerprint(fp string) bool {
	_, ok := i.fingerprints[fp]
	return ok
}

// SameDay returns the known records for a vendor on the calendar day of t
func (i *Index) SameDay(vendor receipt.Vendor, t time.Time) []*receipt.Receipt {
	return i.days[keyFor(vendor, t)]
}

// Len returns the number of known records
func (i *Index) Len() int {
	return i.count
}

func keyFor(vendor receipt.Vendor, t time.Time) dayKey {
	return dayKey{vendor: vendor, day: receipt.Day(t).Format("2006-01-02")}
}
