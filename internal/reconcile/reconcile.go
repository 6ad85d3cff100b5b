// Package reconcile corrects extracted receipt dates against the verified time
// the message source says the email arrived.
package reconcile

import (
	"time"

	"github.com/zombor/ride-receipts/internal/receipt"
)

const maxAge = 365 * 24 * time.Hour

// Date returns candidate aligned so it never falls after receivedAt.
//
// A candidate later than the received day, or more than 365 days before it,
// takes the received year; if that is still later than the received day it
// moves back one more year. Anything else is returned unchanged. The result is
// a UTC calendar day and Date(Date(d, r), r) == Date(d, r).
func Date(candidate, receivedAt time.Time) time.Time {
	received := receipt.Day(receivedAt)
	day := receipt.Day(candidate)

	if day.After(received) || received.Sub(day) > maxAge {
		return alignYear(day, received)
	}
	return day
}

// alignYear moves day into the received year. February 29 in a non-leap year
// rolls over to March 1.
func alignYear(day, received time.Time) time.Time {
	aligned := time.Date(received.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if aligned.After(received) {
		aligned = aligned.AddDate(-1, 0, 0)
	}
	return aligned
}
