package grammar

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// extractor reads one field value out of a message body
type extractor[T any] func(text string) (T, bool)

// firstOf runs the chain in order and returns the first value found
func firstOf[T any](text string, chain ...extractor[T]) (T, bool) {
	for _, ex := range chain {
		if v, ok := ex(text); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

const monthNames = `January|February|March|April|May|June|July|August|September|October|November|December`

var (
	longDateRe = regexp.MustCompile(`(?i)\b(` + monthNames + `)\s+(\d{1,2}),?\s+(\d{4})\b`)
	monthDayRe = regexp.MustCompile(`(?i)\b(` + monthNames + `)\s+(\d{1,2})\b`)
	clockRe    = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}\s*[AP]M)\b`)
	tipRe      = regexp.MustCompile(`(?i)\bTip[:\s]*\$?([\d,]+\.?\d{0,2})`)
)

var months = map[string]time.Month{}

func init() {
	for m := time.January; m <= time.December; m++ {
		months[strings.ToLower(m.String())] = m
	}
}

// amount captures a dollar figure from the first submatch of re
func amount(re *regexp.Regexp) extractor[decimal.Decimal] {
	return func(text string) (decimal.Decimal, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return decimal.Zero, false
		}
		return parseAmount(m[1])
	}
}

func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSuffix(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), ".")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// tipOrZero reads an optional tip; absence means zero
func tipOrZero(text string) decimal.Decimal {
	if tip, ok := amount(tipRe)(text); ok && !tip.IsNegative() {
		return tip
	}
	return decimal.Zero
}

// longDate matches "October 12, 2024"
func longDate(text string) (time.Time, bool) {
	return monthNameDate(longDateRe, text)
}

// monthNameDate builds a date from a regexp capturing (month name, day, year)
func monthNameDate(re *regexp.Regexp, text string) (time.Time, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	n := len(m)
	year, err := strconv.Atoi(m[n-1])
	if err != nil {
		return time.Time{}, false
	}
	return buildDate(year, m[n-3], m[n-2])
}

// monthDayThisYear matches "October 12" and assumes the clock's year.
// The year is a placeholder; date reconciliation corrects it where it can.
func monthDayThisYear(now Clock) extractor[time.Time] {
	return func(text string) (time.Time, bool) {
		m := monthDayRe.FindStringSubmatch(text)
		if m == nil {
			return time.Time{}, false
		}
		return buildDate(now().Year(), m[1], m[2])
	}
}

// slashDate matches MM/DD/YYYY from the first three submatches of re
func slashDate(re *regexp.Regexp) extractor[time.Time] {
	return func(text string) (time.Time, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return time.Time{}, false
		}
		month, err1 := strconv.Atoi(m[1])
		day, err2 := strconv.Atoi(m[2])
		year, err3 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 {
			return time.Time{}, false
		}
		return validDate(year, time.Month(month), day)
	}
}

func buildDate(year int, monthName, dayStr string) (time.Time, bool) {
	month, ok := months[strings.ToLower(monthName)]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}
	return validDate(year, month, day)
}

// validDate rejects dates that time.Date would silently normalize, like February 30
func validDate(year int, month time.Month, day int) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// firstLine returns the first non-blank line of s, cut at any stop phrase
func firstLine(s string, stops ...string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, stop := range stops {
			if i := strings.Index(lower, strings.ToLower(stop)); i >= 0 {
				line = strings.TrimSpace(line[:i])
				lower = strings.ToLower(line)
			}
		}
		return line
	}
	return ""
}

// normalizeClock collapses "9:10AM" / "9:10 am" into "9:10 AM"
func normalizeClock(s string) string {
	s = strings.ToUpper(strings.Join(strings.Fields(s), ""))
	if len(s) > 2 {
		return s[:len(s)-2] + " " + s[len(s)-2:]
	}
	return s
}
