package scanning

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/ride-receipts/internal/receipt"
)

// response is the JSON object the prompt asks for
type response struct {
	Total         *decimal.Decimal  `json:"total"`
	Tip           *decimal.Decimal  `json:"tip"`
	Date          *string           `json:"date"`
	StartTime     *string           `json:"startTime"`
	EndTime       *string           `json:"endTime"`
	StartLocation *receipt.Location `json:"startLocation"`
	EndLocation   *receipt.Location `json:"endLocation"`
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// ParseResponse turns generator output into a receipt.
//
// Code fences and any prose around the outermost JSON object are stripped. A
// missing or non-positive total or a missing date rejects the response. A
// missing tip is zero. A date in an unknown format falls back to now with a
// warning. Every rejection is a *receipt.ExtractionError wrapping
// receipt.ErrMalformedResponse.
func ParseResponse(text string, vendor receipt.Vendor, now time.Time, logger *slog.Logger) (*receipt.Receipt, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := jsonObject(text)
	if err != nil {
		return nil, malformed(vendor, err)
	}

	var data response
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, malformed(vendor, fmt.Errorf("unmarshaling json: %w", err))
	}

	if data.Total == nil {
		return nil, malformed(vendor, fmt.Errorf("total is missing"))
	}
	if !data.Total.IsPositive() {
		return nil, malformed(vendor, fmt.Errorf("total %s is not positive", data.Total))
	}
	if data.Date == nil || strings.TrimSpace(*data.Date) == "" {
		return nil, malformed(vendor, fmt.Errorf("date is missing"))
	}

	tip := decimal.Zero
	if data.Tip != nil && !data.Tip.IsNegative() {
		tip = *data.Tip
	}

	date, ok := parseDate(*data.Date)
	if !ok {
		logger.Warn("Unparsable date in AI response, using today", "vendor", vendor, "date", *data.Date)
		date = now
	}

	return &receipt.Receipt{
		Vendor:        vendor,
		Total:         *data.Total,
		Tip:           tip,
		Date:          receipt.Day(date),
		StartTime:     deref(data.StartTime),
		EndTime:       deref(data.EndTime),
		StartLocation: cleanLocation(data.StartLocation),
		EndLocation:   cleanLocation(data.EndLocation),
		ParsedBy:      receipt.ParsedByAI,
	}, nil
}

// jsonObject strips markdown fences and returns the outermost {...} span
func jsonObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	return text[start : end+1], nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// cleanLocation drops empty locations and defaults the country
func cleanLocation(l *receipt.Location) *receipt.Location {
	if l == nil {
		return nil
	}
	loc := receipt.Location{
		Address: strings.TrimSpace(l.Address),
		City:    strings.TrimSpace(l.City),
		State:   strings.ToUpper(strings.TrimSpace(l.State)),
		Country: strings.TrimSpace(l.Country),
	}
	if loc.Address == "" && loc.City == "" && loc.State == "" {
		return nil
	}
	if loc.Country == "" {
		loc.Country = "US"
	}
	return &loc
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func malformed(vendor receipt.Vendor, err error) error {
	return &receipt.ExtractionError{
		Vendor: vendor,
		Source: receipt.ParsedByAI,
		Reason: "unusable response",
		Err:    fmt.Errorf("%w: %w", receipt.ErrMalformedResponse, err),
	}
}
