package scanning

import (
	"fmt"

	"github.com/zombor/ride-receipts/internal/receipt"
)

// systemPrompt is sent as the system message by backends that support one
const systemPrompt = "You extract structured data from transactional emails. You reply with a single JSON object and nothing else."

// receiptPrompt is the shared prompt used by all generators for trip receipts
const receiptPrompt = `You are parsing a %s receipt email. Extract the following information and return ONLY valid JSON with no markdown formatting, no code blocks, and no extra text.

Email content:
%s

Return a JSON object with these exact fields:
{
  "total": number (total charge in dollars, required),
  "tip": number (tip amount in dollars, 0 if not found),
  "date": "YYYY-MM-DD" (date of the trip, required),
  "startTime": "H:MM AM/PM" (pickup or departure time, null if not found),
  "endTime": "H:MM AM/PM" (drop-off or arrival time, null if not found),
  "startLocation": {
    "address": "full address",
    "city": "city name",
    "state": "two letter state code",
    "country": "US"
  },
  "endLocation": {
    "address": "full address",
    "city": "city name",
    "state": "two letter state code",
    "country": "US"
  }
}

Important:
- Return ONLY the JSON object, nothing else
- Do not wrap the JSON in markdown code blocks
- Do not add any explanatory text
- If you cannot find a field, use null
- The "total" and "date" fields are required`

// BuildPrompt returns the extraction prompt for one message body
func BuildPrompt(vendor receipt.Vendor, body string) string {
	return fmt.Sprintf(receiptPrompt, vendor, body)
}
