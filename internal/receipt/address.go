package receipt

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var stateCodeRe = regexp.MustCompile(`\b([A-Z]{2})\b(?:\s*\d{5}(?:-\d{4})?)?`)

// ParseAddress splits a free-text address such as
// "123 Main St, Philadelphia, PA 19107, US" into its parts.
// It returns nil for fewer than two comma-separated segments and never fails:
// anything unexpected degrades to a Location holding only the input text.
func ParseAddress(raw string) (loc *Location) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Address parse failed", "address", raw, "error", fmt.Sprint(r))
			loc = &Location{Address: raw}
		}
	}()

	country := "US"
	if len(parts) > 3 {
		country = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}

	// parts now ends with the state/postal block
	state := ""
	if m := stateCodeRe.FindStringSubmatch(parts[len(parts)-1]); m != nil {
		state = m[1]
	}
	city := parts[len(parts)-2]
	address := strings.Join(parts[:len(parts)-2], ", ")

	return &Location{
		Address: address,
		City:    city,
		State:   state,
		Country: country,
	}
}
