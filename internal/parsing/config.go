package parsing

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/zombor/ride-receipts/internal/dedup"
	"github.com/zombor/ride-receipts/internal/receipt"
)

// Policy selects which extraction paths the orchestrator runs
type Policy string

const (
	PolicyRegexOnly       Policy = "regex-only"
	PolicyAIOnly          Policy = "ai-only"
	PolicyRegexFirst      Policy = "regex-first"
	PolicyAISubjectFilter Policy = "ai-with-subject-filter"
)

var policyAliases = map[string]Policy{
	"gemini-only":           PolicyAIOnly,
	"gemini-subject-filter": PolicyAISubjectFilter,
}

// ParsePolicy resolves a policy name, accepting the older gemini-* names
func ParsePolicy(name string) (Policy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch p := Policy(name); p {
	case PolicyRegexOnly, PolicyAIOnly, PolicyRegexFirst, PolicyAISubjectFilter:
		return p, nil
	case "":
		return PolicyRegexFirst, nil
	}
	if p, ok := policyAliases[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown parser policy %q", name)
}

// UsesAI reports whether the policy can call the AI extractor
func (p Policy) UsesAI() bool {
	return p != PolicyRegexOnly
}

// DefaultSubjectPatterns identify receipt emails per vendor
var DefaultSubjectPatterns = map[receipt.Vendor]string{
	receipt.VendorUber:   `trip with Uber`,
	receipt.VendorLyft:   `Your ride with .+ on`,
	receipt.VendorCurb:   `Curb Ride Receipt`,
	receipt.VendorAmtrak: `Amtrak.*(Receipt|eTicket)`,
}

// Config is everything the orchestrator needs, resolved by the caller
type Config struct {
	Policy Policy

	// SubjectPatterns are case-insensitive regular expressions for the
	// ai-with-subject-filter policy. Missing vendors use DefaultSubjectPatterns.
	SubjectPatterns map[receipt.Vendor]string

	// ToleranceCents is the fuzzy duplicate total tolerance; zero or less means the default
	ToleranceCents int64

	// Now is the clock grammars use for a missing year
	Now func() time.Time

	Logger *slog.Logger
}

// DefaultConfig returns a regex-first configuration with default patterns and tolerance
func DefaultConfig() Config {
	return Config{
		Policy:         PolicyRegexFirst,
		ToleranceCents: dedup.DefaultTolerance,
	}
}

// SubjectMatches tests a subject line against the vendor's pattern. A pattern
// that does not compile falls back to a case-insensitive vendor name check.
func (c Config) SubjectMatches(vendor receipt.Vendor, subject string) bool {
	re, _ := c.subjectPattern(vendor)
	return subjectMatch(re, vendor, subject)
}

// subjectMatch uses re when it compiled and the vendor name otherwise
func subjectMatch(re *regexp.Regexp, vendor receipt.Vendor, subject string) bool {
	if re == nil {
		return strings.Contains(strings.ToLower(subject), strings.ToLower(string(vendor)))
	}
	return re.MatchString(subject)
}

func (c Config) subjectPattern(vendor receipt.Vendor) (*regexp.Regexp, error) {
	pattern, ok := c.SubjectPatterns[vendor]
	if !ok || strings.TrimSpace(pattern) == "" {
		pattern = DefaultSubjectPatterns[vendor]
	}
	if pattern == "" {
		return nil, fmt.Errorf("no subject pattern for %s", vendor)
	}
	return regexp.Compile("(?i)" + pattern)
}
