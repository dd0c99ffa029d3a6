package quote

import (
	"fmt"
	"regexp"

	"github.com/tinytelemetry/litclock/internal/model"
)

// Format is the clock style a quote's time text betrays.
type Format int

const (
	FormatAmbiguous Format = iota
	Format12Hour
	Format24Hour
)

func (f Format) String() string {
	switch f {
	case Format12Hour:
		return "12h"
	case Format24Hour:
		return "24h"
	default:
		return "ambiguous"
	}
}

var (
	// An hour of 13-23 in hour position: "15:30", "17.05", "21h10",
	// "1300 hours", "18 hundred".
	hour24Pattern = regexp.MustCompile(`\b(1[3-9]|2[0-3])(?:[:.h]\d{2}\b|\d{2}\s*(?:hours|hrs|h)\b|\s+(?:hundred|hours)\b)`)

	amPmPattern = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:[ap]\.m\.?|[ap]m)(?:$|[^a-z])`)

	periodPattern = regexp.MustCompile(`(?i)\b(?:morning|afternoon|evening|night)\b`)
)

// Classify reports the display format a time span is tied to. Markup is
// stripped first.
func Classify(timeCase string) Format {
	text := PlainText(timeCase)
	switch {
	case hour24Pattern.MatchString(text):
		return Format24Hour
	case amPmPattern.MatchString(text):
		return Format12Hour
	case periodPattern.MatchString(text):
		return Format12Hour
	default:
		return FormatAmbiguous
	}
}

// Compatible reports whether a quote of format f may be shown under the
// given preference.
func (f Format) Compatible(use24Hour bool) bool {
	switch f {
	case Format24Hour:
		return use24Hour
	case Format12Hour:
		return !use24Hour
	default:
		return true
	}
}

// FormatDigital renders the plain digital time shown next to every quote.
func FormatDigital(t model.TimeOfDay, use24Hour bool) string {
	if use24Hour {
		return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
	}
	suffix := "AM"
	if t.Hour >= 12 {
		suffix = "PM"
	}
	h := t.Hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute, suffix)
}
