package dataset

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tinytelemetry/litclock/internal/model"
)

// Quote length bounds, in characters of the rejoined excerpt.
const (
	MinQuoteLength = 50
	MaxQuoteLength = 500
)

// IssueKind classifies a dataset problem.
type IssueKind string

const (
	IssueBadKey        IssueKind = "bad-key"
	IssueEmptyTimeCase IssueKind = "empty-time-case"
	IssueRoundTrip     IssueKind = "round-trip"
	IssueDuplicate     IssueKind = "duplicate"
	IssueMissingSource IssueKind = "missing-source"
	IssueLength        IssueKind = "length"
)

// Severity separates problems that break the clock from style warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Key      string
	Index    int
	Kind     IssueKind
	Severity Severity
	Detail   string
}

func (i Issue) String() string {
	if i.Index < 0 {
		return fmt.Sprintf("%s %s [%s]: %s", i.Severity, i.Key, i.Kind, i.Detail)
	}
	return fmt.Sprintf("%s %s#%d [%s]: %s", i.Severity, i.Key, i.Index, i.Kind, i.Detail)
}

// Validate checks every record in ds. Issues are ordered by key and index.
func Validate(ds Dataset) []Issue {
	var issues []Issue
	for _, key := range ds.Keys() {
		if _, err := model.ParseMinuteKey(key); err != nil {
			issues = append(issues, Issue{
				Key: key, Index: -1, Kind: IssueBadKey, Severity: SeverityError,
				Detail: err.Error(),
			})
			continue
		}

		seen := make(map[string]int, len(ds[key]))
		for i, q := range ds[key] {
			issues = append(issues, checkRecord(key, i, q)...)

			sig := signature(q)
			if first, ok := seen[sig]; ok {
				issues = append(issues, Issue{
					Key: key, Index: i, Kind: IssueDuplicate, Severity: SeverityWarning,
					Detail: fmt.Sprintf("same as #%d", first),
				})
				continue
			}
			seen[sig] = i
		}
	}
	return issues
}

func checkRecord(key string, i int, q model.QuoteRecord) []Issue {
	var issues []Issue
	add := func(kind IssueKind, sev Severity, format string, args ...any) {
		issues = append(issues, Issue{Key: key, Index: i, Kind: kind, Severity: sev, Detail: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(q.QuoteTimeCase) == "" {
		add(IssueEmptyTimeCase, SeverityError, "quote_time_case is empty")
	}
	if q.Original != "" && q.Excerpt() != q.Original {
		add(IssueRoundTrip, SeverityError, "quote_first+quote_time_case+quote_last does not reproduce the excerpt")
	}
	if strings.TrimSpace(q.Author) == "" || strings.TrimSpace(q.Title) == "" {
		add(IssueMissingSource, SeverityWarning, "author or title is empty")
	}
	if n := utf8.RuneCountInString(q.Excerpt()); n < MinQuoteLength || n > MaxQuoteLength {
		add(IssueLength, SeverityWarning, "excerpt is %d characters, want %d..%d", n, MinQuoteLength, MaxQuoteLength)
	}
	return issues
}

// Errors filters issues down to errors.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}
