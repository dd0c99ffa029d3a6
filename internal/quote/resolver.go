// Package quote selects the quote to display for a minute and normalises
// dataset text for display.
package quote

import (
	"math/rand/v2"

	"github.com/tinytelemetry/litclock/internal/model"
)

// PartitionSource returns resident hour partitions. The second result is
// false when the partition is not loaded.
type PartitionSource interface {
	Get(hourKey string) (model.QuotePartition, bool)
}

// Rand is the randomness capability used for selection.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Resolver maps a time of day and a 12/24-hour preference to one quote.
type Resolver struct {
	source PartitionSource
	rng    Rand
}

// NewResolver creates a resolver reading from source. A nil rng uses the
// unseeded math/rand/v2 generator.
func NewResolver(source PartitionSource, rng Rand) *Resolver {
	if rng == nil {
		rng = globalRand{}
	}
	return &Resolver{source: source, rng: rng}
}

// Resolve picks a quote for t. Quotes whose format matches use24Hour, or
// is ambiguous, are preferred; when none match, any quote for the minute
// may be returned. The second result is false when the partition is not
// resident or the minute has no quotes.
func (r *Resolver) Resolve(t model.TimeOfDay, use24Hour bool) (model.QuoteRecord, bool) {
	part, ok := r.source.Get(t.HourKey())
	if !ok {
		return model.QuoteRecord{}, false
	}
	return Pick(part[t.MinuteKey()], use24Hour, r.rng)
}

// Pick applies the format preference and fallback to one minute's
// candidates.
func Pick(candidates []model.QuoteRecord, use24Hour bool, rng Rand) (model.QuoteRecord, bool) {
	if len(candidates) == 0 {
		return model.QuoteRecord{}, false
	}
	if rng == nil {
		rng = globalRand{}
	}

	matching := make([]int, 0, len(candidates))
	for i, q := range candidates {
		if Classify(q.QuoteTimeCase).Compatible(use24Hour) {
			matching = append(matching, i)
		}
	}
	if len(matching) > 0 {
		return candidates[matching[rng.IntN(len(matching))]], true
	}
	return candidates[rng.IntN(len(candidates))], true
}

// Display returns q with markup stripped from every text span.
func Display(q model.QuoteRecord) model.QuoteRecord {
	q.QuoteFirst = PlainText(q.QuoteFirst)
	q.QuoteTimeCase = PlainText(q.QuoteTimeCase)
	q.QuoteLast = PlainText(q.QuoteLast)
	return q
}
