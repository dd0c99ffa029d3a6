package model

import (
	"fmt"
	"strconv"
	"time"
)

// QuoteRecord is one literary excerpt split around its time-referencing span.
// QuoteFirst + QuoteTimeCase + QuoteLast reproduces the original excerpt.
type QuoteRecord struct {
	QuoteFirst    string `json:"quote_first"`
	QuoteTimeCase string `json:"quote_time_case"`
	QuoteLast     string `json:"quote_last"`
	Author        string `json:"author"`
	Title         string `json:"title"`
	SFW           string `json:"sfw,omitempty"`

	// Original is the unsplit excerpt when the dataset ships it. Only
	// integrity checks read it.
	Original string `json:"excerpt,omitempty"`
}

// Excerpt rejoins the three text spans.
func (q QuoteRecord) Excerpt() string {
	return q.QuoteFirst + q.QuoteTimeCase + q.QuoteLast
}

// QuotePartition maps "HH:MM" keys to the candidate quotes for that minute.
// One partition exists per hour of the day.
type QuotePartition map[string][]QuoteRecord

// Count returns the number of quotes across all minutes in the partition.
func (p QuotePartition) Count() int {
	n := 0
	for _, quotes := range p {
		n += len(quotes)
	}
	return n
}

// TimeOfDay is an hour/minute pair read from a timezone-aware clock.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// TimeOfDayFrom extracts the hour and minute of t in its own location.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// MinuteIndex is hour*60+minute, the per-day dedupe key.
func (t TimeOfDay) MinuteIndex() int {
	return t.Hour*60 + t.Minute
}

// MinuteKey formats the zero-padded "HH:MM" lookup key.
func (t TimeOfDay) MinuteKey() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// HourKey formats the zero-padded "HH" partition key.
func (t TimeOfDay) HourKey() string {
	return HourKey(t.Hour)
}

// NextHour returns the time of day one hour later, wrapping at midnight.
func (t TimeOfDay) NextHour() TimeOfDay {
	return TimeOfDay{Hour: (t.Hour + 1) % HoursPerDay, Minute: t.Minute}
}

// Valid reports whether hour and minute are within range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < HoursPerDay && t.Minute >= 0 && t.Minute < 60
}

// HourKey formats an hour as a zero-padded partition key.
func HourKey(hour int) string {
	return fmt.Sprintf("%02d", hour)
}

// ParseHourKey parses a "HH" partition key.
func ParseHourKey(key string) (int, error) {
	if len(key) != 2 {
		return 0, fmt.Errorf("hour key %q: want two digits", key)
	}
	h, err := strconv.Atoi(key)
	if err != nil || h < 0 || h >= HoursPerDay {
		return 0, fmt.Errorf("hour key %q: out of range", key)
	}
	return h, nil
}

// ParseMinuteKey parses a zero-padded "HH:MM" key.
func ParseMinuteKey(key string) (TimeOfDay, error) {
	if len(key) != 5 || key[2] != ':' {
		return TimeOfDay{}, fmt.Errorf("minute key %q: want HH:MM", key)
	}
	h, err := strconv.Atoi(key[:2])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("minute key %q: bad hour", key)
	}
	m, err := strconv.Atoi(key[3:])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("minute key %q: bad minute", key)
	}
	t := TimeOfDay{Hour: h, Minute: m}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("minute key %q: out of range", key)
	}
	return t, nil
}

// DatasetManifest describes one published set of hour partitions.
type DatasetManifest struct {
	Version     string         `json:"version"`
	GeneratedAt time.Time      `json:"generated_at"`
	Total       int            `json:"total"`
	Counts      map[string]int `json:"counts"`
}
