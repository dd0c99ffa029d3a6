package model

import "time"

// Shared defaults used by both the clock and the server binaries.
const (
	DefaultPrefetchWindow    = 5 * time.Minute
	DefaultTransitionCover   = 450 * time.Millisecond
	DefaultTransitionPause   = 150 * time.Millisecond
	DefaultTransitionUncover = 450 * time.Millisecond
	DefaultTheme             = "dark"
	DefaultTimezone          = "UTC"
	DefaultDatasetVersion    = "dev"
	HoursPerDay              = 24
	MinutesPerDay            = 24 * 60
)
