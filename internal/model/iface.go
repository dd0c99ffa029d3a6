package model

import "context"

// PartitionReader reads one hour partition from durable storage.
type PartitionReader interface {
	Partition(ctx context.Context, hourKey string) (QuotePartition, error)
}

// DatasetStats summarises coverage of a dataset.
type DatasetStats struct {
	Total          int
	MinutesCovered int
	ByHour         [HoursPerDay]int
}

// StatsReader reports per-hour coverage for read surfaces (HTTP and TUI).
type StatsReader interface {
	Stats(ctx context.Context) (DatasetStats, error)
}
