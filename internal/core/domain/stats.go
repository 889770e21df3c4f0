package domain

// StatsSummary aggregates the whole store. It is composed from independent
// reads and is not a consistent snapshot; small skew between counters under
// concurrent ingestion is acceptable.
type StatsSummary struct {
	TotalEvents      int64
	UniqueSessions   int64
	EventsByType     map[string]int64
	SessionsWithLeak int64
	LeakageRate      string
}
