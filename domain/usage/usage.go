// Package usage provides the usage ledger record type and aggregation
// functions. All functions are pure - no side effects.
package usage

import "time"

// Record is one admitted request in the ledger (immutable value type).
// Exactly one record exists per admitted request; rejected requests are
// never recorded.
type Record struct {
	ID        string
	KeyID     string
	AccountID string
	Method    string
	Path      string
	SourceIP  string
	Timestamp time.Time
}

// Summary is aggregated ledger activity for one account over a period.
type Summary struct {
	AccountID    string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	RequestCount int64
}

// CountByAccount groups records by account ID.
// This is a PURE function.
func CountByAccount(records []Record) map[string]int64 {
	counts := make(map[string]int64)
	for _, r := range records {
		counts[r.AccountID]++
	}
	return counts
}

// FilterPeriod returns the records whose timestamps fall in [start, end).
// This is a PURE function.
func FilterPeriod(records []Record, start, end time.Time) []Record {
	var out []Record
	for _, r := range records {
		ts := r.Timestamp
		if !ts.Before(start) && ts.Before(end) {
			out = append(out, r)
		}
	}
	return out
}
