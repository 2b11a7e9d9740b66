// Package billing provides invoice value types and pure billing arithmetic.
package billing

import "time"

// DuePeriod is how long an account has to settle an invoice after issuance.
const DuePeriod = 60 * 24 * time.Hour

// Invoice represents a monthly usage invoice (value type).
type Invoice struct {
	ID        int64
	AccountID string
	Amount    float64
	Paid      bool
	IssuedAt  time.Time
	DueAt     time.Time
}

// PeriodMarker records that invoices for a calendar month have been issued.
// At most one marker exists per (Month, Year).
type PeriodMarker struct {
	Month    time.Month
	Year     int
	IssuedAt time.Time
}

// PriorPeriod returns the calendar month immediately before the one
// containing now. January rolls back to December of the previous year.
// This is a PURE function.
func PriorPeriod(now time.Time) (time.Month, int) {
	u := now.UTC()
	if u.Month() == time.January {
		return time.December, u.Year() - 1
	}
	return u.Month() - 1, u.Year()
}

// MonthBounds returns the half-open interval [start, end) covering the given
// calendar month in UTC. Usage with start <= t < end belongs to the month.
// This is a PURE function.
func MonthBounds(month time.Month, year int) (start, end time.Time) {
	start = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return
}

// Amount computes the charge for a request count at the given unit size.
// requestsPerUnit requests cost one currency unit; partial units are billed
// pro rata. A non-positive unit size yields a zero amount.
// This is a PURE function.
func Amount(requests int64, requestsPerUnit int64) float64 {
	if requestsPerUnit <= 0 {
		return 0
	}
	return float64(requests) / float64(requestsPerUnit)
}

// DueDate returns when an invoice issued at the given time falls due.
// This is a PURE function.
func DueDate(issuedAt time.Time) time.Time {
	return issuedAt.Add(DuePeriod)
}

// Overdue reports whether an unpaid invoice is past its due date at now.
// This is a PURE function.
func Overdue(inv Invoice, now time.Time) bool {
	return !inv.Paid && now.After(inv.DueAt)
}
