// Package quota provides pure functions for admission policy decisions.
// All functions are deterministic with no side effects.
package quota

import "time"

// Reasons for a policy denial.
const (
	ReasonQuotaExceeded = "quota_exceeded"
	ReasonDelinquent    = "delinquent_account"
)

// CheckResult represents the outcome of a policy check (value type).
type CheckResult struct {
	Allowed      bool
	CurrentUsage int64
	Limit        int64 // -1 = unlimited
	Reason       string
}

// CheckFree decides whether a free-tier request is admitted given the number
// of requests already recorded today. The incoming request itself is not
// counted: a key that has used exactly limit-1 requests is admitted once more.
// This is a PURE function.
func CheckFree(usedToday, limit int64) CheckResult {
	if limit < 0 {
		return CheckResult{
			Allowed:      true,
			CurrentUsage: usedToday,
			Limit:        -1,
		}
	}

	if usedToday >= limit {
		return CheckResult{
			Allowed:      false,
			CurrentUsage: usedToday,
			Limit:        limit,
			Reason:       ReasonQuotaExceeded,
		}
	}

	return CheckResult{
		Allowed:      true,
		CurrentUsage: usedToday,
		Limit:        limit,
	}
}

// CheckPaid decides whether a paid-tier request is admitted. Paid keys are
// never quota-limited; the only gate is the account's payment standing.
// This is a PURE function.
func CheckPaid(delinquent bool) CheckResult {
	if delinquent {
		return CheckResult{
			Allowed: false,
			Limit:   -1,
			Reason:  ReasonDelinquent,
		}
	}

	return CheckResult{
		Allowed: true,
		Limit:   -1,
	}
}

// DayStartUTC returns the start of the UTC calendar day containing t.
// Free-tier quota windows are keyed on this boundary regardless of the
// caller's location.
// This is a PURE function.
func DayStartUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
