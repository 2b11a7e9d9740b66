package quota_test

import (
	"testing"
	"time"

	"github.com/tollgate/tollgate/domain/quota"
)

func TestCheckFree(t *testing.T) {
	tests := []struct {
		name       string
		usedToday  int64
		limit      int64
		wantAllow  bool
		wantReason string
	}{
		{
			name:      "no usage yet",
			usedToday: 0,
			limit:     100,
			wantAllow: true,
		},
		{
			name:      "one below limit admits once more",
			usedToday: 99,
			limit:     100,
			wantAllow: true,
		},
		{
			name:       "at limit rejects",
			usedToday:  100,
			limit:      100,
			wantAllow:  false,
			wantReason: quota.ReasonQuotaExceeded,
		},
		{
			name:       "over limit rejects",
			usedToday:  250,
			limit:      100,
			wantAllow:  false,
			wantReason: quota.ReasonQuotaExceeded,
		},
		{
			name:       "zero limit rejects everything",
			usedToday:  0,
			limit:      0,
			wantAllow:  false,
			wantReason: quota.ReasonQuotaExceeded,
		},
		{
			name:      "negative limit means unlimited",
			usedToday: 1000000,
			limit:     -1,
			wantAllow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := quota.CheckFree(tt.usedToday, tt.limit)

			if result.Allowed != tt.wantAllow {
				t.Errorf("CheckFree() allowed = %v, want %v", result.Allowed, tt.wantAllow)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("CheckFree() reason = %q, want %q", result.Reason, tt.wantReason)
			}
			if result.CurrentUsage != tt.usedToday {
				t.Errorf("CheckFree() currentUsage = %d, want %d", result.CurrentUsage, tt.usedToday)
			}
		})
	}
}

func TestCheckPaid(t *testing.T) {
	good := quota.CheckPaid(false)
	if !good.Allowed {
		t.Error("CheckPaid(false) allowed = false, want true")
	}
	if good.Limit != -1 {
		t.Errorf("CheckPaid(false) limit = %d, want -1", good.Limit)
	}

	bad := quota.CheckPaid(true)
	if bad.Allowed {
		t.Error("CheckPaid(true) allowed = true, want false")
	}
	if bad.Reason != quota.ReasonDelinquent {
		t.Errorf("CheckPaid(true) reason = %q, want %q", bad.Reason, quota.ReasonDelinquent)
	}
}

func TestDayStartUTC(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "midday utc",
			in:   time.Date(2026, 3, 15, 12, 30, 45, 123, time.UTC),
			want: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly midnight",
			in:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "one nanosecond before midnight stays on the old day",
			in:   time.Date(2026, 3, 15, 23, 59, 59, 999999999, time.UTC),
			want: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non-utc location converts before truncation",
			in:   time.Date(2026, 3, 15, 1, 0, 0, 0, time.FixedZone("UTC+5", 5*3600)),
			want: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := quota.DayStartUTC(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("DayStartUTC(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("DayStartUTC() location = %v, want UTC", got.Location())
			}
		})
	}
}
