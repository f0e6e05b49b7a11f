package sol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestComputeTiers(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	accident := date(2024, 1, 1)

	tests := []struct {
		name string
		now  time.Time
		tier Urgency
	}{
		{name: "fresh case", now: date(2024, 1, 15), tier: Safe},
		{name: "inside warning window", now: date(2025, 3, 1), tier: Warning},
		{name: "inside urgent window", now: date(2025, 8, 1), tier: Urgent},
		{name: "inside critical window", now: date(2025, 11, 1), tier: Critical},
		{name: "deadline day", now: date(2026, 1, 1), tier: Critical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tracker.Compute(accident, "motor_vehicle", tt.now)
			assert.Equal(t, tt.tier, st.Status)
			assert.Equal(t, date(2026, 1, 1), st.Deadline)
		})
	}
}

func TestComputeExpiredDeadline(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	// Motor vehicle has a 2-year SOL: an accident 2 years and 1 day ago
	// is past the deadline.
	now := date(2026, 1, 2)
	accident := date(2024, 1, 1)

	st := tracker.Compute(accident, "motor_vehicle", now)
	assert.Negative(t, st.DaysRemaining)
	assert.Equal(t, Critical, st.Status)
}

func TestComputePerTypePeriods(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	accident := date(2024, 6, 1)

	premises := tracker.Compute(accident, "premises", date(2024, 6, 2))
	assert.Equal(t, date(2025, 6, 1), premises.Deadline)

	// Unknown types fall back to the default period.
	unknown := tracker.Compute(accident, "unicycle", date(2024, 6, 2))
	assert.Equal(t, date(2026, 6, 1), unknown.Deadline)
}

func TestStatusNeverDeEscalates(t *testing.T) {
	tracker, err := NewTracker(DefaultConfig())
	require.NoError(t, err)

	accident := date(2024, 1, 1)
	rank := map[Urgency]int{Safe: 0, Warning: 1, Urgent: 2, Critical: 3}

	prev := -1
	for now := accident; now.Before(accident.AddDate(3, 0, 0)); now = now.AddDate(0, 0, 7) {
		st := tracker.Compute(accident, "motor_vehicle", now)
		if rank[st.Status] < prev {
			t.Fatalf("urgency de-escalated at %s: %s", now.Format("2006-01-02"), st.Status)
		}
		prev = rank[st.Status]
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(*Config) {}},
		{name: "inverted thresholds", mutate: func(c *Config) { c.CriticalDays = 400 }, wantErr: true},
		{name: "equal thresholds", mutate: func(c *Config) { c.UrgentDays = c.WarningDays }, wantErr: true},
		{name: "zero default years", mutate: func(c *Config) { c.DefaultYears = 0 }, wantErr: true},
		{name: "negative type years", mutate: func(c *Config) { c.Years["premises"] = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
