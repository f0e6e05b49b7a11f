// Package sol computes statute-of-limitations deadlines and urgency
// tiers. The result is derived purely from the accident date, accident
// type, and the current date; it is never persisted as authoritative.
package sol

import (
	"fmt"
	"time"
)

// Urgency is the SOL urgency tier.
type Urgency string

const (
	Safe     Urgency = "safe"
	Warning  Urgency = "warning"
	Urgent   Urgency = "urgent"
	Critical Urgency = "critical"
)

// Status is the computed SOL position for one case.
type Status struct {
	Deadline      time.Time `json:"deadline"`
	DaysRemaining int       `json:"days_remaining"`
	Status        Urgency   `json:"status"`
}

// Config holds the jurisdiction's limitation periods and the urgency
// thresholds. Thresholds are day counts: at or below CriticalDays the
// tier is critical, and so on upward.
type Config struct {
	// Years maps accident type to the limitation period in years.
	Years map[string]int `yaml:"years" json:"years"`
	// DefaultYears applies to accident types not listed in Years.
	DefaultYears int `yaml:"default_years" json:"default_years"`
	CriticalDays int `yaml:"critical_days" json:"critical_days"`
	UrgentDays   int `yaml:"urgent_days" json:"urgent_days"`
	WarningDays  int `yaml:"warning_days" json:"warning_days"`
}

// DefaultConfig returns the originating jurisdiction's defaults:
// two years for motor vehicle claims, one year for premises liability.
func DefaultConfig() Config {
	return Config{
		Years: map[string]int{
			"motor_vehicle": 2,
			"premises":      1,
			"dog_bite":      2,
		},
		DefaultYears: 2,
		CriticalDays: 90,
		UrgentDays:   180,
		WarningDays:  365,
	}
}

// Validate rejects threshold tables that are not strictly monotonic:
// a smaller days-remaining value must never map to a less urgent tier.
func (c Config) Validate() error {
	if c.DefaultYears <= 0 {
		return fmt.Errorf("sol: default_years must be positive, got %d", c.DefaultYears)
	}
	for typ, years := range c.Years {
		if years <= 0 {
			return fmt.Errorf("sol: years for %q must be positive, got %d", typ, years)
		}
	}
	if !(c.CriticalDays < c.UrgentDays && c.UrgentDays < c.WarningDays) {
		return fmt.Errorf("sol: thresholds must satisfy critical < urgent < warning, got %d/%d/%d",
			c.CriticalDays, c.UrgentDays, c.WarningDays)
	}
	return nil
}

// Tracker computes SOL status from configuration.
type Tracker struct {
	cfg Config
}

// NewTracker validates the config and returns a tracker.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{cfg: cfg}, nil
}

// YearsFor returns the limitation period for an accident type.
func (t *Tracker) YearsFor(accidentType string) int {
	if years, ok := t.cfg.Years[accidentType]; ok {
		return years
	}
	return t.cfg.DefaultYears
}

// Compute returns the SOL status as of now. An expired deadline yields
// negative days remaining and the critical tier.
func (t *Tracker) Compute(accidentDate time.Time, accidentType string, now time.Time) Status {
	deadline := accidentDate.AddDate(t.YearsFor(accidentType), 0, 0)

	days := int(deadline.Sub(now).Hours() / 24)

	var tier Urgency
	switch {
	case days <= t.cfg.CriticalDays:
		tier = Critical
	case days <= t.cfg.UrgentDays:
		tier = Urgent
	case days <= t.cfg.WarningDays:
		tier = Warning
	default:
		tier = Safe
	}

	return Status{
		Deadline:      deadline,
		DaysRemaining: days,
		Status:        tier,
	}
}
