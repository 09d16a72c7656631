package monitoring

import (
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
)

// ProbeSchedule bounds the probing phase before a launch: up to Attempts probes,
// each limited to Timeout, spaced by Interval
type ProbeSchedule struct {
	Attempts int           `yaml:"max_attempts,omitempty"`
	Timeout  time.Duration `yaml:"probe_timeout,omitempty"`
	Interval time.Duration `yaml:"probe_interval,omitempty"`
}

const (
	DefaultProbeAttempts = 5
	DefaultProbeTimeout  = 2 * time.Second
	DefaultProbeInterval = 2 * time.Second
)

// DefaultProbeSchedule is five probes of at most 2s, 2s apart
func DefaultProbeSchedule() ProbeSchedule {
	return ProbeSchedule{
		Attempts: DefaultProbeAttempts,
		Timeout:  DefaultProbeTimeout,
		Interval: DefaultProbeInterval,
	}
}

// ValidateProbeSchedule validates probe schedule options
func ValidateProbeSchedule(schedule ProbeSchedule) error {
	if schedule.Attempts <= 0 {
		return errors.NewValidationError("probe attempts must be positive", nil)
	}
	if schedule.Timeout <= 0 {
		return errors.NewValidationError("probe timeout must be positive", nil)
	}
	if schedule.Interval < 0 {
		return errors.NewValidationError("probe interval cannot be negative", nil)
	}
	return nil
}
