package loadtest

import (
	"fmt"
	"time"
)

// BreakCriteria decides whether a stress step has broken the target.
type BreakCriteria struct {
	MinSuccessRate float64       // Percent; below this the step breaks
	MaxAvgLatency  time.Duration // Above this the step breaks
}

// DefaultBreakCriteria returns the 95% success / 10s average latency rule.
func DefaultBreakCriteria() BreakCriteria {
	return BreakCriteria{
		MinSuccessRate: 95.0,
		MaxAvgLatency:  10 * time.Second,
	}
}

// Validate checks that the criteria can ever pass.
func (c BreakCriteria) Validate() error {
	if c.MinSuccessRate < 0 || c.MinSuccessRate > 100 {
		return invalidf("min success rate must be within 0-100, got %g", c.MinSuccessRate)
	}
	if c.MaxAvgLatency <= 0 {
		return invalidf("max average latency must be positive, got %s", c.MaxAvgLatency)
	}
	return nil
}

// Evaluate reports whether s violates the criteria, and why.
func (c BreakCriteria) Evaluate(s Summary) (bool, string) {
	if s.SuccessRate < c.MinSuccessRate {
		return true, fmt.Sprintf("success rate %.1f%% below %.1f%%", s.SuccessRate, c.MinSuccessRate)
	}
	if s.AvgLatency > c.MaxAvgLatency {
		return true, fmt.Sprintf("average latency %s above %s", s.AvgLatency.Round(time.Millisecond), c.MaxAvgLatency)
	}
	return false, ""
}
