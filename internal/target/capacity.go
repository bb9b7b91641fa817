package target

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// capacityLimiter sheds requests once the simulated service is saturated.
// A nil limiter admits everything.
type capacityLimiter struct {
	limiter *rate.Limiter
	shed    atomic.Int64
}

func newCapacityLimiter(ratePerSecond float64, burst int) *capacityLimiter {
	if ratePerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &capacityLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Allow checks if a request can proceed
func (c *capacityLimiter) Allow() bool {
	if c == nil {
		return true
	}
	if c.limiter.Allow() {
		return true
	}
	c.shed.Add(1)
	return false
}

// Shed returns how many requests were rejected.
func (c *capacityLimiter) Shed() int64 {
	if c == nil {
		return 0
	}
	return c.shed.Load()
}
