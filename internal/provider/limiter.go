package provider

import (
	"time"

	"golang.org/x/time/rate"
)

// newLimiter allows perMinute calls per minute with a small burst.
func newLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}
