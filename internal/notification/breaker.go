package notification

import (
	"time"

	"github.com/tbauer79999/rei-crm-sub004/platform/logger"

	"github.com/sony/gobreaker"
)

const (
	breakerHalfOpenRequests = 1
	breakerInterval         = 60 * time.Second
	breakerOpenTimeout      = 30 * time.Second
	breakerConsecutiveFails = 5
	breakerMinRequests      = 10
	breakerFailureRatio     = 0.6
)

// newBreaker trips a channel after repeated failures so a dead provider fails
// fast instead of eating the per-channel timeout on every alert.
func newBreaker(channel Channel, log *logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notify-" + string(channel),
		MaxRequests: breakerHalfOpenRequests,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= breakerConsecutiveFails {
				return true
			}
			if counts.Requests < breakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	})
}
