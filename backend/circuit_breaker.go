package backend

import (
	"time"

	"github.com/mcrelay/mcrelay/meta"
	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerConfig returns a factory that builds one circuit breaker
// per access point address. AccessPointPool trips it around every request
// so a backend that starts failing stops absorbing fan-out latency instead
// of stalling every route that fans out to it.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) *gobreaker.CircuitBreaker[*meta.Response] {
	return func(serverAddr string) *gobreaker.CircuitBreaker[*meta.Response] {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[*meta.Response](settings)
	}
}
