/*
Package resilience provides a circuit breaker for remote result sinks.

# Overview

A sink that publishes to a message bus or a webhook should not stall the
commit stage while the remote end is down. Calls go through a Breaker, which
fails fast once too many consecutive calls have failed and lets a trial call
through after a timeout.

# Usage

	breaker := resilience.New("webhook", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return post(ctx, body)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open
*/
package resilience
