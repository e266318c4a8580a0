// Package connectivity tracks whether the origin is reachable and reports
// offline to online transitions, which trigger deferred-write syncs.
package connectivity

import "time"

// DefaultFailureThreshold is the number of consecutive network failures
// after which the origin is considered offline.
const DefaultFailureThreshold = 1

// State is the current connectivity state.
type State struct {
	// Online is false once ConsecutiveFailures reached the threshold.
	Online bool `json:"online"`

	// ConsecutiveFailures counts network failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastChange is when Online last flipped.
	LastChange time.Time `json:"last_change"`

	// LastUpdate is when any outcome was last recorded.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if no outcome was recorded within maxAge.
func (s State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// OfflineFor returns how long the origin has been unreachable, or 0 when online.
func (s State) OfflineFor() time.Duration {
	if s.Online || s.LastChange.IsZero() {
		return 0
	}
	return time.Since(s.LastChange)
}
