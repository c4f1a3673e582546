package marketdata

import "time"

// ProviderHealth is the health state of an upstream client, reported by the
// /health endpoint.
type ProviderHealth struct {
	// Provider is the client name (e.g. "coingecko", "exchangerate")
	Provider string `json:"provider"`

	LastSuccess  time.Time     `json:"last_success"`
	LastFailure  time.Time     `json:"last_failure"`
	LastError    string        `json:"last_error,omitempty"`
	LastDuration time.Duration `json:"last_duration"`

	// ConsecutiveFailures resets on the first success
	ConsecutiveFailures int `json:"consecutive_failures"`

	// CircuitState is closed, open or half-open
	CircuitState string `json:"circuit_state"`

	// Throttled is set while rate limit responses hold the request rate
	// below its base
	Throttled     bool  `json:"throttled"`
	RateLimitHits int64 `json:"rate_limit_hits"`
}

// Healthy reports whether the last call succeeded and the circuit is not open
func (h ProviderHealth) Healthy() bool {
	return h.ConsecutiveFailures == 0 && h.CircuitState != "open"
}

// HealthProvider is implemented by clients that expose their health.
// Health must be safe for concurrent use and non-blocking.
type HealthProvider interface {
	Health() ProviderHealth
}
