package resilience

import (
	"fmt"
	"time"

	"github.com/jonwraymond/connguard/clock"
)

// Config configures a circuit breaker. All numeric fields must be strictly
// positive and BaseDelay must not exceed MaxDelay.
type Config struct {
	// FailureThreshold is the number of failures before opening the circuit.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before admitting
	// half-open probe calls.
	// Default: 60 seconds
	RecoveryTimeout time.Duration

	// SuccessThreshold is the number of half-open successes required to
	// close the circuit.
	// Default: 2
	SuccessThreshold int

	// MaxRetryAttempts is the maximum number of attempts per Call
	// (including the initial one).
	// Default: 3
	MaxRetryAttempts int

	// BaseDelay is the backoff delay after the first failed attempt. The
	// delay doubles each attempt up to MaxDelay.
	// Default: 2 seconds
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay between attempts.
	// Default: 120 seconds
	MaxDelay time.Duration

	// Timeout bounds each individual attempt.
	// Default: 15 seconds
	Timeout time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// Clock supplies time and scheduling. Defaults to clock.System().
	Clock clock.Clock
}

// withDefaults returns a copy of the config with defaults applied.
func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.MaxRetryAttempts <= 0 {
		c.MaxRetryAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 120 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clock.System()
	}
	return c
}

// Validate checks the config invariants. A zero value in a numeric field is
// reported as invalid; use the zero Config with NewCircuitBreaker to get
// defaults instead.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("%w: failure threshold must be positive, got %d", ErrInvalidConfig, c.FailureThreshold)
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("%w: recovery timeout must be positive, got %v", ErrInvalidConfig, c.RecoveryTimeout)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("%w: success threshold must be positive, got %d", ErrInvalidConfig, c.SuccessThreshold)
	}
	if c.MaxRetryAttempts < 1 {
		return fmt.Errorf("%w: max retry attempts must be at least 1, got %d", ErrInvalidConfig, c.MaxRetryAttempts)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive, got %v", ErrInvalidConfig, c.BaseDelay)
	}
	if c.MaxDelay <= 0 {
		return fmt.Errorf("%w: max delay must be positive, got %v", ErrInvalidConfig, c.MaxDelay)
	}
	if c.BaseDelay > c.MaxDelay {
		return fmt.Errorf("%w: base delay %v exceeds max delay %v", ErrInvalidConfig, c.BaseDelay, c.MaxDelay)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: attempt timeout must be positive, got %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// StagingConfig returns the circuit breaker preset for staging environments:
// trips quickly and retries aggressively.
func StagingConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  15 * time.Second,
		SuccessThreshold: 2,
		MaxRetryAttempts: 5,
		BaseDelay:        500 * time.Millisecond,
		MaxDelay:         30 * time.Second,
		Timeout:          10 * time.Second,
	}
}

// ProductionConfig returns the circuit breaker preset for production:
// conservative thresholds and long recovery windows.
func ProductionConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
		MaxRetryAttempts: 3,
		BaseDelay:        2 * time.Second,
		MaxDelay:         120 * time.Second,
		Timeout:          15 * time.Second,
	}
}

// DevelopmentConfig returns the circuit breaker preset for local development:
// tolerant of repeated failures with short delays.
func DevelopmentConfig() Config {
	return Config{
		FailureThreshold: 10,
		RecoveryTimeout:  5 * time.Second,
		SuccessThreshold: 2,
		MaxRetryAttempts: 3,
		BaseDelay:        100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Timeout:          5 * time.Second,
	}
}

// ConfigForEnvironment resolves an environment tag to its preset config.
// Recognized environments: "staging", "production", "development".
func ConfigForEnvironment(env string) (Config, error) {
	switch env {
	case "staging":
		return StagingConfig(), nil
	case "production":
		return ProductionConfig(), nil
	case "development":
		return DevelopmentConfig(), nil
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
}
