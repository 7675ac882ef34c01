package availability

import (
	"context"
	"fmt"
	"time"
)

// ServiceType identifies a monitored dependency.
type ServiceType string

// The dependencies monitored by default. Additional service types may be
// introduced by registering a probe for them; they are classified as
// optional unless listed in the dependency map's critical set.
const (
	// ServiceAuth is the authentication subsystem.
	ServiceAuth ServiceType = "auth"
	// ServiceDatastore is the primary datastore.
	ServiceDatastore ServiceType = "datastore"
	// ServiceCache is the shared cache.
	ServiceCache ServiceType = "cache"
	// ServiceBridge is the message bridge.
	ServiceBridge ServiceType = "bridge"
	// ServiceOrchestrator is the agent orchestrator.
	ServiceOrchestrator ServiceType = "orchestrator"
	// ServiceToolRegistry is the tool registry.
	ServiceToolRegistry ServiceType = "tool_registry"
	// ServiceSessionStore is the thread/session store.
	ServiceSessionStore ServiceType = "session_store"
)

// AllServiceTypes returns the built-in service enumeration.
func AllServiceTypes() []ServiceType {
	return []ServiceType{
		ServiceAuth,
		ServiceDatastore,
		ServiceCache,
		ServiceBridge,
		ServiceOrchestrator,
		ServiceToolRegistry,
		ServiceSessionStore,
	}
}

// Status represents the health status of a service.
type Status int

const (
	// StatusUnknown means the service has not been probed yet.
	StatusUnknown Status = iota
	// StatusHealthy means the service is functioning normally.
	StatusHealthy
	// StatusDegraded means the service is functioning but with issues.
	StatusDegraded
	// StatusFailed means the service is not functioning.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a single health probe.
type Result struct {
	// Status is the probed health status.
	Status Status

	// Message provides additional context about the status.
	Message string

	// Err is the error if the probe failed.
	Err error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message}
}

// Failed creates a failed result.
func Failed(message string, err error) Result {
	return Result{Status: StatusFailed, Message: message, Err: err}
}

// Probe is an async health check for a single service. Probes are supplied
// by callers; the manager bounds each invocation with its own timeout and
// contains errors and panics, so a probe may simply report what it sees.
type Probe func(ctx context.Context) Result

// HealthInfo is the manager-owned health record for one service. Accessors
// return copies; only the manager's update routine mutates a record.
type HealthInfo struct {
	// Status is the last probed status.
	Status Status

	// LastCheck is when the service was last probed.
	LastCheck time.Time

	// ErrorMessage describes the last failure, if any.
	ErrorMessage string

	// ResponseTime is the duration of the last probe.
	ResponseTime time.Duration

	// ConsecutiveFailures counts the current failure streak.
	ConsecutiveFailures int

	// BreakerOpen reports whether the per-service failure-streak breaker
	// is open.
	BreakerOpen bool

	// BreakerUntil is when an open breaker next admits a probe opportunity.
	BreakerUntil time.Time
}

// DependencyMap classifies services as critical or optional. An unavailable
// critical service blocks all new connection admission; optional services
// degrade the experience up to the configured ceiling.
type DependencyMap struct {
	Critical []ServiceType
	Optional []ServiceType
}

// DefaultDependencyMap returns the standard classification: authentication,
// the primary datastore, and the orchestrator are critical; everything else
// is optional.
func DefaultDependencyMap() DependencyMap {
	return DependencyMap{
		Critical: []ServiceType{ServiceAuth, ServiceDatastore, ServiceOrchestrator},
		Optional: []ServiceType{ServiceCache, ServiceBridge, ServiceToolRegistry, ServiceSessionStore},
	}
}

// Validate checks that every built-in service appears in exactly one set and
// that the sets are disjoint.
func (d DependencyMap) Validate() error {
	seen := make(map[ServiceType]int, len(d.Critical)+len(d.Optional))
	for _, st := range d.Critical {
		seen[st]++
	}
	for _, st := range d.Optional {
		seen[st]++
	}

	for st, count := range seen {
		if count > 1 {
			return fmt.Errorf("%w: service %q classified more than once", ErrInvalidDependencyMap, st)
		}
	}
	for _, st := range AllServiceTypes() {
		if seen[st] == 0 {
			return fmt.Errorf("%w: service %q not classified", ErrInvalidDependencyMap, st)
		}
	}
	return nil
}

// IsCritical reports whether the given service is in the critical set.
func (d DependencyMap) IsCritical(st ServiceType) bool {
	for _, c := range d.Critical {
		if c == st {
			return true
		}
	}
	return false
}
