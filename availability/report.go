package availability

import (
	"context"
	"sort"
	"time"
)

// Report is the JSON-serializable view of the full availability state, as
// exposed on the detailed health endpoint.
type Report struct {
	// OverallStatus is healthy, degraded, failed, or unknown.
	OverallStatus string `json:"overall_status"`

	// AllowConnections reports whether new connections would be admitted.
	AllowConnections bool `json:"allow_connections"`

	// DenialReason explains a false AllowConnections.
	DenialReason string `json:"denial_reason,omitempty"`

	// LastCheck is when the health map was last refreshed.
	LastCheck time.Time `json:"last_check"`

	// CriticalServices holds the per-service view of every critical
	// dependency, keyed by service name.
	CriticalServices map[string]ServiceReport `json:"critical_services"`

	// OptionalServices holds the per-service view of every optional
	// dependency, keyed by service name.
	OptionalServices map[string]ServiceReport `json:"optional_services"`

	// Summary aggregates counts across all services.
	Summary Summary `json:"summary"`
}

// ServiceReport is the JSON-serializable view of one service's health.
type ServiceReport struct {
	Available          bool      `json:"available"`
	Status             string    `json:"status"`
	LastCheck          time.Time `json:"last_check"`
	Error              string    `json:"error,omitempty"`
	ResponseTimeMS     int64     `json:"response_time_ms"`
	CircuitBreakerOpen bool      `json:"circuit_breaker_open"`
}

// Summary aggregates health counts across all monitored services.
type Summary struct {
	TotalServices    int      `json:"total_services"`
	CriticalCount    int      `json:"critical_count"`
	OptionalCount    int      `json:"optional_count"`
	HealthyCount     int      `json:"healthy_count"`
	DegradedCount    int      `json:"degraded_count"`
	FailedCount      int      `json:"failed_count"`
	UnknownCount     int      `json:"unknown_count"`
	DegradedServices []string `json:"degraded_services"`
	FailedServices   []string `json:"failed_services"`
}

// GetHealthReport builds a full availability report, refreshing the health
// map first if it is older than the staleness window. Within the window the
// report is built from the cached records without re-probing.
func (m *Manager) GetHealthReport(ctx context.Context) (*Report, error) {
	if err := m.refreshIfStale(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.config.Clock.Now()
	report := &Report{
		LastCheck:        m.lastCheck,
		CriticalServices: make(map[string]ServiceReport, len(m.config.Dependencies.Critical)),
		OptionalServices: make(map[string]ServiceReport, len(m.config.Dependencies.Optional)),
		Summary: Summary{
			CriticalCount:    len(m.config.Dependencies.Critical),
			OptionalCount:    len(m.config.Dependencies.Optional),
			DegradedServices: []string{},
			FailedServices:   []string{},
		},
	}

	for _, st := range m.config.Dependencies.Critical {
		report.CriticalServices[string(st)] = m.serviceReportLocked(st, now)
	}
	for _, st := range m.config.Dependencies.Optional {
		report.OptionalServices[string(st)] = m.serviceReportLocked(st, now)
	}

	allUnknown := true
	anyImpaired := false
	for st, rec := range m.records {
		report.Summary.TotalServices++
		switch rec.Status {
		case StatusHealthy:
			report.Summary.HealthyCount++
			allUnknown = false
		case StatusDegraded:
			report.Summary.DegradedCount++
			report.Summary.DegradedServices = append(report.Summary.DegradedServices, string(st))
			allUnknown = false
			anyImpaired = true
		case StatusFailed:
			report.Summary.FailedCount++
			report.Summary.FailedServices = append(report.Summary.FailedServices, string(st))
			allUnknown = false
			anyImpaired = true
		default:
			report.Summary.UnknownCount++
		}
	}
	sort.Strings(report.Summary.DegradedServices)
	sort.Strings(report.Summary.FailedServices)

	report.AllowConnections, report.DenialReason = m.decideLocked(now)

	switch {
	case allUnknown:
		report.OverallStatus = "unknown"
	case len(m.unavailableCriticalLocked(now)) > 0:
		report.OverallStatus = "failed"
	case anyImpaired:
		report.OverallStatus = "degraded"
	default:
		report.OverallStatus = "healthy"
	}

	return report, nil
}

// serviceReportLocked builds the per-service view. Caller holds m.mu.
func (m *Manager) serviceReportLocked(st ServiceType, now time.Time) ServiceReport {
	rec, ok := m.records[st]
	if !ok {
		return ServiceReport{Status: StatusUnknown.String()}
	}
	return ServiceReport{
		Available:          m.availableLocked(st, now),
		Status:             rec.Status.String(),
		LastCheck:          rec.LastCheck,
		Error:              rec.ErrorMessage,
		ResponseTimeMS:     rec.ResponseTime.Milliseconds(),
		CircuitBreakerOpen: rec.BreakerOpen,
	}
}
