package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/connguard/clock"
	"github.com/jonwraymond/connguard/observe"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Dependencies classifies services as critical or optional.
	// Default: DefaultDependencyMap().
	Dependencies DependencyMap

	// ProbeTimeout bounds each individual health probe.
	// Default: 5s.
	ProbeTimeout time.Duration

	// MaxConsecutiveFailures is the failure streak that opens a service's
	// breaker. Default: 3.
	MaxConsecutiveFailures int

	// BreakerTimeout is how long an open breaker holds before one probe is
	// allowed through as a recovery opportunity. Default: 60s.
	BreakerTimeout time.Duration

	// DegradedThreshold is the number of degraded services at which new
	// connections are denied even when all critical services are available.
	// Default: 3.
	DegradedThreshold int

	// StalenessWindow is how old the health map may be before admission
	// checks trigger a refresh. Default: 30s.
	StalenessWindow time.Duration

	// Clock supplies time and timeout-bounded execution. Default: the
	// system clock.
	Clock clock.Clock

	// Logger receives structured admission and probe events. Default: a
	// no-op logger.
	Logger observe.Logger

	// Metrics receives probe and admission measurements. Default: no-op
	// metrics.
	Metrics observe.Metrics
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if len(c.Dependencies.Critical) == 0 && len(c.Dependencies.Optional) == 0 {
		c.Dependencies = DefaultDependencyMap()
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 3
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 60 * time.Second
	}
	if c.DegradedThreshold <= 0 {
		c.DegradedThreshold = 3
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clock.System()
	}
	if c.Logger == nil {
		c.Logger = observe.NopLogger()
	}
	if c.Metrics == nil {
		c.Metrics = observe.NopMetrics()
	}
	return c
}

// Manager tracks the health of the service's dependencies and decides
// whether new connections should be admitted. It is safe for concurrent use.
type Manager struct {
	config ManagerConfig

	mu        sync.RWMutex
	probes    map[ServiceType]Probe
	records   map[ServiceType]*HealthInfo
	lastCheck time.Time

	refresh singleflight.Group
}

// NewManager creates a Manager with every classified service seeded in the
// unknown state. Probes are attached with RegisterProbe.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Dependencies.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		config:  cfg,
		probes:  make(map[ServiceType]Probe),
		records: make(map[ServiceType]*HealthInfo),
	}
	for _, st := range cfg.Dependencies.Critical {
		m.records[st] = &HealthInfo{Status: StatusUnknown}
	}
	for _, st := range cfg.Dependencies.Optional {
		m.records[st] = &HealthInfo{Status: StatusUnknown}
	}
	return m, nil
}

// RegisterProbe attaches a health probe to a service. Registering a service
// outside the dependency map adds it as an optional dependency.
func (m *Manager) RegisterProbe(st ServiceType, probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.probes[st] = probe
	if _, ok := m.records[st]; !ok {
		m.records[st] = &HealthInfo{Status: StatusUnknown}
		m.config.Dependencies.Optional = append(m.config.Dependencies.Optional, st)
	}
}

// probeOutcome is the contained result of one probe invocation.
type probeOutcome struct {
	service ServiceType
	result  Result
	elapsed time.Duration
}

// CheckAllServices probes every registered service concurrently and applies
// the results atomically. Each probe is bounded by the configured timeout;
// probe errors and panics are contained and recorded as failed status, never
// propagated. A cancelled context returns ctx.Err() without applying any
// partial results.
func (m *Manager) CheckAllServices(ctx context.Context) (map[ServiceType]HealthInfo, error) {
	m.mu.RLock()
	probes := make(map[ServiceType]Probe, len(m.probes))
	for st, p := range m.probes {
		probes[st] = p
	}
	m.mu.RUnlock()

	outcomes := make([]probeOutcome, 0, len(probes))
	var outcomesMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for st, probe := range probes {
		st, probe := st, probe
		g.Go(func() error {
			start := m.config.Clock.Now()

			// The buffered channel is the sole hand-off: a probe that
			// outlives its deadline parks its result here and it is
			// never read, so late outcomes cannot overwrite the timeout.
			resCh := make(chan Result, 1)
			err := m.config.Clock.RunTimeout(gctx, m.config.ProbeTimeout, func(opCtx context.Context) error {
				defer func() {
					if r := recover(); r != nil {
						resCh <- Failed(fmt.Sprintf("probe panicked: %v", r), ErrProbePanic)
					}
				}()
				resCh <- probe(opCtx)
				return nil
			})
			elapsed := m.config.Clock.Now().Sub(start)

			var res Result
			switch {
			case errors.Is(err, clock.ErrTimeout):
				res = Failed("probe timed out", ErrProbeTimeout)
			case err != nil:
				// Parent cancellation; the cycle is abandoned below.
				return nil
			default:
				res = <-resCh
			}

			m.config.Metrics.RecordProbe(gctx, string(st), elapsed, res.Err)

			outcomesMu.Lock()
			outcomes = append(outcomes, probeOutcome{service: st, result: res, elapsed: elapsed})
			outcomesMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	now := m.config.Clock.Now()

	m.mu.Lock()
	for _, o := range outcomes {
		m.updateLocked(o.service, o.result, o.elapsed, now)
	}
	m.lastCheck = now
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	return snapshot, nil
}

// updateLocked applies one probe outcome to a service record, maintaining the
// failure streak and the per-service breaker. Caller holds m.mu.
func (m *Manager) updateLocked(st ServiceType, res Result, elapsed time.Duration, now time.Time) {
	rec, ok := m.records[st]
	if !ok {
		rec = &HealthInfo{}
		m.records[st] = rec
	}

	rec.Status = res.Status
	rec.LastCheck = now
	rec.ResponseTime = elapsed

	switch {
	case res.Err != nil:
		rec.ErrorMessage = res.Err.Error()
	case res.Status == StatusFailed || res.Status == StatusDegraded:
		rec.ErrorMessage = res.Message
	default:
		rec.ErrorMessage = ""
	}

	if res.Status == StatusFailed {
		rec.ConsecutiveFailures++
		if rec.ConsecutiveFailures >= m.config.MaxConsecutiveFailures {
			if !rec.BreakerOpen {
				m.config.Metrics.RecordStateChange(context.Background(), string(st), "closed", "open")
				m.config.Logger.Warn(context.Background(), "service breaker opened",
					observe.Field{Key: "service", Value: string(st)},
					observe.Field{Key: "consecutive_failures", Value: rec.ConsecutiveFailures},
				)
			}
			rec.BreakerOpen = true
			// Every failure at or beyond the streak threshold pushes the
			// recovery opportunity out again.
			rec.BreakerUntil = now.Add(m.config.BreakerTimeout)
		}
		return
	}

	rec.ConsecutiveFailures = 0
	if res.Status == StatusHealthy && rec.BreakerOpen && !now.Before(rec.BreakerUntil) {
		rec.BreakerOpen = false
		rec.BreakerUntil = time.Time{}
		m.config.Metrics.RecordStateChange(context.Background(), string(st), "open", "closed")
		m.config.Logger.Info(context.Background(), "service breaker closed",
			observe.Field{Key: "service", Value: string(st)},
		)
	}
}

// snapshotLocked copies every record. Caller holds m.mu (read or write).
func (m *Manager) snapshotLocked() map[ServiceType]HealthInfo {
	out := make(map[ServiceType]HealthInfo, len(m.records))
	for st, rec := range m.records {
		out[st] = *rec
	}
	return out
}

// GetServiceHealth returns a copy of one service's health record.
func (m *Manager) GetServiceHealth(st ServiceType) (HealthInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[st]
	if !ok {
		return HealthInfo{}, false
	}
	return *rec, true
}

// GetAllServiceHealth returns a copy of every health record.
func (m *Manager) GetAllServiceHealth() map[ServiceType]HealthInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// IsServiceAvailable reports whether the given service can currently serve.
// An open breaker makes the service unavailable until its timeout elapses;
// after that one recovery opportunity is granted regardless of the last
// recorded status.
func (m *Manager) IsServiceAvailable(st ServiceType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.availableLocked(st, m.config.Clock.Now())
}

func (m *Manager) availableLocked(st ServiceType, now time.Time) bool {
	rec, ok := m.records[st]
	if !ok {
		return false
	}
	if rec.BreakerOpen {
		return !now.Before(rec.BreakerUntil)
	}
	return rec.Status == StatusHealthy || rec.Status == StatusDegraded
}

// AreCriticalServicesAvailable reports whether every critical service is
// currently available.
func (m *Manager) AreCriticalServicesAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.unavailableCriticalLocked(m.config.Clock.Now())) == 0
}

func (m *Manager) unavailableCriticalLocked(now time.Time) []ServiceType {
	var out []ServiceType
	for _, st := range m.config.Dependencies.Critical {
		if !m.availableLocked(st, now) {
			out = append(out, st)
		}
	}
	sortServices(out)
	return out
}

// GetDegradedServices returns the services whose last probe reported
// degraded status, sorted by name.
func (m *Manager) GetDegradedServices() []ServiceType {
	return m.servicesWithStatus(StatusDegraded)
}

// GetFailedServices returns the services whose last probe reported failed
// status, sorted by name.
func (m *Manager) GetFailedServices() []ServiceType {
	return m.servicesWithStatus(StatusFailed)
}

func (m *Manager) servicesWithStatus(want Status) []ServiceType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ServiceType
	for st, rec := range m.records {
		if rec.Status == want {
			out = append(out, st)
		}
	}
	sortServices(out)
	return out
}

func sortServices(s []ServiceType) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

// ShouldAllowConnection decides whether a new connection should be admitted.
// It refreshes the health map if it is older than the staleness window, then
// denies when any critical service is unavailable or when too many services
// are degraded. A denial always carries a specific reason. If the health map
// cannot be refreshed before ctx is cancelled, the connection is denied
// rather than admitted blind.
func (m *Manager) ShouldAllowConnection(ctx context.Context) (bool, string) {
	if err := m.refreshIfStale(ctx); err != nil {
		reason := "service availability unknown: " + err.Error()
		m.config.Metrics.RecordAdmission(ctx, false, reason)
		m.config.Logger.Warn(ctx, "connection denied",
			observe.Field{Key: "reason", Value: reason},
		)
		return false, reason
	}

	m.mu.RLock()
	allowed, reason := m.decideLocked(m.config.Clock.Now())
	m.mu.RUnlock()

	m.config.Metrics.RecordAdmission(ctx, allowed, reason)
	if !allowed {
		m.config.Logger.Warn(ctx, "connection denied",
			observe.Field{Key: "reason", Value: reason},
		)
	}
	return allowed, reason
}

// decideLocked evaluates the admission policy. Caller holds m.mu.
func (m *Manager) decideLocked(now time.Time) (bool, string) {
	if unavailable := m.unavailableCriticalLocked(now); len(unavailable) > 0 {
		names := make([]string, len(unavailable))
		for i, st := range unavailable {
			names[i] = string(st)
		}
		return false, "critical services unavailable: " + strings.Join(names, ", ")
	}

	degraded := 0
	for _, rec := range m.records {
		if rec.Status == StatusDegraded {
			degraded++
		}
	}
	if degraded >= m.config.DegradedThreshold {
		return false, fmt.Sprintf("too many degraded services: %d (threshold %d)",
			degraded, m.config.DegradedThreshold)
	}

	return true, ""
}

// refreshIfStale runs a probe cycle when the health map is older than the
// staleness window. Concurrent callers are coalesced into a single cycle;
// the cycle itself is detached from any one caller's context so that one
// cancelled waiter does not abandon the refresh for the others.
func (m *Manager) refreshIfStale(ctx context.Context) error {
	m.mu.RLock()
	fresh := m.config.Clock.Now().Sub(m.lastCheck) <= m.config.StalenessWindow && !m.lastCheck.IsZero()
	m.mu.RUnlock()
	if fresh {
		return nil
	}

	ch := m.refresh.DoChan("check", func() (any, error) {
		_, err := m.CheckAllServices(context.WithoutCancel(ctx))
		return nil, err
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
