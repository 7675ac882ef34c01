package availability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/connguard/clock"
)

func TestGetHealthReport_AllHealthy(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	m := newTestManager(t, fake, ManagerConfig{})
	registerAllHealthy(m)

	report, err := m.GetHealthReport(context.Background())
	if err != nil {
		t.Fatalf("GetHealthReport() error = %v", err)
	}

	if report.OverallStatus != "healthy" {
		t.Errorf("overall status = %q, want healthy", report.OverallStatus)
	}
	if !report.AllowConnections {
		t.Errorf("allow connections = false (%q), want true", report.DenialReason)
	}
	if report.DenialReason != "" {
		t.Errorf("denial reason = %q, want empty", report.DenialReason)
	}
	if len(report.CriticalServices) != 3 {
		t.Errorf("critical services = %d, want 3", len(report.CriticalServices))
	}
	if len(report.OptionalServices) != 4 {
		t.Errorf("optional services = %d, want 4", len(report.OptionalServices))
	}

	s := report.Summary
	if s.TotalServices != 7 || s.HealthyCount != 7 || s.DegradedCount != 0 ||
		s.FailedCount != 0 || s.UnknownCount != 0 {
		t.Errorf("summary = %+v, want 7 healthy of 7", s)
	}
	if s.CriticalCount != 3 || s.OptionalCount != 4 {
		t.Errorf("summary counts = %d critical %d optional, want 3 and 4", s.CriticalCount, s.OptionalCount)
	}
}

func TestGetHealthReport_FailedCritical(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	m := newTestManager(t, fake, ManagerConfig{})
	registerAllHealthy(m)
	m.RegisterProbe(ServiceDatastore, StaticProbe(Failed("down", errors.New("dial refused"))))
	m.RegisterProbe(ServiceCache, StaticProbe(Degraded("slow")))

	report, err := m.GetHealthReport(context.Background())
	if err != nil {
		t.Fatalf("GetHealthReport() error = %v", err)
	}

	if report.OverallStatus != "failed" {
		t.Errorf("overall status = %q, want failed", report.OverallStatus)
	}
	if report.AllowConnections {
		t.Error("allow connections = true with failed critical service")
	}
	if report.DenialReason == "" {
		t.Error("denial reason empty for denied report")
	}

	ds := report.CriticalServices["datastore"]
	if ds.Available || ds.Status != "failed" || ds.Error != "dial refused" {
		t.Errorf("datastore report = %+v", ds)
	}

	s := report.Summary
	if s.FailedCount != 1 || s.DegradedCount != 1 || s.HealthyCount != 5 {
		t.Errorf("summary = %+v, want 1 failed 1 degraded 5 healthy", s)
	}
	if len(s.FailedServices) != 1 || s.FailedServices[0] != "datastore" {
		t.Errorf("failed services = %v, want [datastore]", s.FailedServices)
	}
	if len(s.DegradedServices) != 1 || s.DegradedServices[0] != "cache" {
		t.Errorf("degraded services = %v, want [cache]", s.DegradedServices)
	}
}

func TestGetHealthReport_AllUnknown(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	m := newTestManager(t, fake, ManagerConfig{})

	// No probes registered: the cycle runs empty and every record stays
	// in its seeded state.
	report, err := m.GetHealthReport(context.Background())
	if err != nil {
		t.Fatalf("GetHealthReport() error = %v", err)
	}

	if report.OverallStatus != "unknown" {
		t.Errorf("overall status = %q, want unknown", report.OverallStatus)
	}
	if report.AllowConnections {
		t.Error("allow connections = true with all services unknown")
	}
	if report.Summary.UnknownCount != 7 {
		t.Errorf("unknown count = %d, want 7", report.Summary.UnknownCount)
	}
}

func TestGetHealthReport_CachedWithinStalenessWindow(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	m := newTestManager(t, fake, ManagerConfig{StalenessWindow: 30 * time.Second})
	registerAllHealthy(m)

	first, err := m.GetHealthReport(context.Background())
	if err != nil {
		t.Fatalf("GetHealthReport() error = %v", err)
	}

	// Flip a probe to failed; within the window the report must still be
	// served from the cached records.
	m.RegisterProbe(ServiceAuth, StaticProbe(Failed("down", nil)))

	second, err := m.GetHealthReport(context.Background())
	if err != nil {
		t.Fatalf("GetHealthReport() error = %v", err)
	}
	if second.OverallStatus != first.OverallStatus {
		t.Errorf("overall status changed within window: %q -> %q", first.OverallStatus, second.OverallStatus)
	}
	if !second.LastCheck.Equal(first.LastCheck) {
		t.Errorf("last check changed within window: %v -> %v", first.LastCheck, second.LastCheck)
	}

	fake.Advance(31 * time.Second)
	third, err := m.GetHealthReport(context.Background())
	if err != nil {
		t.Fatalf("GetHealthReport() error = %v", err)
	}
	if third.OverallStatus != "failed" {
		t.Errorf("overall status after window = %q, want failed", third.OverallStatus)
	}
}

func TestGetHealthReport_CancelledRefresh(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	m := newTestManager(t, fake, ManagerConfig{})
	registerAllHealthy(m)

	release := make(chan struct{})
	defer close(release)
	m.RegisterProbe(ServiceAuth, func(ctx context.Context) Result {
		<-release
		return Healthy("ok")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.GetHealthReport(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("GetHealthReport() error = %v, want context.Canceled", err)
	}
}

func TestReport_JSONShape(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	m := newTestManager(t, fake, ManagerConfig{})
	registerAllHealthy(m)
	m.RegisterProbe(ServiceBridge, StaticProbe(Failed("down", errors.New("dial refused"))))

	report, err := m.GetHealthReport(context.Background())
	if err != nil {
		t.Fatalf("GetHealthReport() error = %v", err)
	}

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, key := range []string{
		"overall_status",
		"allow_connections",
		"last_check",
		"critical_services",
		"optional_services",
		"summary",
	} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("report JSON missing key %q", key)
		}
	}

	optional, ok := decoded["optional_services"].(map[string]any)
	if !ok {
		t.Fatal("optional_services is not an object")
	}
	bridge, ok := optional["bridge"].(map[string]any)
	if !ok {
		t.Fatal("optional_services.bridge is not an object")
	}
	for _, key := range []string{
		"available",
		"status",
		"last_check",
		"error",
		"response_time_ms",
		"circuit_breaker_open",
	} {
		if _, ok := bridge[key]; !ok {
			t.Errorf("service JSON missing key %q", key)
		}
	}
}
