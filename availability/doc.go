// Package availability decides whether new real-time connections should be
// admitted, based on the health of the service's dependencies.
//
// A Manager owns one health record per dependency. Callers register an async
// probe per service; CheckAllServices fans the probes out concurrently, each
// bounded by its own timeout, and applies the results atomically. Services
// are classified as critical or optional: an unavailable critical service
// blocks all new connections, while failing optional services merely degrade
// the experience up to a configurable ceiling.
//
// Each service also carries a lightweight failure-streak breaker: after a
// run of consecutive failures the service is considered unavailable without
// re-probing until a timeout elapses, at which point one check is allowed
// through as a recovery opportunity.
//
// # Usage
//
//	mgr, err := availability.NewManager(availability.ManagerConfig{})
//	if err != nil {
//	    return err
//	}
//
//	mgr.RegisterProbe(availability.ServiceAuth, authProbe)
//	mgr.RegisterProbe(availability.ServiceDatastore,
//	    availability.TCPProbe("db.internal:5432"))
//
//	// In the connection gateway, before completing the handshake:
//	allowed, reason := mgr.ShouldAllowConnection(ctx)
//	if !allowed {
//	    closeWithReason(conn, reason)
//	}
//
// ShouldAllowConnection and GetHealthReport refresh the health map when it
// is older than the staleness window; concurrent refreshes are coalesced
// into a single probe cycle. A denied connection always carries a specific
// reason naming the unavailable critical services or citing the
// degraded-count policy.
package availability
