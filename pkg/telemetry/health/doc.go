// Package health implements the liveness and readiness probes.
//
// Liveness always succeeds while the process serves HTTP. Readiness pings
// the quota store and the metadata store concurrently; a failing quota
// store means every metered request would be refused, so the instance
// reports 503 until the store answers again.
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("quota_store", health.PingCheck(quotaStore))
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
package health
