// Package limiter applies the daily quota policy in front of metered
// downstream calls.
//
// A Limiter resolves the ceiling for the caller's tier, builds the period key
// for the current UTC day, and asks the quota store for one conditional
// increment. The outcome is an allow/deny Result; store failures are returned
// as errors and callers must treat them as denials.
//
//	id := limiter.DeriveIdentity(clientAddr, auth.ClaimsFromContext(ctx))
//	res, err := lim.CheckAndConsume(ctx, id, quota.ServiceTextract)
//	if err != nil {
//	    return err // fail closed
//	}
//	if !res.Allowed {
//	    // answer 429
//	}
//
// Requests that need several services call Admit, which charges them in
// AdmissionOrder and stops at the first denial. Services already charged by
// that request stay charged.
package limiter
