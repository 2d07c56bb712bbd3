// Package quota defines the daily request quota model shared by the limiter
// and the storage backends.
//
// # Overview
//
// A quota record counts the requests one identity has made against one
// metered service on one UTC calendar day. Records are addressed by the
// identity and a period key of the form "YYYY-MM-DD#service", so a new day
// starts a new record and nothing is ever reset in place.
//
// The only mutation is a conditional increment performed by a Store:
//
//	count, err := st.IncrementIfUnderLimit(ctx, "guest_203.0.113.5",
//	    quota.PeriodKey(now, quota.ServiceTextract), 10, now.Add(quota.RecordTTL))
//	if errors.Is(err, quota.ErrLimitExceeded) {
//	    // ceiling reached, the record was not modified
//	}
//
// Backends must perform the increment as one indivisible operation so that
// concurrent callers can never push a count past its ceiling.
//
// # Tiers
//
// Callers are either guests (identified by network address) or users
// (identified by the verified token subject). Each tier has its own ceiling
// per service; see DefaultCeilings.
package quota
