package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/quota/limiter"
)

// Rate limit headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// serviceHeader returns e.g. X-RateLimit-Bedrock-Limit for suffix "Limit".
func serviceHeader(svc quota.Service, suffix string) string {
	short := svc.Short()
	if short == "" {
		return "X-RateLimit-" + suffix
	}
	return "X-RateLimit-" + strings.ToUpper(short[:1]) + short[1:] + "-" + suffix
}

// setAdmissionHeaders reports the tightest admitted service in the generic
// headers and every admitted service in its own headers.
func setAdmissionHeaders(w http.ResponseWriter, admission []limiter.Result) {
	if len(admission) == 0 {
		return
	}
	h := w.Header()
	tightest := admission[0]
	for _, res := range admission {
		if res.Remaining < tightest.Remaining {
			tightest = res
		}
		h.Set(serviceHeader(res.Service, "Limit"), strconv.FormatInt(res.Limit, 10))
		h.Set(serviceHeader(res.Service, "Remaining"), strconv.FormatInt(res.Remaining, 10))
	}
	h.Set(HeaderLimit, strconv.FormatInt(tightest.Limit, 10))
	h.Set(HeaderRemaining, strconv.FormatInt(tightest.Remaining, 10))
	h.Set(HeaderReset, strconv.FormatInt(tightest.ResetAt.Unix(), 10))
}

func setDeniedHeaders(w http.ResponseWriter, e *quota.ExceededError, now time.Time) {
	h := w.Header()
	h.Set(HeaderLimit, strconv.FormatInt(e.Limit, 10))
	h.Set(HeaderRemaining, "0")
	h.Set(HeaderReset, strconv.FormatInt(e.ResetAt.Unix(), 10))
	retry := int64(e.ResetAt.Sub(now).Seconds())
	if retry < 1 {
		retry = 1
	}
	h.Set(HeaderRetryAfter, strconv.FormatInt(retry, 10))
}
