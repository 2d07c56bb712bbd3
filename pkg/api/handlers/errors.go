package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"resumetailor-hq/tailor/pkg/generative/jsonrepair"
	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/resume"
	"resumetailor-hq/tailor/pkg/telemetry/logging"
)

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// quotaBody is the JSON body of a 429.
type quotaBody struct {
	Error        string `json:"error"`
	Service      string `json:"service"`
	CurrentUsage int64  `json:"current_usage"`
	Limit        int64  `json:"limit"`
	ResetTime    int64  `json:"reset_time"`
	RequestID    string `json:"request_id,omitempty"`
}

// statusOf maps a service error to its HTTP status and client message.
// Messages for 5xx never include internal detail.
func statusOf(err error) (int, string) {
	var upstream *resume.UpstreamError
	switch {
	case errors.Is(err, quota.ErrConfiguration):
		return http.StatusInternalServerError, "quota is not configured for this request"
	case errors.Is(err, quota.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "usage tracking is temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, jsonrepair.ErrMalformedOutput):
		return http.StatusBadGateway, "the model returned output that could not be read"
	case errors.As(err, &upstream):
		return http.StatusBadGateway, fmt.Sprintf("%s %s failed", upstream.Service, upstream.Op)
	case errors.Is(err, resume.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, resume.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, resume.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, resume.ErrForbidden):
		return http.StatusForbidden, "document belongs to another caller"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError writes err as a JSON error response. Quota denials are logged
// at info; server-side failures at error.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	requestID := logging.GetRequestID(ctx)

	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		h.logger.InfoContext(ctx, "quota exceeded",
			"service", exceeded.Service,
			"tier", exceeded.Tier,
			"current", exceeded.Current,
			"limit", exceeded.Limit,
		)
		setDeniedHeaders(w, exceeded, h.now())
		writeJSON(w, http.StatusTooManyRequests, quotaBody{
			Error: fmt.Sprintf("daily %s limit reached (%d of %d requests used)",
				exceeded.Service.Short(), exceeded.Current, exceeded.Limit),
			Service:      exceeded.Service.Short(),
			CurrentUsage: exceeded.Current,
			Limit:        exceeded.Limit,
			ResetTime:    exceeded.ResetAt.Unix(),
			RequestID:    requestID,
		})
		return
	}

	status, msg := statusOf(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "request failed", "status", status, "error", err)

	var malformed *jsonrepair.MalformedOutputError
	if errors.As(err, &malformed) {
		h.logger.DebugContext(ctx, "malformed model output",
			"stage", malformed.Stage,
			"offset", malformed.Offset,
			"raw", malformed.Raw,
		)
	}
	writeJSON(w, status, errorBody{Error: msg, RequestID: requestID})
}
