package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"resumetailor-hq/tailor/pkg/api/middleware"
	"resumetailor-hq/tailor/pkg/auth"
	"resumetailor-hq/tailor/pkg/metadata"
	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/quota/limiter"
	"resumetailor-hq/tailor/pkg/resume"
	"resumetailor-hq/tailor/pkg/telemetry/logging"
	"resumetailor-hq/tailor/pkg/telemetry/tracing"
)

// Service is the subset of *resume.Service the handlers call.
type Service interface {
	UploadGuest(ctx context.Context, file []byte) (string, error)
	UploadUser(ctx context.Context, id quota.Identity, file []byte) (string, error)
	Score(ctx context.Context, id quota.Identity, in resume.ScoreInput) (*resume.ScoreResult, error)
	GetScore(ctx context.Context, resultID string) (*resume.ScoreView, error)
	ProcessMaster(ctx context.Context, id quota.Identity, file []byte) (*resume.MasterResult, error)
	GetMaster(ctx context.Context, id quota.Identity) (*resume.MasterView, error)
	Tailor(ctx context.Context, id quota.Identity, jobDescription string) (*resume.TailorResult, error)
	ListTailored(ctx context.Context, id quota.Identity) ([]resume.TailoredFile, error)
	SaveTailored(ctx context.Context, id quota.Identity, name string, file []byte) (string, error)
	Usage(ctx context.Context, id quota.Identity) (*resume.UsageReport, error)
}

// maxJSONBytes bounds request bodies that carry no document.
const maxJSONBytes = 256 << 10

// Handlers serves the tailor API.
type Handlers struct {
	svc            Service
	logger         *slog.Logger
	maxUploadBytes int64
	now            func() time.Time
}

// Option configures Handlers.
type Option func(*Handlers)

// WithClock sets the time source used for Retry-After.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// New creates Handlers. maxUploadBytes is the decoded document size limit;
// request bodies are limited to its base64 length plus envelope.
func New(svc Service, logger *slog.Logger, maxUploadBytes int64, opts ...Option) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		svc:            svc,
		logger:         logger.With("component", "api"),
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Route is one API endpoint.
type Route struct {
	// Pattern is a net/http ServeMux pattern including the method.
	Pattern string
	Handler http.HandlerFunc
	// User marks routes that need a verified token.
	User bool
}

// Routes lists every API endpoint.
func (h *Handlers) Routes() []Route {
	return []Route{
		{Pattern: "POST /upload-guest", Handler: h.UploadGuest},
		{Pattern: "POST /upload", Handler: h.UploadUser, User: true},
		{Pattern: "POST /score", Handler: h.Score},
		{Pattern: "GET /score", Handler: h.GetScore},
		{Pattern: "POST /master", Handler: h.ProcessMaster, User: true},
		{Pattern: "GET /master", Handler: h.GetMaster, User: true},
		{Pattern: "POST /tailor", Handler: h.Tailor, User: true},
		{Pattern: "GET /tailor", Handler: h.ListTailored, User: true},
		{Pattern: "PUT /tailor/{name}", Handler: h.SaveTailored, User: true},
		{Pattern: "GET /usage", Handler: h.Usage},
	}
}

// withIdentity resolves the caller and tags the request context and the
// server span with the masked identity.
func withIdentity(r *http.Request) (*http.Request, quota.Identity) {
	ctx := r.Context()
	id := limiter.DeriveIdentity(middleware.ClientAddressFromContext(ctx), auth.ClaimsFromContext(ctx))
	masked := limiter.MaskIdentity(id)
	tracing.SetRequestAttributes(trace.SpanFromContext(ctx), logging.GetRequestID(ctx), masked, string(id.Tier))
	return r.WithContext(logging.WithIdentity(ctx, masked)), id
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("%w: request body exceeds %d bytes", resume.ErrInvalidInput, limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", resume.ErrInvalidInput)
		default:
			return fmt.Errorf("%w: malformed JSON body: %v", resume.ErrInvalidInput, err)
		}
	}
	return nil
}

type fileRequest struct {
	File string `json:"file"`
}

// readFile decodes a {"file": "<base64>"} body. A data URL prefix is
// tolerated.
func (h *Handlers) readFile(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := base64.StdEncoding.EncodedLen(int(h.maxUploadBytes)) + 1024
	var req fileRequest
	if err := decodeJSON(w, r, int64(limit), &req); err != nil {
		return nil, err
	}
	data := strings.TrimSpace(req.File)
	if strings.HasPrefix(data, "data:") {
		if _, after, ok := strings.Cut(data, ","); ok {
			data = after
		}
	}
	if data == "" {
		return nil, fmt.Errorf("%w: file is required", resume.ErrInvalidInput)
	}
	file, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: file is not valid base64", resume.ErrInvalidInput)
	}
	return file, nil
}

// UploadGuest handles POST /upload-guest.
func (h *Handlers) UploadGuest(w http.ResponseWriter, r *http.Request) {
	file, err := h.readFile(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	r, _ = withIdentity(r)
	ctx := r.Context()
	key, err := h.svc.UploadGuest(ctx, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"s3_key": key})
}

// UploadUser handles POST /upload.
func (h *Handlers) UploadUser(w http.ResponseWriter, r *http.Request) {
	file, err := h.readFile(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	r, id := withIdentity(r)
	ctx := r.Context()
	key, err := h.svc.UploadUser(ctx, id, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"s3_key": key})
}

type scoreRequest struct {
	S3Key          string `json:"s3_key"`
	JobDescription string `json:"job_description"`
}

type scoreResponse struct {
	ResultID string   `json:"resultId"`
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
}

// Score handles POST /score.
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	r, id := withIdentity(r)
	ctx := r.Context()
	res, err := h.svc.Score(ctx, id, resume.ScoreInput{ObjectKey: req.S3Key, JobDescription: req.JobDescription})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setAdmissionHeaders(w, res.Admission)
	writeJSON(w, http.StatusOK, scoreResponse{ResultID: res.ResultID, Score: res.Score, Feedback: res.Feedback})
}

type scoreViewResponse struct {
	ResultID       string   `json:"resultId"`
	FileContent    string   `json:"fileContent"`
	JobDescription string   `json:"jobDescription"`
	Score          string   `json:"score"`
	Feedback       []string `json:"feedback"`
}

// GetScore handles GET /score?resultId=.
func (h *Handlers) GetScore(w http.ResponseWriter, r *http.Request) {
	r, _ = withIdentity(r)
	ctx := r.Context()
	view, err := h.svc.GetScore(ctx, r.URL.Query().Get("resultId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreViewResponse{
		ResultID:       view.ResultID,
		FileContent:    view.FileURL,
		JobDescription: view.JobDescription,
		Score:          strconv.Itoa(view.Score),
		Feedback:       view.Feedback,
	})
}

type masterResponse struct {
	S3Key   string           `json:"s3Key"`
	Entries []metadata.Entry `json:"entries"`
}

// ProcessMaster handles POST /master.
func (h *Handlers) ProcessMaster(w http.ResponseWriter, r *http.Request) {
	file, err := h.readFile(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	r, id := withIdentity(r)
	ctx := r.Context()
	res, err := h.svc.ProcessMaster(ctx, id, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setAdmissionHeaders(w, res.Admission)
	writeJSON(w, http.StatusOK, masterResponse{S3Key: res.ObjectKey, Entries: res.Entries})
}

type masterViewResponse struct {
	URL     string           `json:"url"`
	Entries []metadata.Entry `json:"entries"`
}

// GetMaster handles GET /master.
func (h *Handlers) GetMaster(w http.ResponseWriter, r *http.Request) {
	r, id := withIdentity(r)
	ctx := r.Context()
	view, err := h.svc.GetMaster(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, masterViewResponse{URL: view.URL, Entries: view.Entries})
}

type tailorRequest struct {
	JobDescription string `json:"jobDescription"`
}

// Tailor handles POST /tailor.
func (h *Handlers) Tailor(w http.ResponseWriter, r *http.Request) {
	var req tailorRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	r, id := withIdentity(r)
	ctx := r.Context()
	res, err := h.svc.Tailor(ctx, id, req.JobDescription)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setAdmissionHeaders(w, res.Admission)
	writeJSON(w, http.StatusOK, map[string][]metadata.Entry{"resumeItems": res.Entries})
}

type tailoredFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListTailored handles GET /tailor.
func (h *Handlers) ListTailored(w http.ResponseWriter, r *http.Request) {
	r, id := withIdentity(r)
	ctx := r.Context()
	files, err := h.svc.ListTailored(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]tailoredFile, 0, len(files))
	for _, f := range files {
		out = append(out, tailoredFile{Name: f.Name, URL: f.URL})
	}
	writeJSON(w, http.StatusOK, map[string][]tailoredFile{"files": out})
}

// SaveTailored handles PUT /tailor/{name}.
func (h *Handlers) SaveTailored(w http.ResponseWriter, r *http.Request) {
	file, err := h.readFile(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	r, id := withIdentity(r)
	ctx := r.Context()
	key, err := h.svc.SaveTailored(ctx, id, r.PathValue("name"), file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"s3_key": key})
}

type serviceUsage struct {
	CurrentUsage int64 `json:"current_usage"`
	DailyLimit   int64 `json:"daily_limit"`
	Remaining    int64 `json:"remaining"`
}

type usageResponse struct {
	UserType   string       `json:"user_type"`
	Identifier string       `json:"identifier"`
	Bedrock    serviceUsage `json:"bedrock"`
	Textract   serviceUsage `json:"textract"`
	ResetTime  int64        `json:"reset_time"`
}

// Usage handles GET /usage. It never charges quota.
func (h *Handlers) Usage(w http.ResponseWriter, r *http.Request) {
	r, id := withIdentity(r)
	ctx := r.Context()
	report, err := h.svc.Usage(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := usageResponse{
		UserType:   string(id.Tier),
		Identifier: limiter.MaskIdentity(id),
		ResetTime:  report.ResetAt.Unix(),
	}
	hdr := w.Header()
	for svc, u := range report.Services {
		su := serviceUsage{CurrentUsage: u.Current, DailyLimit: u.Limit, Remaining: u.Remaining}
		switch svc {
		case quota.ServiceBedrock:
			resp.Bedrock = su
		case quota.ServiceTextract:
			resp.Textract = su
		}
		hdr.Set(serviceHeader(svc, "Limit"), strconv.FormatInt(u.Limit, 10))
		hdr.Set(serviceHeader(svc, "Remaining"), strconv.FormatInt(u.Remaining, 10))
	}
	hdr.Set(HeaderReset, strconv.FormatInt(report.ResetAt.Unix(), 10))
	writeJSON(w, http.StatusOK, resp)
}
