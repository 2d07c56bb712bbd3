package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"resumetailor-hq/tailor/pkg/api/middleware"
	"resumetailor-hq/tailor/pkg/auth"
	"resumetailor-hq/tailor/pkg/generative"
	"resumetailor-hq/tailor/pkg/generative/jsonrepair"
	"resumetailor-hq/tailor/pkg/metadata"
	"resumetailor-hq/tailor/pkg/objectstore"
	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/quota/limiter"
	"resumetailor-hq/tailor/pkg/quota/store"
	"resumetailor-hq/tailor/pkg/resume"
)

var testNow = time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubExtractor struct{}

func (stubExtractor) ExtractLines(context.Context, string, string) ([]string, error) {
	return []string{"Jane Doe", "Go developer"}, nil
}

type stubCompleter struct {
	mu    sync.Mutex
	reply string
}

func (c *stubCompleter) set(reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply = reply
}

func (c *stubCompleter) Complete(context.Context, generative.Request) (*generative.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &generative.Response{Text: c.reply, Model: "test"}, nil
}

type server struct {
	handler   http.Handler
	completer *stubCompleter
	signer    *auth.StaticKeyValidator
}

// newServer wires real quota, storage and service layers behind the routes.
func newServer(t *testing.T) *server {
	t.Helper()
	ceilings := quota.DefaultCeilings()
	ceilings[quota.TierGuest][quota.ServiceBedrock] = 10

	clock := quota.ClockFunc(func() time.Time { return testNow })
	lim, err := limiter.New(store.NewMemoryStore(), ceilings, limiter.WithClock(clock))
	if err != nil {
		t.Fatalf("limiter.New() error = %v", err)
	}
	objects, err := objectstore.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	completer := &stubCompleter{reply: `{"score": 80, "feedback": ["a", "b", "c"]}`}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := resume.New(resume.Deps{
		Limiter:   lim,
		Objects:   objects,
		Extractor: stubExtractor{},
		Completer: completer,
		Metadata:  metadata.NewMemoryStore(),
		Clock:     clock,
		Logger:    logger,
	}, resume.Options{})
	if err != nil {
		t.Fatal(err)
	}
	signer, err := auth.NewStaticKeyValidator([]byte(testSecret), "", "")
	if err != nil {
		t.Fatal(err)
	}

	h := New(svc, logger, 1<<20, WithClock(func() time.Time { return testNow }))
	mux := http.NewServeMux()
	for _, rt := range h.Routes() {
		var handler http.Handler = rt.Handler
		if rt.User {
			handler = auth.RequireUser(handler)
		}
		mux.Handle(rt.Pattern, handler)
	}
	var root http.Handler = auth.Authenticate(signer)(mux)
	root = middleware.ClientAddress(false)(root)
	root = middleware.RequestID(root)
	return &server{handler: root, completer: completer, signer: signer}
}

func (s *server) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	req.RemoteAddr = "203.0.113.5:41000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) token(t *testing.T, sub string) string {
	t.Helper()
	tok, err := s.signer.Sign(sub, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("response body %q: %v", rec.Body.String(), err)
	}
}

func pdfBody() map[string]string {
	return map[string]string{"file": base64.StdEncoding.EncodeToString([]byte("%PDF-1.7\nresume"))}
}

func (s *server) uploadGuest(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/upload-guest", pdfBody(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload-guest status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		S3Key string `json:"s3_key"`
	}
	decode(t, rec, &resp)
	if !strings.HasPrefix(resp.S3Key, "guest/") {
		t.Fatalf("s3_key = %q, want guest/ prefix", resp.S3Key)
	}
	return resp.S3Key
}

func TestScoreAndGetScore(t *testing.T) {
	s := newServer(t)
	key := s.uploadGuest(t)

	rec := s.do(t, http.MethodPost, "/score", map[string]string{"s3_key": key, "job_description": "Go engineer"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("score status = %d, body %s", rec.Code, rec.Body.String())
	}
	var scored scoreResponse
	decode(t, rec, &scored)
	if scored.ResultID == "" || scored.Score != 80 || len(scored.Feedback) != 3 {
		t.Fatalf("score response = %+v", scored)
	}
	if got := rec.Header().Get(HeaderRemaining); got != "9" {
		t.Errorf("%s = %q, want 9", HeaderRemaining, got)
	}
	if got := rec.Header().Get("X-RateLimit-Textract-Remaining"); got != "9" {
		t.Errorf("X-RateLimit-Textract-Remaining = %q, want 9", got)
	}
	if got := rec.Header().Get(HeaderReset); got != strconv.FormatInt(quota.NextReset(testNow).Unix(), 10) {
		t.Errorf("%s = %q", HeaderReset, got)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}

	rec = s.do(t, http.MethodGet, "/score?resultId="+scored.ResultID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get score status = %d, body %s", rec.Code, rec.Body.String())
	}
	var view scoreViewResponse
	decode(t, rec, &view)
	if view.Score != "80" || view.JobDescription != "Go engineer" || view.FileContent == "" {
		t.Errorf("score view = %+v", view)
	}
}

func TestGuestTextractLimitReturns429(t *testing.T) {
	s := newServer(t)
	key := s.uploadGuest(t)
	body := map[string]string{"s3_key": key, "job_description": "Go engineer"}

	for i := 1; i <= 10; i++ {
		if rec := s.do(t, http.MethodPost, "/score", body, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, body %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := s.do(t, http.MethodPost, "/score", body, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("11th request status = %d, want 429", rec.Code)
	}
	reset := quota.NextReset(testNow)
	wantHeaders := map[string]string{
		HeaderLimit:      "10",
		HeaderRemaining:  "0",
		HeaderReset:      strconv.FormatInt(reset.Unix(), 10),
		HeaderRetryAfter: strconv.FormatInt(int64(reset.Sub(testNow).Seconds()), 10),
	}
	for name, want := range wantHeaders {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	var qb quotaBody
	decode(t, rec, &qb)
	if qb.Service != "textract" || qb.CurrentUsage != 10 || qb.Limit != 10 || qb.ResetTime != reset.Unix() {
		t.Errorf("429 body = %+v", qb)
	}
	if qb.Error == "" {
		t.Error("429 body has no error message")
	}

	rec = s.do(t, http.MethodGet, "/usage", nil, "")
	var usage usageResponse
	decode(t, rec, &usage)
	if usage.Textract.CurrentUsage != 10 || usage.Bedrock.CurrentUsage != 10 {
		t.Errorf("usage after denial = %+v, want textract 10 and bedrock 10", usage)
	}
}

func TestUsage(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/usage", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var guestUsage usageResponse
	decode(t, rec, &guestUsage)
	if guestUsage.UserType != "guest" || guestUsage.Identifier != "guest_***" {
		t.Errorf("guest usage = %+v", guestUsage)
	}
	if guestUsage.Textract.DailyLimit != 10 || guestUsage.Textract.Remaining != 10 {
		t.Errorf("guest textract = %+v", guestUsage.Textract)
	}
	if got := rec.Header().Get("X-RateLimit-Bedrock-Limit"); got != "10" {
		t.Errorf("X-RateLimit-Bedrock-Limit = %q, want 10", got)
	}
	if guestUsage.ResetTime != quota.NextReset(testNow).Unix() {
		t.Errorf("reset_time = %d", guestUsage.ResetTime)
	}

	rec = s.do(t, http.MethodGet, "/usage", nil, s.token(t, "sub-1"))
	var userUsage usageResponse
	decode(t, rec, &userUsage)
	if userUsage.UserType != "user" || userUsage.Identifier != "sub-1" || userUsage.Bedrock.DailyLimit != 50 {
		t.Errorf("user usage = %+v", userUsage)
	}
}

func TestUserRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/upload"},
		{http.MethodGet, "/master"},
		{http.MethodPost, "/tailor"},
		{http.MethodGet, "/tailor"},
		{http.MethodPut, "/tailor/cv"},
	} {
		if rec := s.do(t, tc.method, tc.path, pdfBody(), ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
	if rec := s.do(t, http.MethodGet, "/master", nil, "not-a-jwt"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}
}

func TestMasterTailorFlow(t *testing.T) {
	s := newServer(t)
	tok := s.token(t, "sub-1")

	if rec := s.do(t, http.MethodPost, "/tailor", map[string]string{"jobDescription": "Go"}, tok); rec.Code != http.StatusNotFound {
		t.Fatalf("tailor without master status = %d, want 404", rec.Code)
	}

	s.completer.set(`[{"type":"experience","title":"Engineer","organization":"Acme","startDate":"2020","endDate":"2024","description":"Go services"}]`)
	rec := s.do(t, http.MethodPost, "/master", pdfBody(), tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("master status = %d, body %s", rec.Code, rec.Body.String())
	}
	var master masterResponse
	decode(t, rec, &master)
	if master.S3Key != objectstore.MasterKey("sub-1") || len(master.Entries) != 1 {
		t.Fatalf("master response = %+v", master)
	}

	rec = s.do(t, http.MethodGet, "/master", nil, tok)
	var view masterViewResponse
	decode(t, rec, &view)
	if rec.Code != http.StatusOK || view.URL == "" || len(view.Entries) != 1 {
		t.Fatalf("get master = %d %+v", rec.Code, view)
	}

	rec = s.do(t, http.MethodPost, "/tailor", map[string]string{"jobDescription": "Go"}, tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("tailor status = %d, body %s", rec.Code, rec.Body.String())
	}
	var tailored map[string][]metadata.Entry
	decode(t, rec, &tailored)
	if len(tailored["resumeItems"]) != 1 {
		t.Errorf("resumeItems = %+v", tailored)
	}

	if rec := s.do(t, http.MethodPut, "/tailor/acme-cv", pdfBody(), tok); rec.Code != http.StatusOK {
		t.Fatalf("save tailored status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodGet, "/tailor", nil, tok)
	var files map[string][]tailoredFile
	decode(t, rec, &files)
	if len(files["files"]) != 1 || files["files"][0].Name != "acme-cv.pdf" {
		t.Errorf("files = %+v", files)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"empty upload", http.MethodPost, "/upload-guest", map[string]string{}, http.StatusBadRequest},
		{"not base64", http.MethodPost, "/upload-guest", map[string]string{"file": "%%%"}, http.StatusBadRequest},
		{"not a pdf", http.MethodPost, "/upload-guest", map[string]string{"file": base64.StdEncoding.EncodeToString([]byte("hello"))}, http.StatusBadRequest},
		{"missing job description", http.MethodPost, "/score", map[string]string{"s3_key": "guest/x.pdf"}, http.StatusBadRequest},
		{"missing result id", http.MethodGet, "/score", nil, http.StatusBadRequest},
		{"unknown result", http.MethodGet, "/score?resultId=nope", nil, http.StatusNotFound},
		{"foreign document", http.MethodPost, "/score", map[string]string{"s3_key": "users/uploads/other/x.pdf", "job_description": "Go"}, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.path, tc.body, "")
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
			var eb errorBody
			decode(t, rec, &eb)
			if eb.Error == "" || eb.RequestID == "" {
				t.Errorf("error body = %+v", eb)
			}
		})
	}
}

func TestMalformedJSONBody(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/score", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration", &quota.ConfigurationError{Tier: quota.TierGuest, Service: quota.ServiceBedrock}, http.StatusInternalServerError},
		{"store unavailable", &quota.StoreError{Backend: "redis", Op: "incr", Err: errors.New("refused")}, http.StatusServiceUnavailable},
		{"upstream", &resume.UpstreamError{Service: "bedrock", Op: "score", Err: errors.New("throttled")}, http.StatusBadGateway},
		{"upstream timeout", &resume.UpstreamError{Service: "textract", Op: "extract", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"malformed", &jsonrepair.MalformedOutputError{Raw: "x", Stage: jsonrepair.StageCollapsed, Offset: 1, Err: errors.New("bad")}, http.StatusBadGateway},
		{"invalid", fmt.Errorf("%w: empty", resume.ErrInvalidInput), http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: result", resume.ErrNotFound), http.StatusNotFound},
		{"unauthenticated", resume.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", resume.ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, msg := statusOf(tc.err)
			if got != tc.want {
				t.Errorf("statusOf() = %d, want %d", got, tc.want)
			}
			if got >= 500 && strings.Contains(msg, "refused") {
				t.Errorf("5xx message leaks detail: %q", msg)
			}
		})
	}
}

func TestServiceHeader(t *testing.T) {
	if got := serviceHeader(quota.ServiceBedrock, "Limit"); got != "X-RateLimit-Bedrock-Limit" {
		t.Errorf("serviceHeader(bedrock) = %q", got)
	}
	if got := serviceHeader(quota.ServiceTextract, "Remaining"); got != "X-RateLimit-Textract-Remaining" {
		t.Errorf("serviceHeader(textract) = %q", got)
	}
}
