package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"resumetailor-hq/tailor/pkg/generative"
	"resumetailor-hq/tailor/pkg/generative/jsonrepair"
	"resumetailor-hq/tailor/pkg/metadata"
	"resumetailor-hq/tailor/pkg/objectstore"
	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/quota/limiter"
	"resumetailor-hq/tailor/pkg/quota/store"
)

var testNow = time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)

var (
	guest = quota.Identity{ID: "guest_203.0.113.5", Tier: quota.TierGuest}
	user  = quota.Identity{ID: "sub-1", Tier: quota.TierUser}
)

func testPDF(body string) []byte { return []byte("%PDF-1.7\n" + body) }

type stubExtractor struct {
	mu    sync.Mutex
	lines []string
	err   error
	keys  []string
}

func (s *stubExtractor) ExtractLines(_ context.Context, _ string, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return s.lines, s.err
}

type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []generative.Request
}

func (c *scriptedCompleter) Complete(_ context.Context, req generative.Request) (*generative.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, req)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	text := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return &generative.Response{Text: text, Model: "test"}, nil
}

type fixture struct {
	svc       *Service
	objects   *objectstore.FSStore
	extractor *stubExtractor
	completer *scriptedCompleter
	meta      *metadata.MemoryStore
	limiter   *limiter.Limiter
}

func newFixture(t *testing.T, ceilings quota.Ceilings) *fixture {
	t.Helper()
	if ceilings == nil {
		ceilings = quota.DefaultCeilings()
	}
	clock := quota.ClockFunc(func() time.Time { return testNow })
	lim, err := limiter.New(store.NewMemoryStore(), ceilings, limiter.WithClock(clock))
	if err != nil {
		t.Fatalf("limiter.New() error = %v", err)
	}
	objects, err := objectstore.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		objects:   objects,
		extractor: &stubExtractor{lines: []string{"Jane Doe", "Go developer", "Built payment systems"}},
		completer: &scriptedCompleter{},
		meta:      metadata.NewMemoryStore(),
		limiter:   lim,
	}
	ids := 0
	f.svc, err = New(Deps{
		Limiter:   lim,
		Objects:   objects,
		Extractor: f.extractor,
		Completer: f.completer,
		Metadata:  f.meta,
		Clock:     clock,
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func (f *fixture) usage(t *testing.T, id quota.Identity, svc quota.Service) int64 {
	t.Helper()
	u, err := f.limiter.ReadUsage(context.Background(), id, svc)
	if err != nil {
		t.Fatal(err)
	}
	return u.Current
}

const scoreReplyJSON = `{"score": 82.4, "feedback": ["Strong Go background.", "Add Kubernetes if you have it.", "Quantify results."]}`

func TestScoreGuest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	key, err := f.svc.UploadGuest(ctx, testPDF("resume"))
	if err != nil {
		t.Fatalf("UploadGuest() error = %v", err)
	}
	if key != "guest/id-1.pdf" {
		t.Errorf("key = %q", key)
	}

	f.completer.replies = []string{"```json\n" + scoreReplyJSON + "\n```"}
	res, err := f.svc.Score(ctx, guest, ScoreInput{ObjectKey: key, JobDescription: "  Go engineer  "})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if res.Score != 82 || len(res.Feedback) != 3 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Admission) != 2 || res.Admission[0].Service != quota.ServiceTextract || res.Admission[1].Service != quota.ServiceBedrock {
		t.Errorf("admission = %+v", res.Admission)
	}

	req := f.completer.prompts[0]
	if req.MaxTokens != 1024 || req.Temperature != 0.3 {
		t.Errorf("request = %+v", req)
	}
	if !strings.Contains(req.Prompt, "Built payment systems") || !strings.Contains(req.Prompt, "Go engineer") {
		t.Error("prompt does not contain resume text and job description")
	}

	stored, err := f.meta.GetResult(ctx, res.ResultID)
	if err != nil {
		t.Fatalf("stored result: %v", err)
	}
	if !stored.ExpiresAt.Equal(testNow.Add(time.Hour)) || stored.UserID != "" {
		t.Errorf("stored guest result = %+v", stored)
	}
	if stored.JobDescription != "Go engineer" {
		t.Errorf("job description = %q", stored.JobDescription)
	}

	view, err := f.svc.GetScore(ctx, res.ResultID)
	if err != nil {
		t.Fatalf("GetScore() error = %v", err)
	}
	if view.Score != 82 || !strings.Contains(view.FileURL, "id-1.pdf") {
		t.Errorf("view = %+v", view)
	}
}

func TestScoreUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	key, err := f.svc.UploadUser(ctx, user, testPDF("resume"))
	if err != nil {
		t.Fatal(err)
	}
	if key != "users/uploads/sub-1/id-1.pdf" {
		t.Errorf("key = %q", key)
	}
	f.completer.replies = []string{scoreReplyJSON}
	res, err := f.svc.Score(ctx, user, ScoreInput{ObjectKey: key, JobDescription: "Go"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	stored, _ := f.meta.GetResult(ctx, res.ResultID)
	if stored.UserID != "sub-1" || !stored.ExpiresAt.IsZero() {
		t.Errorf("stored user result = %+v", stored)
	}
}

func TestScoreRejectsForeignDocuments(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	other := quota.Identity{ID: "sub-2", Tier: quota.TierUser}

	tests := []struct {
		name string
		id   quota.Identity
		key  string
	}{
		{"guest on user upload", guest, "users/uploads/sub-1/a.pdf"},
		{"user on other user upload", other, "users/uploads/sub-1/a.pdf"},
		{"user on other master", other, "users/master/sub-1.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Score(ctx, tt.id, ScoreInput{ObjectKey: tt.key, JobDescription: "Go"})
			if !errors.Is(err, ErrForbidden) {
				t.Fatalf("error = %v, want ErrForbidden", err)
			}
		})
	}
	if n := f.usage(t, other, quota.ServiceTextract); n != 0 {
		t.Errorf("forbidden requests charged quota: %d", n)
	}
}

func TestScoreInvalidInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, in := range []ScoreInput{
		{ObjectKey: "guest/a.pdf", JobDescription: "   "},
		{ObjectKey: "", JobDescription: "Go"},
		{ObjectKey: "guest/../users/master/sub-1.pdf", JobDescription: "Go"},
		{ObjectKey: "guest/a.pdf", JobDescription: strings.Repeat("x", MaxJobDescriptionRunes+1)},
	} {
		if _, err := f.svc.Score(ctx, guest, in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Score(%.40q) error = %v, want ErrInvalidInput", in.ObjectKey+"|"+in.JobDescription, err)
		}
	}
	if n := f.usage(t, guest, quota.ServiceTextract); n != 0 {
		t.Errorf("invalid requests charged quota: %d", n)
	}
}

// A guest at 203.0.113.5 with a textract ceiling of 10 gets ten scores and
// is refused the eleventh with the textract counter unchanged.
func TestScoreGuestTextractLimit(t *testing.T) {
	ceilings := quota.Ceilings{
		quota.TierGuest: {quota.ServiceTextract: 10, quota.ServiceBedrock: 100},
		quota.TierUser:  {quota.ServiceTextract: 100, quota.ServiceBedrock: 200},
	}
	f := newFixture(t, ceilings)
	ctx := context.Background()
	f.completer.replies = []string{scoreReplyJSON}
	in := ScoreInput{ObjectKey: "guest/a.pdf", JobDescription: "Go"}

	for i := 1; i <= 10; i++ {
		if _, err := f.svc.Score(ctx, guest, in); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	_, err := f.svc.Score(ctx, guest, in)
	var exceeded *quota.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("11th request error = %v, want *quota.ExceededError", err)
	}
	if exceeded.Service != quota.ServiceTextract || exceeded.Limit != 10 || exceeded.Current != 10 {
		t.Errorf("exceeded = %+v", exceeded)
	}
	if !exceeded.ResetAt.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ResetAt = %v", exceeded.ResetAt)
	}
	if got := f.usage(t, guest, quota.ServiceTextract); got != 10 {
		t.Errorf("textract usage = %d, want 10", got)
	}
	if got := f.usage(t, guest, quota.ServiceBedrock); got != 10 {
		t.Errorf("bedrock usage = %d, want 10 (no charge after textract denial)", got)
	}
	if len(f.extractor.keys) != 10 {
		t.Errorf("extractor called %d times, want 10", len(f.extractor.keys))
	}
}

func TestScoreUpstreamFailureKeepsCharge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.extractor.err = errors.New("textract throttled")

	_, err := f.svc.Score(ctx, guest, ScoreInput{ObjectKey: "guest/a.pdf", JobDescription: "Go"})
	var up *UpstreamError
	if !errors.As(err, &up) || up.Service != string(quota.ServiceTextract) {
		t.Fatalf("error = %v, want textract UpstreamError", err)
	}
	if got := f.usage(t, guest, quota.ServiceTextract); got != 1 {
		t.Errorf("textract usage = %d, want 1", got)
	}
	if got := f.usage(t, guest, quota.ServiceBedrock); got != 1 {
		t.Errorf("bedrock usage = %d, want 1", got)
	}
}

func TestScoreMalformedOutput(t *testing.T) {
	ctx := context.Background()
	for name, reply := range map[string]string{
		"not json":    "I would rate this resume highly.",
		"no score":    `{"feedback": ["a", "b", "c"]}`,
		"no feedback": `{"score": 50}`,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.completer.replies = []string{reply}
			_, err := f.svc.Score(ctx, guest, ScoreInput{ObjectKey: "guest/a.pdf", JobDescription: "Go"})
			if !errors.Is(err, jsonrepair.ErrMalformedOutput) {
				t.Fatalf("error = %v, want malformed output", err)
			}
		})
	}
}

func TestScoreMissingDocument(t *testing.T) {
	f := newFixture(t, nil)
	f.extractor.err = fmt.Errorf("read: %w", objectstore.ErrNotFound)
	_, err := f.svc.Score(context.Background(), guest, ScoreInput{ObjectKey: "guest/none.pdf", JobDescription: "Go"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGetScoreNotFound(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.GetScore(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.GetScore(context.Background(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

const entriesJSON = `[
 {"type": "userInfo", "title": "Jane Doe", "organization": "", "startDate": "", "endDate": "", "description": "jane@example.com"},
 {"type": "education", "title": "BSc Computer Science", "organization": "State University", "startDate": "2014", "endDate": "2018", "description": ""},
 {"type": "experience", "title": "Backend Engineer", "organization": "Acme", "startDate": "2018", "endDate": "Present", "description": "Go services"}
]`

func TestProcessAndGetMaster(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.completer.replies = []string{entriesJSON}

	res, err := f.svc.ProcessMaster(ctx, user, testPDF("master"))
	if err != nil {
		t.Fatalf("ProcessMaster() error = %v", err)
	}
	if res.ObjectKey != "users/master/sub-1.pdf" || len(res.Entries) != 3 {
		t.Errorf("result = %+v", res)
	}
	if f.extractor.keys[0] != "users/master/sub-1.pdf" {
		t.Errorf("extracted %q", f.extractor.keys[0])
	}
	if f.completer.prompts[0].MaxTokens != 2048 {
		t.Errorf("max tokens = %d", f.completer.prompts[0].MaxTokens)
	}
	data, err := f.objects.Get(ctx, "users/master/sub-1.pdf")
	if err != nil || !strings.HasPrefix(string(data), "%PDF-") {
		t.Errorf("stored master = %q, %v", data, err)
	}

	view, err := f.svc.GetMaster(ctx, user)
	if err != nil {
		t.Fatalf("GetMaster() error = %v", err)
	}
	if len(view.Entries) != 3 || view.Entries[0].Type != metadata.EntryUserInfo || view.URL == "" {
		t.Errorf("view = %+v", view)
	}
}

func TestMasterRequiresUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.ProcessMaster(ctx, guest, testPDF("x")); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("ProcessMaster(guest) error = %v", err)
	}
	if _, err := f.svc.GetMaster(ctx, guest); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("GetMaster(guest) error = %v", err)
	}
	if _, err := f.svc.Tailor(ctx, guest, "Go"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Tailor(guest) error = %v", err)
	}
	if _, err := f.svc.GetMaster(ctx, user); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMaster(no master) error = %v", err)
	}
}

func TestTailor(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Tailor(ctx, user, "Go"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Tailor without master error = %v, want ErrNotFound", err)
	}
	if got := f.usage(t, user, quota.ServiceBedrock); got != 0 {
		t.Errorf("bedrock charged without master: %d", got)
	}

	f.completer.replies = []string{entriesJSON}
	if _, err := f.svc.ProcessMaster(ctx, user, testPDF("master")); err != nil {
		t.Fatal(err)
	}
	f.completer.replies = []string{"```json\n" + entriesJSON + "\n```"}
	res, err := f.svc.Tailor(ctx, user, "Backend Go role")
	if err != nil {
		t.Fatalf("Tailor() error = %v", err)
	}
	if len(res.Entries) != 3 {
		t.Errorf("entries = %d", len(res.Entries))
	}
	if len(res.Admission) != 1 || res.Admission[0].Service != quota.ServiceBedrock {
		t.Errorf("admission = %+v", res.Admission)
	}
	prompt := f.completer.prompts[1].Prompt
	if !strings.Contains(prompt, `"title":"Backend Engineer"`) || !strings.Contains(prompt, "Backend Go role") {
		t.Error("tailor prompt lacks entries or job description")
	}
	if got := f.usage(t, user, quota.ServiceTextract); got != 1 {
		t.Errorf("textract usage = %d, want 1 (tailoring does not extract)", got)
	}
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.opts.MaxUploadBytes = 64
	ctx := context.Background()
	for name, file := range map[string][]byte{
		"empty":   nil,
		"not pdf": []byte("PK\x03\x04 zip"),
		"large":   testPDF(strings.Repeat("x", 100)),
	} {
		if _, err := f.svc.UploadGuest(ctx, file); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: error = %v, want ErrInvalidInput", name, err)
		}
	}
	if _, err := f.svc.UploadUser(ctx, guest, testPDF("x")); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("UploadUser(guest) error = %v", err)
	}
}

func TestSaveAndListTailored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, name := range []string{"acme-backend", "globex.pdf"} {
		if _, err := f.svc.SaveTailored(ctx, user, name, testPDF(name)); err != nil {
			t.Fatalf("SaveTailored(%q) error = %v", name, err)
		}
	}
	if _, err := f.svc.SaveTailored(ctx, user, "../escape", testPDF("x")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad name error = %v", err)
	}

	files, err := f.svc.ListTailored(ctx, user)
	if err != nil {
		t.Fatalf("ListTailored() error = %v", err)
	}
	if len(files) != 2 || files[0].Name != "acme-backend.pdf" || files[1].Name != "globex.pdf" {
		t.Fatalf("files = %+v", files)
	}
	if files[0].URL == "" || files[0].Key != "users/tailored/sub-1/acme-backend.pdf" {
		t.Errorf("file = %+v", files[0])
	}

	other, err := f.svc.ListTailored(ctx, quota.Identity{ID: "sub-2", Tier: quota.TierUser})
	if err != nil || len(other) != 0 {
		t.Errorf("other user's list = %+v, %v", other, err)
	}
}

func TestUsage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.completer.replies = []string{scoreReplyJSON}
	for range 3 {
		if _, err := f.svc.Score(ctx, guest, ScoreInput{ObjectKey: "guest/a.pdf", JobDescription: "Go"}); err != nil {
			t.Fatal(err)
		}
	}

	report, err := f.svc.Usage(ctx, guest)
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	bedrock := report.Services[quota.ServiceBedrock]
	textract := report.Services[quota.ServiceTextract]
	if bedrock.Current != 3 || bedrock.Limit != 5 || bedrock.Remaining != 2 {
		t.Errorf("bedrock = %+v", bedrock)
	}
	if textract.Current != 3 || textract.Limit != 10 || textract.Remaining != 7 {
		t.Errorf("textract = %+v", textract)
	}
	if !report.ResetAt.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ResetAt = %v", report.ResetAt)
	}

	again, _ := f.svc.Usage(ctx, guest)
	if again.Services[quota.ServiceBedrock].Current != 3 {
		t.Error("Usage changed the counters")
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{}, Options{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
