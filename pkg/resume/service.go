// Package resume implements the resume operations behind the HTTP API:
// uploads, scoring against a job description, master resume structuring,
// tailoring, and usage reporting.
//
// Operations that call a metered service charge quota first, in the order
// extraction then generation, and never refund a charge when a later step
// fails.
package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"resumetailor-hq/tailor/pkg/extraction"
	"resumetailor-hq/tailor/pkg/generative"
	"resumetailor-hq/tailor/pkg/generative/jsonrepair"
	"resumetailor-hq/tailor/pkg/metadata"
	"resumetailor-hq/tailor/pkg/objectstore"
	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/quota/limiter"
)

// Limiter admits metered requests and reports usage.
type Limiter interface {
	Admit(ctx context.Context, id quota.Identity, services ...quota.Service) ([]limiter.Result, error)
	ReadUsage(ctx context.Context, id quota.Identity, svc quota.Service) (limiter.Usage, error)
}

// Options tunes the service.
type Options struct {
	PresignTTL         time.Duration
	GuestResultTTL     time.Duration
	MaxUploadBytes     int64
	ScoreMaxTokens     int
	StructureMaxTokens int
	Temperature        float64
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		PresignTTL:         time.Hour,
		GuestResultTTL:     time.Hour,
		MaxUploadBytes:     10 << 20,
		ScoreMaxTokens:     1024,
		StructureMaxTokens: 2048,
		Temperature:        0.3,
	}
}

// Deps are the collaborators of a Service.
type Deps struct {
	Limiter   Limiter
	Objects   objectstore.Store
	Extractor extraction.Extractor
	Completer generative.Completer
	Metadata  metadata.Store

	// Clock defaults to the system clock.
	Clock quota.Clock
	// NewID defaults to random UUIDs.
	NewID func() string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service runs resume operations.
type Service struct {
	limiter   Limiter
	objects   objectstore.Store
	extractor extraction.Extractor
	completer generative.Completer
	metadata  metadata.Store
	clock     quota.Clock
	newID     func() string
	logger    *slog.Logger
	opts      Options
}

// New creates a Service. Zero option fields take their defaults.
func New(deps Deps, opts Options) (*Service, error) {
	switch {
	case deps.Limiter == nil:
		return nil, errors.New("resume: limiter is required")
	case deps.Objects == nil:
		return nil, errors.New("resume: object store is required")
	case deps.Extractor == nil:
		return nil, errors.New("resume: extractor is required")
	case deps.Completer == nil:
		return nil, errors.New("resume: completer is required")
	case deps.Metadata == nil:
		return nil, errors.New("resume: metadata store is required")
	}

	def := DefaultOptions()
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = def.PresignTTL
	}
	if opts.GuestResultTTL <= 0 {
		opts.GuestResultTTL = def.GuestResultTTL
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = def.MaxUploadBytes
	}
	if opts.ScoreMaxTokens <= 0 {
		opts.ScoreMaxTokens = def.ScoreMaxTokens
	}
	if opts.StructureMaxTokens <= 0 {
		opts.StructureMaxTokens = def.StructureMaxTokens
	}

	s := &Service{
		limiter:   deps.Limiter,
		objects:   deps.Objects,
		extractor: deps.Extractor,
		completer: deps.Completer,
		metadata:  deps.Metadata,
		clock:     deps.Clock,
		newID:     deps.NewID,
		logger:    deps.Logger,
		opts:      opts,
	}
	if s.clock == nil {
		s.clock = quota.SystemClock{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "resume")
	return s, nil
}

// Ping checks the metadata store.
func (s *Service) Ping(ctx context.Context) error {
	return s.metadata.Ping(ctx)
}

func userSubject(id quota.Identity) (string, error) {
	if id.Tier != quota.TierUser || id.ID == "" {
		return "", ErrUnauthenticated
	}
	return id.ID, nil
}

// extract reads the document's text lines, mapping collaborator errors.
func (s *Service) extract(ctx context.Context, key string) ([]string, error) {
	lines, err := s.extractor.ExtractLines(ctx, s.objects.Bucket(), key)
	switch {
	case err == nil:
		return lines, nil
	case errors.Is(err, objectstore.ErrNotFound):
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, key)
	case errors.Is(err, extraction.ErrNoText):
		return nil, invalidf("document %s contains no readable text", key)
	default:
		return nil, &UpstreamError{Service: string(quota.ServiceTextract), Op: "extract", Err: err}
	}
}

// complete runs a prompt and decodes the JSON reply into v. The raw reply
// is returned for diagnostics.
func (s *Service) complete(ctx context.Context, op, prompt string, maxTokens int, v any) (string, error) {
	resp, err := s.completer.Complete(ctx, generative.Request{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return "", &UpstreamError{Service: string(quota.ServiceBedrock), Op: op, Err: err}
	}

	stage, err := jsonrepair.Decode(resp.Text, v)
	if err != nil {
		s.logger.ErrorContext(ctx, "model output could not be decoded",
			"op", op, "stage", stage, "error", err, "raw", truncate(resp.Text, 2000))
		return resp.Text, err
	}
	if stage != jsonrepair.StageStrict {
		s.logger.WarnContext(ctx, "model output needed repair", "op", op, "stage", stage)
	}
	return resp.Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func malformed(raw string, err error) error {
	return &jsonrepair.MalformedOutputError{Raw: raw, Stage: jsonrepair.StageStrict, Offset: -1, Err: err}
}
