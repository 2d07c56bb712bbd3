package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"resumetailor-hq/tailor/pkg/metadata"
	"resumetailor-hq/tailor/pkg/objectstore"
	"resumetailor-hq/tailor/pkg/quota"
	"resumetailor-hq/tailor/pkg/quota/limiter"
)

// MaxJobDescriptionRunes bounds job description length.
const MaxJobDescriptionRunes = 20000

func validateJobDescription(jd string) (string, error) {
	jd = strings.TrimSpace(jd)
	if jd == "" {
		return "", invalidf("job description is required")
	}
	if utf8.RuneCountInString(jd) > MaxJobDescriptionRunes {
		return "", invalidf("job description is longer than %d characters", MaxJobDescriptionRunes)
	}
	return jd, nil
}

func mapMetadataErr(err error, what string) error {
	if errors.Is(err, metadata.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("resume: load %s: %w", what, err)
}

// ScoreInput names the stored resume to score and the target job.
type ScoreInput struct {
	ObjectKey      string
	JobDescription string
}

// ScoreResult is a completed scoring.
type ScoreResult struct {
	ResultID string
	Score    int
	Feedback []string
	// Admission holds the quota decisions charged for the request.
	Admission []limiter.Result
}

type scoreReply struct {
	Score    *float64 `json:"score"`
	Feedback []string `json:"feedback"`
}

// Score evaluates a stored resume against a job description and saves the
// result. Guests may only score guest uploads.
func (s *Service) Score(ctx context.Context, id quota.Identity, in ScoreInput) (*ScoreResult, error) {
	jd, err := validateJobDescription(in.JobDescription)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(id, in.ObjectKey); err != nil {
		return nil, err
	}

	admission, err := s.limiter.Admit(ctx, id, quota.ServiceTextract, quota.ServiceBedrock)
	if err != nil {
		return nil, err
	}

	lines, err := s.extract(ctx, in.ObjectKey)
	if err != nil {
		return nil, err
	}
	prompt, err := scorePrompt(strings.Join(lines, "\n"), jd)
	if err != nil {
		return nil, err
	}

	var reply scoreReply
	raw, err := s.complete(ctx, "score", prompt, s.opts.ScoreMaxTokens, &reply)
	if err != nil {
		return nil, err
	}
	if reply.Score == nil {
		return nil, malformed(raw, errors.New("reply has no score"))
	}
	if len(reply.Feedback) == 0 {
		return nil, malformed(raw, errors.New("reply has no feedback"))
	}

	now := s.clock.Now().UTC()
	result := &metadata.AnalysisResult{
		ResultID:       s.newID(),
		ResumeKey:      in.ObjectKey,
		JobDescription: jd,
		Score:          int(math.Round(min(max(*reply.Score, 0), 100))),
		Feedback:       reply.Feedback,
		CreatedAt:      now,
	}
	if id.Tier == quota.TierGuest {
		result.ExpiresAt = now.Add(s.opts.GuestResultTTL)
	} else {
		result.UserID = id.ID
	}

	// The score is still returned when saving fails; the caller has
	// already been charged for it.
	if err := s.metadata.PutResult(ctx, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to save analysis result", "result_id", result.ResultID, "error", err)
	}

	s.logger.InfoContext(ctx, "resume scored", "result_id", result.ResultID, "score", result.Score, "lines", len(lines))
	return &ScoreResult{
		ResultID:  result.ResultID,
		Score:     result.Score,
		Feedback:  result.Feedback,
		Admission: admission,
	}, nil
}

// ScoreView is a stored result with a link to the scored document.
type ScoreView struct {
	ResultID       string
	FileURL        string
	JobDescription string
	Score          int
	Feedback       []string
}

// GetScore loads a stored result.
func (s *Service) GetScore(ctx context.Context, resultID string) (*ScoreView, error) {
	resultID = strings.TrimSpace(resultID)
	if resultID == "" {
		return nil, invalidf("resultId is required")
	}
	r, err := s.metadata.GetResult(ctx, resultID)
	if err != nil {
		return nil, mapMetadataErr(err, "result "+resultID)
	}
	url, err := s.presign(ctx, r.ResumeKey)
	if err != nil {
		return nil, err
	}
	return &ScoreView{
		ResultID:       r.ResultID,
		FileURL:        url,
		JobDescription: r.JobDescription,
		Score:          r.Score,
		Feedback:       r.Feedback,
	}, nil
}

// MasterResult is a freshly structured master resume.
type MasterResult struct {
	ObjectKey string
	Entries   []metadata.Entry
	Admission []limiter.Result
}

// ProcessMaster stores the user's master resume, structures it into
// entries and saves them.
func (s *Service) ProcessMaster(ctx context.Context, id quota.Identity, file []byte) (*MasterResult, error) {
	sub, err := userSubject(id)
	if err != nil {
		return nil, err
	}
	if err := s.validateDocument(file); err != nil {
		return nil, err
	}

	admission, err := s.limiter.Admit(ctx, id, quota.ServiceTextract, quota.ServiceBedrock)
	if err != nil {
		return nil, err
	}

	key := objectstore.MasterKey(sub)
	if err := s.putPDF(ctx, key, file); err != nil {
		return nil, err
	}
	lines, err := s.extract(ctx, key)
	if err != nil {
		return nil, err
	}
	prompt, err := structurePrompt(strings.Join(lines, "\n"))
	if err != nil {
		return nil, err
	}

	var entries []metadata.Entry
	raw, err := s.complete(ctx, "structure", prompt, s.opts.StructureMaxTokens, &entries)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, malformed(raw, errors.New("reply has no entries"))
	}
	warnUnknownEntries(ctx, s.logger, "structure", entries)

	master := &metadata.MasterResume{
		UserID:    sub,
		ObjectKey: key,
		Entries:   entries,
		UpdatedAt: s.clock.Now().UTC(),
	}
	if err := s.metadata.PutMaster(ctx, master); err != nil {
		return nil, fmt.Errorf("resume: save master resume: %w", err)
	}

	s.logger.InfoContext(ctx, "master resume processed", "key", key, "entries", len(entries))
	return &MasterResult{ObjectKey: key, Entries: entries, Admission: admission}, nil
}

// MasterView is the stored master resume with a download link.
type MasterView struct {
	URL     string
	Entries []metadata.Entry
}

// GetMaster returns the user's master resume.
func (s *Service) GetMaster(ctx context.Context, id quota.Identity) (*MasterView, error) {
	sub, err := userSubject(id)
	if err != nil {
		return nil, err
	}
	m, err := s.metadata.GetMaster(ctx, sub)
	if err != nil {
		return nil, mapMetadataErr(err, "master resume")
	}
	url, err := s.presign(ctx, m.ObjectKey)
	if err != nil {
		return nil, err
	}
	return &MasterView{URL: url, Entries: m.Entries}, nil
}

// TailorResult is the selection of entries for one job.
type TailorResult struct {
	Entries   []metadata.Entry
	Admission []limiter.Result
}

// Tailor selects and trims master resume entries for a job description.
// A user without a master resume is rejected before quota is charged.
func (s *Service) Tailor(ctx context.Context, id quota.Identity, jobDescription string) (*TailorResult, error) {
	sub, err := userSubject(id)
	if err != nil {
		return nil, err
	}
	jd, err := validateJobDescription(jobDescription)
	if err != nil {
		return nil, err
	}
	m, err := s.metadata.GetMaster(ctx, sub)
	if err != nil {
		return nil, mapMetadataErr(err, "master resume")
	}
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("%w: master resume has no entries", ErrNotFound)
	}

	admission, err := s.limiter.Admit(ctx, id, quota.ServiceBedrock)
	if err != nil {
		return nil, err
	}

	prompt, err := tailorPrompt(m.Entries, jd)
	if err != nil {
		return nil, err
	}
	var entries []metadata.Entry
	raw, err := s.complete(ctx, "tailor", prompt, s.opts.StructureMaxTokens, &entries)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, malformed(raw, errors.New("reply has no entries"))
	}
	warnUnknownEntries(ctx, s.logger, "tailor", entries)
	return &TailorResult{Entries: entries, Admission: admission}, nil
}

// UsageReport is a caller's counters for every metered service.
type UsageReport struct {
	Identity quota.Identity
	Services map[quota.Service]limiter.Usage
	ResetAt  time.Time
}

// Usage reads every service's counter concurrently. It never charges quota.
func (s *Service) Usage(ctx context.Context, id quota.Identity) (*UsageReport, error) {
	usages := make([]limiter.Usage, len(quota.Services))
	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range quota.Services {
		g.Go(func() error {
			u, err := s.limiter.ReadUsage(gctx, id, svc)
			if err != nil {
				return err
			}
			usages[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &UsageReport{Identity: id, Services: make(map[quota.Service]limiter.Usage, len(usages))}
	for _, u := range usages {
		report.Services[u.Service] = u
		report.ResetAt = u.ResetAt
	}
	return report, nil
}

// warnUnknownEntries logs entry kinds the prompts never ask for. The
// entries are kept as returned.
func warnUnknownEntries(ctx context.Context, logger *slog.Logger, op string, entries []metadata.Entry) {
	var unknown []string
	for _, e := range entries {
		if !metadata.KnownEntryType(e.Type) {
			unknown = append(unknown, e.Type)
		}
	}
	if len(unknown) > 0 {
		logger.WarnContext(ctx, "model returned unknown entry types", "operation", op, "types", unknown)
	}
}
