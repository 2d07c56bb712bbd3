// Package metadata stores scoring results and structured master resumes.
//
// Results written for guests carry an expiry; every backend hides expired
// results from GetResult even before they are physically removed.
package metadata

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist or has expired.
var ErrNotFound = errors.New("metadata: record not found")

// Entry kinds produced when structuring a resume.
const (
	EntryExperience     = "experience"
	EntryEducation      = "education"
	EntryProject        = "project"
	EntrySkills         = "skills"
	EntryCertifications = "certifications"
	EntryUserInfo       = "userInfo"
)

// KnownEntryType reports whether t is one of the Entry kinds above.
func KnownEntryType(t string) bool {
	switch t {
	case EntryExperience, EntryEducation, EntryProject, EntrySkills, EntryCertifications, EntryUserInfo:
		return true
	}
	return false
}

// Entry is one section item of a structured resume. For the userInfo entry
// Title holds the person's name and Description their contact details.
type Entry struct {
	Type         string `json:"type" dynamodbav:"type"`
	Title        string `json:"title" dynamodbav:"title"`
	Organization string `json:"organization" dynamodbav:"organization"`
	StartDate    string `json:"startDate" dynamodbav:"startDate"`
	EndDate      string `json:"endDate" dynamodbav:"endDate"`
	Description  string `json:"description" dynamodbav:"description"`
}

// AnalysisResult is a stored resume score.
type AnalysisResult struct {
	ResultID       string
	ResumeKey      string
	JobDescription string
	Score          int
	Feedback       []string
	// UserID is empty for guest results.
	UserID    string
	CreatedAt time.Time
	// ExpiresAt is zero for results that never expire.
	ExpiresAt time.Time
}

// Expired reports whether the result is past its expiry at now.
func (r *AnalysisResult) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// MasterResume is a user's structured master resume.
type MasterResume struct {
	UserID    string
	ObjectKey string
	Entries   []Entry
	UpdatedAt time.Time
}

// Store persists results and master resumes.
type Store interface {
	GetResult(ctx context.Context, resultID string) (*AnalysisResult, error)
	PutResult(ctx context.Context, r *AnalysisResult) error
	GetMaster(ctx context.Context, userID string) (*MasterResume, error)
	PutMaster(ctx context.Context, m *MasterResume) error
	Ping(ctx context.Context) error
	Close() error
}

func validateResult(r *AnalysisResult) error {
	if r == nil || r.ResultID == "" {
		return errors.New("metadata: result id is required")
	}
	return nil
}

func validateMaster(m *MasterResume) error {
	if m == nil || m.UserID == "" {
		return errors.New("metadata: user id is required")
	}
	return nil
}
