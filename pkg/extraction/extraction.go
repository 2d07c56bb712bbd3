// Package extraction turns stored resume documents into text lines.
//
// Two backends exist: Amazon Textract, either synchronous or through the
// asynchronous job API driven by Poller, and a local PDF text extractor for
// development without AWS.
package extraction

import (
	"context"
	"errors"
	"fmt"
)

// Extractor returns the text lines of the document stored at bucket/key,
// in reading order.
type Extractor interface {
	ExtractLines(ctx context.Context, bucket, key string) ([]string, error)
}

// JobStatus is the state of an asynchronous extraction job.
type JobStatus string

const (
	StatusRunning        JobStatus = "RUNNING"
	StatusSucceeded      JobStatus = "SUCCEEDED"
	StatusFailed         JobStatus = "FAILED"
	StatusPartialSuccess JobStatus = "PARTIAL_SUCCESS"
)

// Page is one poll response. Lines and NextToken are only meaningful once
// the job has finished.
type Page struct {
	Status        JobStatus
	StatusMessage string
	Lines         []string
	NextToken     string
}

// AsyncAPI starts extraction jobs and reads their results.
type AsyncAPI interface {
	StartJob(ctx context.Context, bucket, key string) (string, error)
	// Poll returns the job status. With a non-empty nextToken it returns
	// the following page of a finished job.
	Poll(ctx context.Context, jobID, nextToken string) (Page, error)
}

var (
	// ErrJobTimedOut is returned when a job is still running after the
	// poller's last attempt.
	ErrJobTimedOut = errors.New("extraction: job did not finish in time")

	// ErrNoText is returned when a document yields no text at all.
	ErrNoText = errors.New("extraction: document contains no text")
)

// JobFailedError reports a job the backend marked as failed.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("extraction: job %s failed", e.JobID)
	}
	return fmt.Sprintf("extraction: job %s failed: %s", e.JobID, e.Message)
}
