package extraction

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// TextractAPI is the subset of the Textract client used here.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, in *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
	StartDocumentTextDetection(ctx context.Context, in *textract.StartDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.StartDocumentTextDetectionOutput, error)
	GetDocumentTextDetection(ctx context.Context, in *textract.GetDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.GetDocumentTextDetectionOutput, error)
}

// Textract reads documents from S3 with Amazon Textract. ExtractLines uses
// the single-page synchronous API; StartJob and Poll implement AsyncAPI
// for multi-page documents.
type Textract struct {
	client TextractAPI
}

// NewTextract creates a Textract extractor from an aws.Config.
func NewTextract(cfg aws.Config) *Textract {
	return &Textract{client: textract.NewFromConfig(cfg)}
}

// NewTextractWithClient creates a Textract extractor over client.
func NewTextractWithClient(client TextractAPI) *Textract {
	return &Textract{client: client}
}

// ExtractLines runs DetectDocumentText and returns the LINE blocks.
func (t *Textract) ExtractLines(ctx context.Context, bucket, key string) ([]string, error) {
	out, err := t.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{
			S3Object: &types.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: detect text in %s: %w", key, err)
	}
	lines := lineBlocks(out.Blocks)
	if len(lines) == 0 {
		return nil, ErrNoText
	}
	return lines, nil
}

// StartJob starts asynchronous text detection.
func (t *Textract) StartJob(ctx context.Context, bucket, key string) (string, error) {
	out, err := t.client.StartDocumentTextDetection(ctx, &textract.StartDocumentTextDetectionInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)},
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.JobId), nil
}

// Poll reads the job status and, when finished, a page of LINE blocks.
func (t *Textract) Poll(ctx context.Context, jobID, nextToken string) (Page, error) {
	in := &textract.GetDocumentTextDetectionInput{JobId: aws.String(jobID)}
	if nextToken != "" {
		in.NextToken = aws.String(nextToken)
	}
	out, err := t.client.GetDocumentTextDetection(ctx, in)
	if err != nil {
		return Page{}, err
	}

	page := Page{
		Status:        mapJobStatus(out.JobStatus),
		StatusMessage: aws.ToString(out.StatusMessage),
	}
	if page.Status != StatusRunning {
		page.Lines = lineBlocks(out.Blocks)
		page.NextToken = aws.ToString(out.NextToken)
	}
	return page, nil
}

func mapJobStatus(s types.JobStatus) JobStatus {
	switch s {
	case types.JobStatusInProgress:
		return StatusRunning
	case types.JobStatusSucceeded:
		return StatusSucceeded
	case types.JobStatusFailed:
		return StatusFailed
	case types.JobStatusPartialSuccess:
		return StatusPartialSuccess
	default:
		return JobStatus(s)
	}
}

func lineBlocks(blocks []types.Block) []string {
	var lines []string
	for _, b := range blocks {
		if b.BlockType == types.BlockTypeLine && b.Text != nil {
			lines = append(lines, *b.Text)
		}
	}
	return lines
}
