package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Default table names.
const (
	DefaultResultsTable = "ResumeAnalysisResults"
	DefaultMasterTable  = "ResumeMetadata"
)

// DynamoStore keeps results keyed by resultId and master resumes keyed by
// resume_id (the user subject). Guest results carry a ttl attribute for
// DynamoDB's native expiry.
type DynamoStore struct {
	client       DynamoAPI
	resultsTable string
	masterTable  string
	now          func() time.Time
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a store. Empty table names select the defaults.
func NewDynamoStore(client DynamoAPI, resultsTable, masterTable string) *DynamoStore {
	if resultsTable == "" {
		resultsTable = DefaultResultsTable
	}
	if masterTable == "" {
		masterTable = DefaultMasterTable
	}
	return &DynamoStore{client: client, resultsTable: resultsTable, masterTable: masterTable, now: time.Now}
}

type resultItem struct {
	ResultID       string   `dynamodbav:"resultId"`
	ResumeID       string   `dynamodbav:"resumeId"`
	JobDescription string   `dynamodbav:"jobDescription"`
	Score          int      `dynamodbav:"score"`
	Feedback       []string `dynamodbav:"feedback"`
	UserID         string   `dynamodbav:"userId,omitempty"`
	CreatedAt      string   `dynamodbav:"createdAt"`
	TTL            int64    `dynamodbav:"ttl,omitempty"`
}

type masterItem struct {
	ResumeID  string  `dynamodbav:"resume_id"`
	S3Key     string  `dynamodbav:"s3_key"`
	Entries   []Entry `dynamodbav:"entries"`
	UpdatedAt string  `dynamodbav:"updatedAt"`
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *DynamoStore) GetResult(ctx context.Context, resultID string) (*AnalysisResult, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.resultsTable),
		Key: map[string]types.AttributeValue{
			"resultId": &types.AttributeValueMemberS{Value: resultID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("metadata/dynamodb: get result: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var item resultItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("metadata/dynamodb: decode result: %w", err)
	}
	r := &AnalysisResult{
		ResultID:       item.ResultID,
		ResumeKey:      item.ResumeID,
		JobDescription: item.JobDescription,
		Score:          item.Score,
		Feedback:       item.Feedback,
		UserID:         item.UserID,
		CreatedAt:      parseTime(item.CreatedAt),
		ExpiresAt:      timeOrZero(item.TTL),
	}
	// TTL deletion runs in the background, so expired items can still be read.
	if r.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *DynamoStore) PutResult(ctx context.Context, r *AnalysisResult) error {
	if err := validateResult(r); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(resultItem{
		ResultID:       r.ResultID,
		ResumeID:       r.ResumeKey,
		JobDescription: r.JobDescription,
		Score:          r.Score,
		Feedback:       r.Feedback,
		UserID:         r.UserID,
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339Nano),
		TTL:            unixOrZero(r.ExpiresAt),
	})
	if err != nil {
		return fmt.Errorf("metadata/dynamodb: encode result: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.resultsTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("metadata/dynamodb: put result: %w", err)
	}
	return nil
}

func (s *DynamoStore) GetMaster(ctx context.Context, userID string) (*MasterResume, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.masterTable),
		Key: map[string]types.AttributeValue{
			"resume_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("metadata/dynamodb: get master: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var item masterItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("metadata/dynamodb: decode master: %w", err)
	}
	return &MasterResume{
		UserID:    item.ResumeID,
		ObjectKey: item.S3Key,
		Entries:   item.Entries,
		UpdatedAt: parseTime(item.UpdatedAt),
	}, nil
}

func (s *DynamoStore) PutMaster(ctx context.Context, m *MasterResume) error {
	if err := validateMaster(m); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(masterItem{
		ResumeID:  m.UserID,
		S3Key:     m.ObjectKey,
		Entries:   m.Entries,
		UpdatedAt: m.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("metadata/dynamodb: encode master: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.masterTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("metadata/dynamodb: put master: %w", err)
	}
	return nil
}

// Ping describes the results table.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.resultsTable)})
	if err != nil {
		return fmt.Errorf("metadata/dynamodb: describe table %s: %w", s.resultsTable, err)
	}
	return nil
}

// Close is a no-op.
func (s *DynamoStore) Close() error { return nil }
