package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"resumetailor-hq/tailor/pkg/quota"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore implements quota.Store on a DynamoDB table keyed by
// (identifier, date_service). Expiry relies on the table's TTL attribute.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

var _ quota.Store = (*DynamoStore)(nil)

// DefaultDynamoTable is the quota table name.
const DefaultDynamoTable = "ApiUsageLimits"

// NewDynamoStore creates a store on table. An empty table selects
// DefaultDynamoTable.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	if table == "" {
		table = DefaultDynamoTable
	}
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) key(identity, periodKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"identifier":   &types.AttributeValueMemberS{Value: identity},
		"date_service": &types.AttributeValueMemberS{Value: periodKey},
	}
}

// IncrementIfUnderLimit issues one conditional UpdateItem. A failed
// condition check is the limit signal.
func (s *DynamoStore) IncrementIfUnderLimit(ctx context.Context, identity, periodKey string, limit int64, expiresAt time.Time) (int64, error) {
	if err := validateKey(identity, periodKey); err != nil {
		return 0, err
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(identity, periodKey),
		UpdateExpression:    aws.String("SET request_count = if_not_exists(request_count, :start) + :inc, #ttl = :ttl_val"),
		ConditionExpression: aws.String("attribute_not_exists(request_count) OR request_count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc":     &types.AttributeValueMemberN{Value: "1"},
			":start":   &types.AttributeValueMemberN{Value: "0"},
			":limit":   &types.AttributeValueMemberN{Value: strconv.FormatInt(limit, 10)},
			":ttl_val": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.Unix(), 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, quota.ErrLimitExceeded
		}
		return 0, &quota.StoreError{Backend: "dynamodb", Op: "update_item", Err: err}
	}

	var attrs struct {
		RequestCount int64 `dynamodbav:"request_count"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &attrs); err != nil {
		return 0, &quota.StoreError{Backend: "dynamodb", Op: "decode", Err: err}
	}
	return attrs.RequestCount, nil
}

// ReadCount performs a point read. Absent items count as 0.
func (s *DynamoStore) ReadCount(ctx context.Context, identity, periodKey string) (int64, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(identity, periodKey),
	})
	if err != nil {
		return 0, &quota.StoreError{Backend: "dynamodb", Op: "get_item", Err: err}
	}
	if out.Item == nil {
		return 0, nil
	}

	var item struct {
		RequestCount int64 `dynamodbav:"request_count"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return 0, &quota.StoreError{Backend: "dynamodb", Op: "decode", Err: err}
	}
	return item.RequestCount, nil
}

// Ping describes the table.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return fmt.Errorf("quota/dynamodb: describe table %s: %w", s.table, err)
	}
	return nil
}

// Close is a no-op; the AWS client holds no resources that need releasing.
func (s *DynamoStore) Close() error { return nil }
