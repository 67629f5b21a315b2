package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// cacheRecord is one cached response in the DynamoDB table.
type cacheRecord struct {
	Key   string `dynamodbav:"PK"`
	Value string `dynamodbav:"value"`
	TTL   *int64 `dynamodbav:"ttl,omitempty"` // DynamoDB TTL, unix seconds
}

// DynamoDBStore is a durable Store shared by every gateway replica.
// Table layout: PK=<cache key>, attribute "value" holds the serialised entry.
type DynamoDBStore struct {
	client    *dynamodb.Client
	tableName string
	maxAge    time.Duration
	now       func() time.Time
}

// NewDynamoDBStore creates a DynamoDB-backed store. maxAge, when positive,
// sets the item TTL so DynamoDB reaps abandoned entries.
func NewDynamoDBStore(client *dynamodb.Client, tableName string, maxAge time.Duration) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// EnsureTable creates the cache table if it doesn't exist.
func (s *DynamoDBStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("failed waiting for cache table: %w", err)
	}

	_, err = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String("ttl"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enable TTL: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache item: %w", err)
	}
	if result.Item == nil {
		return nil, false, nil
	}

	var record cacheRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache item: %w", err)
	}
	return []byte(record.Value), true, nil
}

func (s *DynamoDBStore) Set(ctx context.Context, key string, value []byte) error {
	record := cacheRecord{Key: key, Value: string(value)}
	if s.maxAge > 0 {
		ttl := s.now().Add(s.maxAge).Unix()
		record.TTL = &ttl
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal cache item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put cache item: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache item: %w", err)
	}
	return nil
}

// Ping checks that the table is reachable.
func (s *DynamoDBStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	return err
}
