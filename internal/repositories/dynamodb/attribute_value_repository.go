// Package dynamodb stores attribute values in a DynamoDB table keyed by
// owner (partition key) and attribute (sort key).
package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/config"
	"github.com/ahmedbally/astudio-task/internal/repositories"
)

const (
	// batchSize is the BatchWriteItem request limit
	batchSize = 25
	// maxBatchRetries bounds resubmission of unprocessed batch items
	maxBatchRetries = 5

	ownerPrefix     = "OWNER#"
	attributePrefix = "ATTR#"
)

// Client is the subset of the DynamoDB API the repository uses
type Client interface {
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *sdk.BatchWriteItemInput, optFns ...func(*sdk.Options)) (*sdk.BatchWriteItemOutput, error)
}

// valueItem is the stored form of one attribute value
type valueItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	AttributeID int64  `dynamodbav:"attribute_id"`
	OwnerKind   string `dynamodbav:"owner_kind"`
	OwnerID     int64  `dynamodbav:"owner_id"`
	Value       string `dynamodbav:"value"`
}

// AttributeValueRepository implements repositories.AttributeValueRepository on DynamoDB.
// Rows have no numeric ID; AttributeValue.ID is always zero.
type AttributeValueRepository struct {
	client Client
	table  string
}

// NewAttributeValueRepository creates a repository over an existing table
func NewAttributeValueRepository(client Client, table string) repositories.AttributeValueRepository {
	return &AttributeValueRepository{client: client, table: table}
}

// NewClient creates a DynamoDB client from configuration. Static credentials
// are used when both keys are set, otherwise the default AWS chain applies.
func NewClient(ctx context.Context, cfg *config.DynamoDBConfig) (*sdk.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS configuration")
	}

	return sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func ownerKey(owner entities.OwnerRef) string {
	return fmt.Sprintf("%s%s#%d", ownerPrefix, owner.Kind, owner.ID)
}

func attributeKey(attributeID int64) string {
	return attributePrefix + strconv.FormatInt(attributeID, 10)
}

func itemKey(attributeID int64, owner entities.OwnerRef) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: ownerKey(owner)},
		"SK": &types.AttributeValueMemberS{Value: attributeKey(attributeID)},
	}
}

// Upsert writes the value with a single PutItem, which replaces any
// existing item with the same key
func (r *AttributeValueRepository) Upsert(ctx context.Context, attributeID int64, owner entities.OwnerRef, value string) (*entities.AttributeValue, error) {
	row := &entities.AttributeValue{AttributeID: attributeID, Owner: owner, Value: value}
	if err := row.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid attribute value")
	}

	item, err := attributevalue.MarshalMap(valueItem{
		PK:          ownerKey(owner),
		SK:          attributeKey(attributeID),
		AttributeID: attributeID,
		OwnerKind:   string(owner.Kind),
		OwnerID:     owner.ID,
		Value:       value,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal attribute value")
	}

	if _, err := r.client.PutItem(ctx, &sdk.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	}); err != nil {
		return nil, errors.Wrap(err, "PutItem failed")
	}
	return row, nil
}

// DeleteWhere removes the value of an attribute for an owner
func (r *AttributeValueRepository) DeleteWhere(ctx context.Context, attributeID int64, owner entities.OwnerRef) (int64, error) {
	out, err := r.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:    aws.String(r.table),
		Key:          itemKey(attributeID, owner),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return 0, errors.Wrap(err, "DeleteItem failed")
	}
	if len(out.Attributes) == 0 {
		return 0, nil
	}
	return 1, nil
}

// FindAllForOwner retrieves every value of an owner ordered by attribute id
func (r *AttributeValueRepository) FindAllForOwner(ctx context.Context, owner entities.OwnerRef) ([]*entities.AttributeValue, error) {
	items, err := r.queryOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	values := make([]*entities.AttributeValue, 0, len(items))
	for _, raw := range items {
		var item valueItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal attribute value")
		}
		if item.AttributeID == 0 {
			id, err := parseAttributeKey(item.SK)
			if err != nil {
				return nil, err
			}
			item.AttributeID = id
		}
		values = append(values, &entities.AttributeValue{
			AttributeID: item.AttributeID,
			Owner:       entities.OwnerRef{Kind: entities.OwnerKind(item.OwnerKind), ID: item.OwnerID},
			Value:       item.Value,
		})
	}

	// Sort keys compare as strings, so ATTR#10 precedes ATTR#2
	sort.Slice(values, func(i, j int) bool { return values[i].AttributeID < values[j].AttributeID })
	return values, nil
}

// DeleteAllForOwner removes every value of an owner in batches
func (r *AttributeValueRepository) DeleteAllForOwner(ctx context.Context, owner entities.OwnerRef) (int64, error) {
	items, err := r.queryOwner(ctx, owner)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, item := range items[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]}},
			})
		}

		if err := r.batchWrite(ctx, requests); err != nil {
			return deleted, err
		}
		deleted += int64(len(requests))
	}
	return deleted, nil
}

func (r *AttributeValueRepository) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.table: requests}
	for attempt := 0; attempt < maxBatchRetries; attempt++ {
		out, err := r.client.BatchWriteItem(ctx, &sdk.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return errors.Wrap(err, "BatchWriteItem failed")
		}
		if len(out.UnprocessedItems[r.table]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
	}
	return errors.Newf("BatchWriteItem left %d items unprocessed", len(pending[r.table]))
}

func (r *AttributeValueRepository) queryOwner(ctx context.Context, owner entities.OwnerRef) ([]map[string]types.AttributeValue, error) {
	if err := owner.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid owner")
	}

	input := &sdk.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: ownerKey(owner)},
			":sk": &types.AttributeValueMemberS{Value: attributePrefix},
		},
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "Query failed")
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// parseAttributeKey extracts the attribute id from a sort key
func parseAttributeKey(sk string) (int64, error) {
	if !strings.HasPrefix(sk, attributePrefix) {
		return 0, errors.Newf("unexpected sort key %q", sk)
	}
	return strconv.ParseInt(strings.TrimPrefix(sk, attributePrefix), 10, 64)
}
