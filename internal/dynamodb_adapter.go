package internal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/lychee-technology/dataeditor"
)

// DynamoDB attribute names of the records table.
const (
	dynamoModelAttr   = "model"
	dynamoKeyAttr     = "key"
	dynamoDataAttr    = "data"
	dynamoCreatedAttr = "createdAt"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the dynamodb adapter.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type dynamoDBAdapter struct {
	client  DynamoDBAPI
	table   string
	modelID string
	options AdapterOptions
	nowFunc func() time.Time
}

// NewDynamoDBAdapter stores the records of modelID in a table keyed by (model, key).
func NewDynamoDBAdapter(client DynamoDBAPI, table, modelID string, options AdapterOptions) dataeditor.Adapter {
	return &dynamoDBAdapter{
		client:  client,
		table:   table,
		modelID: modelID,
		options: options,
		nowFunc: time.Now,
	}
}

func (a *dynamoDBAdapter) itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoModelAttr: &types.AttributeValueMemberS{Value: a.modelID},
		dynamoKeyAttr:   &types.AttributeValueMemberS{Value: id},
	}
}

type dynamoItem struct {
	record  dataeditor.Record
	created int64
}

func decodeDynamoItem(item map[string]types.AttributeValue) (dynamoItem, error) {
	var out dynamoItem
	var data map[string]any
	if av, ok := item[dynamoDataAttr]; ok {
		if err := attributevalue.Unmarshal(av, &data); err != nil {
			return out, err
		}
	}
	out.record = dataeditor.Record(data)
	if out.record == nil {
		out.record = dataeditor.Record{}
	}
	if n, ok := item[dynamoCreatedAttr].(*types.AttributeValueMemberN); ok {
		out.created, _ = strconv.ParseInt(n.Value, 10, 64)
	}
	return out, nil
}

func (a *dynamoDBAdapter) encodeItem(id string, record dataeditor.Record, created int64) (map[string]types.AttributeValue, error) {
	data, err := attributevalue.Marshal(map[string]any(record))
	if err != nil {
		return nil, err
	}
	item := a.itemKey(id)
	item[dynamoDataAttr] = data
	item[dynamoCreatedAttr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(created, 10)}
	return item, nil
}

func (a *dynamoDBAdapter) List(ctx context.Context) ([]dataeditor.Record, error) {
	items := make([]dynamoItem, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := a.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(a.table),
			KeyConditionExpression: aws.String("#m = :m"),
			ExpressionAttributeNames: map[string]string{
				"#m": dynamoModelAttr,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":m": &types.AttributeValueMemberS{Value: a.modelID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, dataeditor.NewAdapterError("failed to list records", err)
		}
		for _, raw := range out.Items {
			item, err := decodeDynamoItem(raw)
			if err != nil {
				return nil, dataeditor.NewAdapterError("failed to decode record", err)
			}
			items = append(items, item)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].created < items[j].created })
	records := make([]dataeditor.Record, len(items))
	for i, item := range items {
		records[i] = item.record
	}
	return records, nil
}

func (a *dynamoDBAdapter) get(ctx context.Context, id string) (*dynamoItem, error) {
	out, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(a.table),
		Key:            a.itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to read record %s", id), err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	item, err := decodeDynamoItem(out.Item)
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to decode record %s", id), err)
	}
	return &item, nil
}

func (a *dynamoDBAdapter) Read(ctx context.Context, id string) (dataeditor.Record, error) {
	item, err := a.get(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	return item.record, nil
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// put writes a record; mustExist selects the attribute_exists / attribute_not_exists guard.
func (a *dynamoDBAdapter) put(ctx context.Context, id string, record dataeditor.Record, created int64, mustExist bool) error {
	item, err := a.encodeItem(id, record, created)
	if err != nil {
		return dataeditor.NewAdapterError("failed to encode record", err)
	}
	condition := "attribute_not_exists(#k)"
	if mustExist {
		condition = "attribute_exists(#k)"
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(a.table),
		Item:                     item,
		ConditionExpression:      aws.String(condition),
		ExpressionAttributeNames: map[string]string{"#k": dynamoKeyAttr},
	})
	if isConditionFailure(err) {
		if mustExist {
			return dataeditor.NewEntryNotFoundError(id)
		}
		return dataeditor.NewEntryExistsError(id)
	}
	if err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to store record %s", id), err)
	}
	return nil
}

func (a *dynamoDBAdapter) Create(ctx context.Context, data dataeditor.Record) (dataeditor.Record, error) {
	record := a.options.assignKey(data)
	key := RecordKey(record, a.options.primaryKey())
	if err := a.put(ctx, key, record, a.nowFunc().UnixNano(), false); err != nil {
		return nil, err
	}
	return dataeditor.CloneRecord(record), nil
}

func (a *dynamoDBAdapter) Update(ctx context.Context, id string, data dataeditor.Record) (dataeditor.Record, error) {
	existing, err := a.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, dataeditor.NewEntryNotFoundError(id)
	}

	newKey := RecordKey(data, a.options.primaryKey())
	if newKey == id {
		if err := a.put(ctx, id, data, existing.created, true); err != nil {
			return nil, err
		}
		return dataeditor.CloneRecord(data), nil
	}

	if err := a.put(ctx, newKey, data, existing.created, false); err != nil {
		return nil, err
	}
	if err := a.Delete(ctx, id); err != nil {
		return nil, err
	}
	return dataeditor.CloneRecord(data), nil
}

func (a *dynamoDBAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(a.table),
		Key:                      a.itemKey(id),
		ConditionExpression:      aws.String("attribute_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": dynamoKeyAttr},
	})
	if isConditionFailure(err) {
		return dataeditor.NewEntryNotFoundError(id)
	}
	if err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to delete record %s", id), err)
	}
	return nil
}
