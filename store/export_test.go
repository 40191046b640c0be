package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a raw DynamoDB item.
type Item = map[string]types.AttributeValue

// FakeDynamo is an in-memory DynamoAPI understanding the expressions Dynamo sends.
type FakeDynamo struct {
	mu     sync.Mutex
	keys   map[string][]string
	tables map[string]map[string]Item

	// UnprocessedRounds makes the next BatchWriteItem calls return every
	// request as unprocessed.
	UnprocessedRounds int

	// FailBatch is returned by BatchWriteItem when set.
	FailBatch error

	// OnBatchWrite runs before each BatchWriteItem call.
	OnBatchWrite func()

	// BatchCalls counts BatchWriteItem calls.
	BatchCalls int

	// FailUpdate is returned by the next UpdateItem call, which applies nothing.
	FailUpdate error

	// LoseUpdateResponse is returned by the next UpdateItem call after its
	// update has been applied.
	LoseUpdateResponse error
}

// NewFakeDynamo creates a fake holding the tables named by cfg.
func NewFakeDynamo(cfg DynamoConfig) *FakeDynamo {
	cfg.validate()
	return &FakeDynamo{
		keys: map[string][]string{
			cfg.NodeTable:    {"pk", "id"},
			cfg.PointerTable: {"tree"},
		},
		tables: map[string]map[string]Item{},
	}
}

// Items returns copies of every item in table.
func (f *FakeDynamo) Items(table string) []Item {
	f.mu.Lock()
	defer f.mu.Unlock()

	var items []Item
	for _, item := range f.table(table) {
		items = append(items, copyItem(item))
	}
	return items
}

func (f *FakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	table := aws.ToString(in.TableName)
	return &dynamodb.GetItemOutput{Item: copyItem(f.table(table)[f.itemKey(table, in.Key)])}, nil
}

func (f *FakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if hook := f.OnBatchWrite; hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.BatchCalls++
	if f.FailBatch != nil {
		return nil, f.FailBatch
	}
	if f.UnprocessedRounds > 0 {
		f.UnprocessedRounds--
		return &dynamodb.BatchWriteItemOutput{UnprocessedItems: in.RequestItems}, nil
	}

	for table, reqs := range in.RequestItems {
		for _, r := range reqs {
			if r.PutRequest != nil {
				f.table(table)[f.itemKey(table, r.PutRequest.Item)] = copyItem(r.PutRequest.Item)
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (f *FakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk := attrString(in.ExpressionAttributeValues[":pk"])
	var items []Item
	for _, item := range f.table(aws.ToString(in.TableName)) {
		if attrString(item["pk"]) != pk {
			continue
		}
		if in.FilterExpression != nil && IsDeleted(item) {
			continue
		}
		items = append(items, copyItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		return attrString(items[i]["id"]) < attrString(items[j]["id"])
	})
	return &dynamodb.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (f *FakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailUpdate; err != nil {
		f.FailUpdate = nil
		return nil, err
	}

	table := aws.ToString(in.TableName)
	key := f.itemKey(table, in.Key)
	item, exists := f.table(table)[key]

	if !conditionHolds(aws.ToString(in.ConditionExpression), item, exists, in) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	if !exists {
		item = copyItem(in.Key)
	}
	for _, clause := range strings.Split(strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET "), ", ") {
		lhs, rhs, ok := strings.Cut(clause, " = ")
		if !ok {
			return nil, fmt.Errorf("fake: unsupported clause %q", clause)
		}
		item[in.ExpressionAttributeNames[lhs]] = in.ExpressionAttributeValues[rhs]
	}
	f.table(table)[key] = item
	if err := f.LoseUpdateResponse; err != nil {
		f.LoseUpdateResponse = nil
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func conditionHolds(cond string, item Item, exists bool, in *dynamodb.UpdateItemInput) bool {
	switch {
	case cond == "":
		return true
	case strings.HasPrefix(cond, "attribute_not_exists("):
		name := in.ExpressionAttributeNames[strings.TrimSuffix(strings.TrimPrefix(cond, "attribute_not_exists("), ")")]
		_, has := item[name]
		return !exists || !has
	default:
		lhs, rhs, _ := strings.Cut(cond, " = ")
		return exists && attrString(item[in.ExpressionAttributeNames[lhs]]) == attrString(in.ExpressionAttributeValues[rhs])
	}
}

func (f *FakeDynamo) table(name string) map[string]Item {
	t, ok := f.tables[name]
	if !ok {
		t = map[string]Item{}
		f.tables[name] = t
	}
	return t
}

func (f *FakeDynamo) itemKey(table string, item Item) string {
	parts := make([]string, 0, 2)
	for _, k := range f.keys[table] {
		parts = append(parts, attrString(item[k]))
	}
	return strings.Join(parts, "|")
}

func attrString(v types.AttributeValue) string {
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + v.Value
	case *types.AttributeValueMemberN:
		return fmt.Sprintf("N:%020s", v.Value)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%T", v)
	}
}

func copyItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
