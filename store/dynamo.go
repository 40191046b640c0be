package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/cfgtree/internal/shard"
	"github.com/jacentio/cfgtree/tree"
)

// batchSize is the BatchWriteItem request limit.
const batchSize = 25

// DynamoAPI is the subset of the DynamoDB client used by Dynamo.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

// Dynamo is a Backend storing trees in DynamoDB.
//
// Each Replace writes the nodes under a new generation, then flips the tree's
// pointer item. Readers always follow the pointer, so a half-written
// generation is never visible.
type Dynamo struct {
	client DynamoAPI
	config DynamoConfig
	logger *slog.Logger
}

// NewDynamo creates a new Dynamo backend.
func NewDynamo(client DynamoAPI, config DynamoConfig, logger *slog.Logger) *Dynamo {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Dynamo{
		client: client,
		config: config,
		logger: logger,
	}
}

// Config returns the validated configuration.
func (d *Dynamo) Config() DynamoConfig {
	return d.config
}

// Replace writes snap as a new generation and makes it current.
func (d *Dynamo) Replace(ctx context.Context, snap Snapshot) error {
	if err := snap.validate(); err != nil {
		return err
	}

	prev, found, err := d.pointer(ctx)
	if err != nil {
		return fmt.Errorf("read pointer: %w", err)
	}
	if found && prev.Generation == snap.Generation {
		return fmt.Errorf("%w: generation %s is already current", ErrInvalidSnapshot, snap.Generation)
	}

	gen := Generation{ID: snap.Generation, Shards: d.config.NumShards}

	// 1. Write every node under the new generation
	if err := d.writeNodes(ctx, gen, snap.Nodes); err != nil {
		d.discard(ctx, gen)
		return fmt.Errorf("write nodes: %w", err)
	}

	// 2. Flip the pointer, guarded by the version we read
	if err := d.flip(ctx, snap, gen, prev, found); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			d.discard(ctx, gen)
			return err
		}
		// The update may have been applied even though the call failed
		applied, checkErr := d.pointsAt(ctx, gen)
		if checkErr != nil {
			d.logger.Warn("pointer state unknown after failed update",
				"tree", d.config.Tree,
				"generation", gen.ID,
				"error", checkErr,
			)
			return err
		}
		if !applied {
			d.discard(ctx, gen)
			return err
		}
		d.logger.Warn("pointer update reported an error but was applied",
			"tree", d.config.Tree,
			"generation", gen.ID,
			"error", err,
		)
	}

	d.logger.Info("tree replaced",
		"tree", d.config.Tree,
		"generation", gen.ID,
		"nodeCount", len(snap.Nodes),
		"previousGeneration", prev.Generation,
	)

	// 3. Expire the superseded generation unless the stream handler does it
	if found && d.config.SweepInline {
		if err := d.ExpireGeneration(ctx, prev.current(), ExpiryAfter(d.config.Retention)); err != nil {
			d.logger.Warn("failed to expire superseded generation",
				"tree", d.config.Tree,
				"generation", prev.Generation,
				"error", err,
			)
		}
	}
	return nil
}

// Current loads the generation named by the tree's pointer item.
func (d *Dynamo) Current(ctx context.Context) (Snapshot, error) {
	p, found, err := d.pointer(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read pointer: %w", err)
	}
	if !found {
		return Snapshot{}, ErrNotFound
	}

	records, err := d.queryGeneration(ctx, p.current(), true)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query generation %s: %w", p.Generation, err)
	}
	if len(records) != p.NodeCount {
		return Snapshot{}, fmt.Errorf("%w: generation %s has %d of %d nodes",
			ErrInvalidSnapshot, p.Generation, len(records), p.NodeCount)
	}

	nodes := make([]tree.Node, len(records))
	for i, r := range records {
		nodes[i] = r.node()
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Left < nodes[j].Left })

	return Snapshot{
		Generation: p.Generation,
		CreatedAt:  p.createdAt(),
		Nodes:      nodes,
	}, nil
}

// ExpireGeneration sets ttl on every node item of gen that has no TTL yet.
// It is idempotent and keeps going past individual failures.
func (d *Dynamo) ExpireGeneration(ctx context.Context, gen Generation, ttl int64) error {
	records, err := d.queryGeneration(ctx, gen, false)
	if err != nil {
		return fmt.Errorf("query generation %s: %w", gen.ID, err)
	}

	var errs []error
	expired := 0
	for _, r := range records {
		if r.TTL != 0 {
			continue
		}
		if err := d.setTTL(ctx, r.key(), ttl); err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", r.ID, err))
			continue
		}
		expired++
	}

	d.logger.Info("generation expired",
		"tree", d.config.Tree,
		"generation", gen.ID,
		"nodeCount", len(records),
		"expired", expired,
	)
	return errors.Join(errs...)
}

// discard expires a generation that never became current.
func (d *Dynamo) discard(ctx context.Context, gen Generation) {
	ctx = context.WithoutCancel(ctx)
	if err := d.ExpireGeneration(ctx, gen, time.Now().Unix()); err != nil {
		d.logger.Warn("failed to discard generation",
			"tree", d.config.Tree,
			"generation", gen.ID,
			"error", err,
		)
	}
}

func (d *Dynamo) pointerKey() PK {
	return PK{"tree": stringAttr(d.config.Tree)}
}

// pointer reads the tree's pointer item.
func (d *Dynamo) pointer(ctx context.Context) (pointerRecord, bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.config.PointerTable),
		Key:            d.pointerKey(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return pointerRecord{}, false, err
	}
	if out.Item == nil {
		return pointerRecord{}, false, nil
	}
	p, err := unmarshalPointer(out.Item)
	if err != nil {
		return pointerRecord{}, false, err
	}
	return p, true, nil
}

// pointsAt reports whether the tree's pointer item names gen.
func (d *Dynamo) pointsAt(ctx context.Context, gen Generation) (bool, error) {
	p, found, err := d.pointer(context.WithoutCancel(ctx))
	if err != nil {
		return false, err
	}
	return found && p.Generation == gen.ID, nil
}

// writeNodes puts every node item of gen, batchSize at a time.
func (d *Dynamo) writeNodes(ctx context.Context, gen Generation, nodes []tree.Node) error {
	requests := make([]types.WriteRequest, 0, len(nodes))
	for _, n := range nodes {
		item, err := newNodeRecord(d.config.Tree, gen.ID, gen.Shards, n).item()
		if err != nil {
			return fmt.Errorf("marshal node %d: %w", n.ID, err)
		}
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	for start := 0; start < len(requests); start += batchSize {
		end := min(start+batchSize, len(requests))
		if err := d.batchWrite(ctx, requests[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// batchWrite sends one batch and resends unprocessed items with backoff.
func (d *Dynamo) batchWrite(ctx context.Context, batch []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{d.config.NodeTable: batch}

	for attempt := 0; ; attempt++ {
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return err
		}

		left := 0
		for _, reqs := range out.UnprocessedItems {
			left += len(reqs)
		}
		if left == 0 {
			return nil
		}
		if attempt >= d.config.MaxBatchRetries {
			return fmt.Errorf("%d items unprocessed after %d retries", left, attempt)
		}

		d.logger.Debug("retrying unprocessed items", "count", left, "attempt", attempt+1)
		pending = out.UnprocessedItems

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
}

// backoff returns the delay before retry attempt+1.
func backoff(attempt int) time.Duration {
	const maxDelay = 2 * time.Second
	if attempt >= 7 {
		return maxDelay
	}
	return min(25*time.Millisecond<<attempt, maxDelay)
}

// flip points the tree at gen, failing if another writer moved the pointer.
func (d *Dynamo) flip(ctx context.Context, snap Snapshot, gen Generation, prev pointerRecord, found bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	setClauses := []string{}
	exprNames := map[string]string{}
	exprValues := map[string]types.AttributeValue{}
	set := func(attr string, v types.AttributeValue) {
		exprNames["#"+attr] = attr
		exprValues[":"+attr] = v
		setClauses = append(setClauses, fmt.Sprintf("#%s = :%s", attr, attr))
	}

	set("generation", stringAttr(gen.ID))
	set("shards", numberAttr(int64(gen.Shards)))
	set("node_count", numberAttr(int64(len(snap.Nodes))))
	set("version", numberAttr(prev.Version+1))
	set("created_at", stringAttr(snap.CreatedAt.UTC().Format(time.RFC3339Nano)))
	set("updated_at", stringAttr(now))

	condExpr := "attribute_not_exists(#version)"
	if found {
		set("previous_generation", stringAttr(prev.Generation))
		set("previous_shards", numberAttr(int64(prev.Shards)))
		condExpr = "#version = :expected_version"
		exprValues[":expected_version"] = numberAttr(prev.Version)
	}

	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.config.PointerTable),
		Key:                       d.pointerKey(),
		UpdateExpression:          aws.String("SET " + joinStrings(setClauses, ", ")),
		ConditionExpression:       aws.String(condExpr),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("update pointer: %w", err)
	}
	return nil
}

// queryGeneration returns the node items of gen across all of its shards.
func (d *Dynamo) queryGeneration(ctx context.Context, gen Generation, activeOnly bool) ([]nodeRecord, error) {
	keys := shard.All(d.config.Tree, gen.ID, gen.Shards)

	// Fast path for single shard (default)
	if len(keys) == 1 {
		return d.queryShard(ctx, keys[0], activeOnly)
	}

	// Multi-shard fan-out
	var mu sync.Mutex
	var all []nodeRecord
	var wg sync.WaitGroup
	errs := make(chan error, len(keys))

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()

			records, err := d.queryShard(ctx, key, activeOnly)
			if err != nil {
				errs <- fmt.Errorf("shard %s: %w", key, err)
				return
			}

			mu.Lock()
			all = append(all, records...)
			mu.Unlock()
		}(key)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (d *Dynamo) queryShard(ctx context.Context, shardPK string, activeOnly bool) ([]nodeRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.config.NodeTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": stringAttr(shardPK),
		},
		ConsistentRead: aws.Bool(true),
	}
	if activeOnly {
		input.FilterExpression = aws.String(TTLFilterExpr())
		input.ExpressionAttributeNames = mergeExprNames(input.ExpressionAttributeNames, TTLFilterNames())
		input.ExpressionAttributeValues = mergeExprValues(input.ExpressionAttributeValues, TTLFilterValues())
	}

	var records []nodeRecord
	paginator := dynamodb.NewQueryPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if activeOnly && IsDeleted(item) {
				continue
			}
			var r nodeRecord
			if err := attributevalue.UnmarshalMap(item, &r); err != nil {
				return nil, fmt.Errorf("unmarshal node: %w", err)
			}
			records = append(records, r)
		}
	}
	return records, nil
}

// setTTL marks a node item for deletion.
func (d *Dynamo) setTTL(ctx context.Context, key PK, ttl int64) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.config.NodeTable),
		Key:                 key,
		UpdateExpression:    aws.String("SET #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": numberAttr(ttl),
		},
	})

	// Ignore condition failure - already has TTL
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// joinStrings joins strings with a separator.
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}
