package store_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/cfgtree/store"
)

func newDynamo(t *testing.T, cfg store.DynamoConfig) (*store.Dynamo, *store.FakeDynamo) {
	t.Helper()
	fake := store.NewFakeDynamo(cfg)
	return store.NewDynamo(fake, cfg, discardLogger()), fake
}

// generationItems returns the node items written for generation.
func generationItems(fake *store.FakeDynamo, cfg store.DynamoConfig, generation string) []store.Item {
	var items []store.Item
	for _, item := range fake.Items(cfg.NodeTable) {
		if g, ok := item["generation"].(*types.AttributeValueMemberS); ok && g.Value == generation {
			items = append(items, item)
		}
	}
	return items
}

func TestDynamo(t *testing.T) {
	testBackendContract(t, func(t *testing.T) store.Backend {
		d, _ := newDynamo(t, store.DefaultDynamoConfig())
		return d
	})
}

func TestDynamo_Sharded(t *testing.T) {
	cfg := store.DefaultDynamoConfig()
	cfg.NumShards = 4
	testBackendContract(t, func(t *testing.T) store.Backend {
		d, _ := newDynamo(t, cfg)
		return d
	})
}

func TestDynamo_ShardCountChange(t *testing.T) {
	ctx := context.Background()
	cfg := store.DefaultDynamoConfig()
	fake := store.NewFakeDynamo(cfg)

	one := store.NewDynamo(fake, cfg, discardLogger())
	if err := one.Replace(ctx, store.NewSnapshot(firstTree(t))); err != nil {
		t.Fatalf("replace: %v", err)
	}

	cfg.NumShards = 8
	eight := store.NewDynamo(fake, cfg, discardLogger())
	snap := store.NewSnapshot(secondTree(t))
	if err := eight.Replace(ctx, snap); err != nil {
		t.Fatalf("replace: %v", err)
	}

	// A reader configured with one shard still follows the pointer's shard count
	got, err := one.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.Generation != snap.Generation || len(got.Nodes) != len(snap.Nodes) {
		t.Errorf("expected generation %q with %d nodes, got %q with %d",
			snap.Generation, len(snap.Nodes), got.Generation, len(got.Nodes))
	}
}

func TestDynamo_RetriesUnprocessedItems(t *testing.T) {
	d, fake := newDynamo(t, store.DefaultDynamoConfig())
	fake.UnprocessedRounds = 2

	if err := d.Replace(context.Background(), store.NewSnapshot(firstTree(t))); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if fake.BatchCalls != 3 {
		t.Errorf("expected 3 BatchWriteItem calls, got %d", fake.BatchCalls)
	}
}

func TestDynamo_UnprocessedItemsExhausted(t *testing.T) {
	cfg := store.DefaultDynamoConfig()
	cfg.MaxBatchRetries = 1
	d, fake := newDynamo(t, cfg)
	fake.UnprocessedRounds = 10

	if err := d.Replace(context.Background(), store.NewSnapshot(firstTree(t))); err == nil {
		t.Fatal("expected error when items stay unprocessed")
	}
	if _, err := d.Current(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDynamo_WriteFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	d, fake := newDynamo(t, store.DefaultDynamoConfig())

	first := store.NewSnapshot(firstTree(t))
	if err := d.Replace(ctx, first); err != nil {
		t.Fatalf("replace: %v", err)
	}

	throttled := errors.New("throttled")
	fake.FailBatch = throttled
	if err := d.Replace(ctx, store.NewSnapshot(secondTree(t))); !errors.Is(err, throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}

	got, err := d.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.Generation != first.Generation {
		t.Errorf("expected generation %q to stay current, got %q", first.Generation, got.Generation)
	}
}

func TestDynamo_PointerUpdateAppliedDespiteError(t *testing.T) {
	ctx := context.Background()
	d, fake := newDynamo(t, store.DefaultDynamoConfig())

	if err := d.Replace(ctx, store.NewSnapshot(firstTree(t))); err != nil {
		t.Fatalf("replace: %v", err)
	}

	fake.LoseUpdateResponse = errors.New("request timeout")
	second := store.NewSnapshot(secondTree(t))
	if err := d.Replace(ctx, second); err != nil {
		t.Fatalf("expected replace to succeed once the pointer is confirmed, got %v", err)
	}

	got, err := d.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.Generation != second.Generation {
		t.Errorf("expected generation %q, got %q", second.Generation, got.Generation)
	}
	assertSameNodes(t, second.Nodes, got.Nodes)
}

func TestDynamo_PointerUpdateFailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	cfg := store.DefaultDynamoConfig()
	d, fake := newDynamo(t, cfg)

	first := store.NewSnapshot(firstTree(t))
	if err := d.Replace(ctx, first); err != nil {
		t.Fatalf("replace: %v", err)
	}

	unavailable := errors.New("service unavailable")
	fake.FailUpdate = unavailable
	second := store.NewSnapshot(secondTree(t))
	if err := d.Replace(ctx, second); !errors.Is(err, unavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}

	got, err := d.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.Generation != first.Generation {
		t.Errorf("expected generation %q to stay current, got %q", first.Generation, got.Generation)
	}

	for _, item := range generationItems(fake, cfg, second.Generation) {
		if !store.IsDeleted(item) {
			t.Errorf("expected unpublished item to be expired: %v", item["id"])
		}
	}
}

func TestDynamo_ConcurrentModification(t *testing.T) {
	ctx := context.Background()
	cfg := store.DefaultDynamoConfig()
	fake := store.NewFakeDynamo(cfg)
	loser := store.NewDynamo(fake, cfg, discardLogger())
	winner := store.NewDynamo(fake, cfg, discardLogger())

	winning := store.NewSnapshot(secondTree(t))
	fake.OnBatchWrite = func() {
		fake.OnBatchWrite = nil
		if err := winner.Replace(ctx, winning); err != nil {
			t.Errorf("winner replace: %v", err)
		}
	}

	losing := store.NewSnapshot(firstTree(t))
	if err := loser.Replace(ctx, losing); !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	got, err := loser.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.Generation != winning.Generation {
		t.Errorf("expected winner generation %q, got %q", winning.Generation, got.Generation)
	}

	// The losing generation was discarded
	items := generationItems(fake, cfg, losing.Generation)
	if len(items) != len(losing.Nodes) {
		t.Fatalf("expected %d losing items, got %d", len(losing.Nodes), len(items))
	}
	for _, item := range items {
		if !store.IsDeleted(item) {
			t.Errorf("expected losing item to be expired: %v", item["id"])
		}
	}
}

func TestDynamo_SweepInline(t *testing.T) {
	ctx := context.Background()
	cfg := store.DefaultDynamoConfig()
	cfg.SweepInline = true
	cfg.Retention = 0
	d, fake := newDynamo(t, cfg)

	first := store.NewSnapshot(firstTree(t))
	if err := d.Replace(ctx, first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	second := store.NewSnapshot(secondTree(t))
	if err := d.Replace(ctx, second); err != nil {
		t.Fatalf("replace: %v", err)
	}

	for _, item := range generationItems(fake, cfg, first.Generation) {
		if _, ok := item["ttl"]; !ok {
			t.Errorf("expected superseded item %v to carry a TTL", item["id"])
		}
	}
	for _, item := range generationItems(fake, cfg, second.Generation) {
		if _, ok := item["ttl"]; ok {
			t.Errorf("expected current item %v to have no TTL", item["id"])
		}
	}
}

func TestDynamo_NoInlineSweepByDefault(t *testing.T) {
	ctx := context.Background()
	cfg := store.DefaultDynamoConfig()
	d, fake := newDynamo(t, cfg)

	first := store.NewSnapshot(firstTree(t))
	if err := d.Replace(ctx, first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := d.Replace(ctx, store.NewSnapshot(secondTree(t))); err != nil {
		t.Fatalf("replace: %v", err)
	}

	for _, item := range generationItems(fake, cfg, first.Generation) {
		if _, ok := item["ttl"]; ok {
			t.Errorf("expected superseded item %v to be left for the stream handler", item["id"])
		}
	}
}

func TestDynamo_ExpireGenerationIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := store.DefaultDynamoConfig()
	d, fake := newDynamo(t, cfg)

	snap := store.NewSnapshot(firstTree(t))
	if err := d.Replace(ctx, snap); err != nil {
		t.Fatalf("replace: %v", err)
	}

	gen := store.Generation{ID: snap.Generation, Shards: 1}
	first := time.Now().Add(time.Hour).Unix()
	if err := d.ExpireGeneration(ctx, gen, first); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if err := d.ExpireGeneration(ctx, gen, first+100); err != nil {
		t.Fatalf("second expire: %v", err)
	}

	for _, item := range generationItems(fake, cfg, snap.Generation) {
		ttl, ok := item["ttl"].(*types.AttributeValueMemberN)
		if !ok {
			t.Fatalf("expected TTL on item %v", item["id"])
		}
		if ttl.Value != strconv.FormatInt(first, 10) {
			t.Errorf("expected first TTL %d to be kept, got %s", first, ttl.Value)
		}
	}
}

func TestDynamo_IncompleteGeneration(t *testing.T) {
	ctx := context.Background()
	d, _ := newDynamo(t, store.DefaultDynamoConfig())

	snap := store.NewSnapshot(firstTree(t))
	if err := d.Replace(ctx, snap); err != nil {
		t.Fatalf("replace: %v", err)
	}

	// Expiring the live generation hides its nodes from readers
	if err := d.ExpireGeneration(ctx, store.Generation{ID: snap.Generation, Shards: 1}, 1); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if _, err := d.Current(ctx); !errors.Is(err, store.ErrInvalidSnapshot) {
		t.Errorf("expected ErrInvalidSnapshot, got %v", err)
	}
}

func TestDynamo_ReplaceCurrentGeneration(t *testing.T) {
	ctx := context.Background()
	d, _ := newDynamo(t, store.DefaultDynamoConfig())

	snap := store.NewSnapshot(firstTree(t))
	if err := d.Replace(ctx, snap); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := d.Replace(ctx, snap); !errors.Is(err, store.ErrInvalidSnapshot) {
		t.Errorf("expected ErrInvalidSnapshot, got %v", err)
	}
}

func TestNewDynamo_ValidatesConfig(t *testing.T) {
	d := store.NewDynamo(nil, store.DynamoConfig{NumShards: 1000}, nil)
	cfg := d.Config()

	if cfg.NumShards != 256 {
		t.Errorf("expected NumShards clamped to 256, got %d", cfg.NumShards)
	}
	if cfg.Tree != store.DefaultTree {
		t.Errorf("expected default tree, got %q", cfg.Tree)
	}
}

func TestIsDeleted(t *testing.T) {
	tests := []struct {
		name     string
		item     store.Item
		expected bool
	}{
		{
			name:     "no TTL attribute",
			item:     store.Item{},
			expected: false,
		},
		{
			name:     "TTL in past",
			item:     store.Item{"ttl": &types.AttributeValueMemberN{Value: "1000000000"}},
			expected: true,
		},
		{
			name:     "TTL in future",
			item:     store.Item{"ttl": &types.AttributeValueMemberN{Value: "99999999999"}},
			expected: false,
		},
		{
			name:     "wrong type",
			item:     store.Item{"ttl": &types.AttributeValueMemberS{Value: "1000000000"}},
			expected: false,
		},
		{
			name:     "unparseable number",
			item:     store.Item{"ttl": &types.AttributeValueMemberN{Value: "soon"}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.IsDeleted(tt.item); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTTLFilter(t *testing.T) {
	if store.TTLFilterExpr() != "attribute_not_exists(#ttl) OR #ttl > :now" {
		t.Errorf("unexpected filter %q", store.TTLFilterExpr())
	}
	if store.TTLFilterNames()["#ttl"] != "ttl" {
		t.Error("expected #ttl to map to ttl")
	}
	if _, ok := store.TTLFilterValues()[":now"]; !ok {
		t.Error("expected :now value")
	}
}

func BenchmarkIsDeleted(b *testing.B) {
	item := store.Item{
		"ttl": &types.AttributeValueMemberN{Value: "1000000000"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.IsDeleted(item)
	}
}
