// Package stream provides DynamoDB Streams handlers for the tree pointer table.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/cfgtree/store"
)

// Sweeper expires the node items of a superseded generation.
// *store.Dynamo implements it.
type Sweeper interface {
	Config() store.DynamoConfig
	ExpireGeneration(ctx context.Context, gen store.Generation, ttl int64) error
}

var _ Sweeper = (*store.Dynamo)(nil)

// Handler processes DynamoDB stream events from the pointer table.
type Handler struct {
	sweeper Sweeper
	logger  *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(s Sweeper, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sweeper: s,
		logger:  logger,
	}
}

// HandleGenerationSwap expires the generation a pointer item stopped naming.
// This function is designed to be used as an AWS Lambda handler on a stream
// with NEW_AND_OLD_IMAGES or NEW_IMAGE.
func (h *Handler) HandleGenerationSwap(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Pointers are flipped in place, so only MODIFY events swap generations
	if record.EventName != "MODIFY" {
		return nil
	}

	newGen := getStringAttr(record.Change.NewImage, "generation")
	superseded, ok := supersededGeneration(record.Change)
	if !ok || superseded.ID == newGen {
		return nil
	}

	cfg := h.sweeper.Config()
	treeName := getStringAttr(record.Change.NewImage, "tree")
	if treeName != cfg.Tree {
		h.logger.Debug("skipping pointer of another tree", "tree", treeName)
		return nil
	}

	h.logger.Info("expiring superseded generation",
		"tree", treeName,
		"generation", superseded.ID,
		"currentGeneration", newGen,
	)

	if err := h.sweeper.ExpireGeneration(ctx, superseded, store.ExpiryAfter(cfg.Retention)); err != nil {
		return fmt.Errorf("expire generation %s: %w", superseded.ID, err)
	}
	return nil
}

// supersededGeneration reads the replaced generation from the old image, or
// from the previous_* attributes when the stream carries only new images.
func supersededGeneration(change events.DynamoDBStreamRecord) (store.Generation, bool) {
	if id := getStringAttr(change.OldImage, "generation"); id != "" {
		return store.Generation{ID: id, Shards: shardCount(getNumberAttr(change.OldImage, "shards"))}, true
	}
	if id := getStringAttr(change.NewImage, "previous_generation"); id != "" {
		return store.Generation{ID: id, Shards: shardCount(getNumberAttr(change.NewImage, "previous_shards"))}, true
	}
	return store.Generation{}, false
}

func shardCount(n int64) int {
	if n < 1 {
		return 1
	}
	return int(n)
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}
