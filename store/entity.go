package store

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/cfgtree/internal/shard"
	"github.com/jacentio/cfgtree/tree"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Generation identifies one stored load of a tree and how its nodes were sharded.
type Generation struct {
	// ID is the generation identifier.
	ID string

	// Shards is the number of partitions the generation's nodes were written to.
	Shards int
}

// nodeRecord is a node item in the node table. Branches store a NULL
// param_value; leaves may store the empty string.
type nodeRecord struct {
	PK         string  `dynamodbav:"pk"`
	ID         int64   `dynamodbav:"id"`
	Tree       string  `dynamodbav:"tree"`
	Generation string  `dynamodbav:"generation"`
	ParamName  string  `dynamodbav:"param_name"`
	ParamValue *string `dynamodbav:"param_value"`
	Left       int     `dynamodbav:"lft"`
	Right      int     `dynamodbav:"rgt"`
	ParentID   int64   `dynamodbav:"parent_id,omitempty"`
	TTL        int64   `dynamodbav:"ttl,omitempty"`
}

func newNodeRecord(treeName, generation string, numShards int, n tree.Node) nodeRecord {
	rec := nodeRecord{
		PK:         shard.NodePK(treeName, generation, n.ID, numShards),
		ID:         n.ID,
		Tree:       treeName,
		Generation: generation,
		ParamName:  n.Name,
		Left:       n.Left,
		Right:      n.Right,
		ParentID:   n.ParentID,
	}
	if n.HasValue {
		v := n.Value
		rec.ParamValue = &v
	}
	return rec
}

func (r nodeRecord) item() (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(r)
}

func (r nodeRecord) node() tree.Node {
	n := tree.Node{
		ID:       r.ID,
		Name:     r.ParamName,
		Left:     r.Left,
		Right:    r.Right,
		ParentID: r.ParentID,
	}
	if r.ParamValue != nil {
		n.HasValue = true
		n.Value = *r.ParamValue
	}
	return n
}

// key returns the primary key of the node item.
func (r nodeRecord) key() PK {
	return PK{
		"pk": stringAttr(r.PK),
		"id": numberAttr(r.ID),
	}
}

// pointerRecord is the per-tree item naming the current generation.
type pointerRecord struct {
	Tree               string `dynamodbav:"tree"`
	Generation         string `dynamodbav:"generation"`
	Shards             int    `dynamodbav:"shards"`
	NodeCount          int    `dynamodbav:"node_count"`
	PreviousGeneration string `dynamodbav:"previous_generation,omitempty"`
	PreviousShards     int    `dynamodbav:"previous_shards,omitempty"`
	Version            int64  `dynamodbav:"version"`
	CreatedAt          string `dynamodbav:"created_at"`
	UpdatedAt          string `dynamodbav:"updated_at"`
}

func (p pointerRecord) current() Generation {
	return Generation{ID: p.Generation, Shards: p.Shards}
}

func (p pointerRecord) previous() (Generation, bool) {
	if p.PreviousGeneration == "" {
		return Generation{}, false
	}
	return Generation{ID: p.PreviousGeneration, Shards: p.PreviousShards}, true
}

func (p pointerRecord) createdAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, p.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func unmarshalPointer(item map[string]types.AttributeValue) (pointerRecord, error) {
	var p pointerRecord
	if err := attributevalue.UnmarshalMap(item, &p); err != nil {
		return pointerRecord{}, fmt.Errorf("unmarshal pointer: %w", err)
	}
	return p, nil
}
