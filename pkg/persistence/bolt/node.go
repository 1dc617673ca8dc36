package bolt

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
	"go.etcd.io/bbolt"
)

// storedNode keeps the declaration position next to the node, as bolt
// iterates keys in byte order.
type storedNode struct {
	Position uint64       `json:"position"`
	Node     *models.Node `json:"node"`
}

// NodeRepository handles node-related bolt operations.
type NodeRepository struct {
	db *bbolt.DB
}

func (nr *NodeRepository) GetByKey(_ context.Context, key models.NodeKey) (*models.Node, error) {
	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return nil, persistence.NewNodeError("GetByKey", key, err)
	}

	var node *models.Node

	err = nr.db.View(func(tx *bbolt.Tx) error {
		process := key.Process()

		nodes := bucket(tx.Bucket(nodesBucket), process.ID(), process.Version())
		if nodes == nil {
			return persistence.NewNodeError("GetByKey", key, persistence.ErrNodeNotFound)
		}

		data := nodes.Get([]byte(key.ID()))
		if data == nil {
			return persistence.NewNodeError("GetByKey", key, persistence.ErrNodeNotFound)
		}

		stored, err := decodeNode(data)
		if err != nil {
			return err
		}

		node = stored.Node

		return nil
	})
	if err != nil {
		return nil, err
	}

	return node, nil
}

func (nr *NodeRepository) GetByProcess(_ context.Context, process models.ProcessDefinitionKey) ([]*models.Node, error) {
	err := persistence.ValidateProcessDefinitionKey(process)
	if err != nil {
		return nil, persistence.NewProcessDefinitionError("GetByProcess", process, err)
	}

	var nodes []*models.Node

	err = nr.db.View(func(tx *bbolt.Tx) error {
		var err error

		nodes, err = readNodes(tx, process)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	return nodes, nil
}

// Save stores a node of an existing definition. An updated node keeps its
// position; a new node is appended.
func (nr *NodeRepository) Save(_ context.Context, process models.ProcessDefinitionKey, node *models.Node) error {
	key := node.Key(process)

	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return persistence.NewNodeError("Save", key, err)
	}

	return nr.db.Update(func(tx *bbolt.Tx) error {
		versions := bucket(tx.Bucket(definitionsBucket), process.ID())
		if versions == nil || versions.Get([]byte(process.Version())) == nil {
			return persistence.NewNodeError("Save", key, persistence.ErrProcessDefinitionNotFound)
		}

		nodes, err := createBucketIfNotExists(tx.Bucket(nodesBucket), process.ID(), process.Version())
		if err != nil {
			return err
		}

		if data := nodes.Get([]byte(node.ID)); data != nil {
			existing, err := decodeNode(data)
			if err != nil {
				return err
			}

			return writeNode(nodes, storedNode{Position: existing.Position, Node: node})
		}

		return putNode(nodes, node)
	})
}

func (nr *NodeRepository) Delete(_ context.Context, key models.NodeKey) error {
	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return persistence.NewNodeError("Delete", key, err)
	}

	return nr.db.Update(func(tx *bbolt.Tx) error {
		process := key.Process()

		nodes := bucket(tx.Bucket(nodesBucket), process.ID(), process.Version())
		if nodes == nil || nodes.Get([]byte(key.ID())) == nil {
			return persistence.NewNodeError("Delete", key, persistence.ErrNodeNotFound)
		}

		err := nodes.Delete([]byte(key.ID()))
		if err != nil {
			return fmt.Errorf("failed to delete node %s: %w", key, err)
		}

		return nil
	})
}

// putNode appends node after the nodes already in the bucket.
func putNode(nodes *bbolt.Bucket, node *models.Node) error {
	position, err := nodes.NextSequence()
	if err != nil {
		return fmt.Errorf("failed to allocate node position: %w", err)
	}

	return writeNode(nodes, storedNode{Position: position, Node: node})
}

func writeNode(nodes *bbolt.Bucket, stored storedNode) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal node %s: %w", stored.Node.ID, err)
	}

	err = nodes.Put([]byte(stored.Node.ID), data)
	if err != nil {
		return fmt.Errorf("failed to put node %s: %w", stored.Node.ID, err)
	}

	return nil
}

func decodeNode(data []byte) (storedNode, error) {
	var stored storedNode

	err := json.Unmarshal(data, &stored)
	if err != nil {
		return stored, fmt.Errorf("failed to unmarshal node: %w", err)
	}

	return stored, nil
}

func readNodes(tx *bbolt.Tx, process models.ProcessDefinitionKey) ([]*models.Node, error) {
	nodes := bucket(tx.Bucket(nodesBucket), process.ID(), process.Version())
	if nodes == nil {
		return nil, nil
	}

	var stored []storedNode

	err := nodes.ForEach(func(_, data []byte) error {
		node, err := decodeNode(data)
		if err != nil {
			return err
		}

		stored = append(stored, node)

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(stored, func(a, b storedNode) int {
		return cmp.Compare(a.Position, b.Position)
	})

	result := make([]*models.Node, 0, len(stored))
	for _, s := range stored {
		result = append(result, s.Node)
	}

	return result, nil
}

func deleteNodeBucket(tx *bbolt.Tx, process models.ProcessDefinitionKey) error {
	versions := bucket(tx.Bucket(nodesBucket), process.ID())
	if versions == nil || versions.Bucket([]byte(process.Version())) == nil {
		return nil
	}

	err := versions.DeleteBucket([]byte(process.Version()))
	if err != nil {
		return fmt.Errorf("failed to delete node bucket: %w", err)
	}

	if isEmpty(versions) {
		err := tx.Bucket(nodesBucket).DeleteBucket([]byte(process.ID()))
		if err != nil {
			return fmt.Errorf("failed to delete process node bucket: %w", err)
		}
	}

	return nil
}
