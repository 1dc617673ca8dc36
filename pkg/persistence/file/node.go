package file

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
)

// NodeRepository works by reading definition files and extracting node
// information.
type NodeRepository struct {
	persistence *Persistence
}

func (nr *NodeRepository) GetByKey(_ context.Context, key models.NodeKey) (*models.Node, error) {
	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return nil, persistence.NewNodeError("GetByKey", key, err)
	}

	nr.persistence.mu.RLock()
	defer nr.persistence.mu.RUnlock()

	definition, err := nr.persistence.definitionRepo.load(key.Process())
	if err != nil {
		if persistence.IsProcessDefinitionNotFound(err) {
			return nil, persistence.NewNodeError("GetByKey", key, persistence.ErrNodeNotFound)
		}

		return nil, err
	}

	node, found := definition.Node(key.ID())
	if !found {
		return nil, persistence.NewNodeError("GetByKey", key, persistence.ErrNodeNotFound)
	}

	return node, nil
}

func (nr *NodeRepository) GetByProcess(_ context.Context, process models.ProcessDefinitionKey) ([]*models.Node, error) {
	err := persistence.ValidateProcessDefinitionKey(process)
	if err != nil {
		return nil, persistence.NewProcessDefinitionError("GetByProcess", process, err)
	}

	nr.persistence.mu.RLock()
	defer nr.persistence.mu.RUnlock()

	definition, err := nr.persistence.definitionRepo.load(process)
	if err != nil {
		if persistence.IsProcessDefinitionNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return definition.Nodes, nil
}

func (nr *NodeRepository) Save(_ context.Context, process models.ProcessDefinitionKey, node *models.Node) error {
	key := node.Key(process)

	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return persistence.NewNodeError("Save", key, err)
	}

	nr.persistence.mu.Lock()
	defer nr.persistence.mu.Unlock()

	definition, err := nr.persistence.definitionRepo.load(process)
	if err != nil {
		if persistence.IsProcessDefinitionNotFound(err) {
			return persistence.NewNodeError("Save", key, persistence.ErrProcessDefinitionNotFound)
		}

		return err
	}

	index := slices.IndexFunc(definition.Nodes, func(n *models.Node) bool { return n.ID == node.ID })
	if index >= 0 {
		definition.Nodes[index] = node
	} else {
		definition.Nodes = append(definition.Nodes, node)
	}

	return nr.persistence.definitionRepo.store(definition)
}

func (nr *NodeRepository) Delete(_ context.Context, key models.NodeKey) error {
	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return persistence.NewNodeError("Delete", key, err)
	}

	nr.persistence.mu.Lock()
	defer nr.persistence.mu.Unlock()

	definition, err := nr.persistence.definitionRepo.load(key.Process())
	if err != nil {
		if errors.Is(err, persistence.ErrProcessDefinitionNotFound) {
			return persistence.NewNodeError("Delete", key, persistence.ErrNodeNotFound)
		}

		return fmt.Errorf("failed to load process definition: %w", err)
	}

	index := slices.IndexFunc(definition.Nodes, func(n *models.Node) bool { return n.ID == key.ID() })
	if index < 0 {
		return persistence.NewNodeError("Delete", key, persistence.ErrNodeNotFound)
	}

	definition.Nodes = slices.Delete(definition.Nodes, index, index+1)

	return nr.persistence.definitionRepo.store(definition)
}
