// Package persistence provides the storage abstraction for indexed process
// definitions and their nodes.
package persistence

import (
	"context"

	"github.com/dukex/dataindex/pkg/models"
)

type Persistence interface {
	ProcessDefinitionRepository() ProcessDefinitionRepository
	NodeRepository() NodeRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ProcessDefinitionRepository stores process definitions by their
// (id, version) key. Saving a definition replaces the nodes stored for it.
type ProcessDefinitionRepository interface {
	GetAll(ctx context.Context) ([]*models.ProcessDefinition, error)
	GetByKey(ctx context.Context, key models.ProcessDefinitionKey) (*models.ProcessDefinition, error)
	// GetVersions returns every stored version of the process with the given id.
	GetVersions(ctx context.Context, processID string) ([]*models.ProcessDefinition, error)
	Save(ctx context.Context, definition *models.ProcessDefinition) error
	Delete(ctx context.Context, key models.ProcessDefinitionKey) error
}

// NodeRepository reads and writes single nodes by their composite key.
type NodeRepository interface {
	GetByKey(ctx context.Context, key models.NodeKey) (*models.Node, error)
	GetByProcess(ctx context.Context, process models.ProcessDefinitionKey) ([]*models.Node, error)
	// Save stores node under process. The definition must already exist.
	Save(ctx context.Context, process models.ProcessDefinitionKey, node *models.Node) error
	Delete(ctx context.Context, key models.NodeKey) error
}
