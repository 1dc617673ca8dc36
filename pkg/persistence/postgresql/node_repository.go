package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NodeRepository handles node-related database operations.
type NodeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewNodeRepository creates a new node repository.
func NewNodeRepository(db *sql.DB, logger *slog.Logger) *NodeRepository {
	return &NodeRepository{db: db, logger: logger}
}

// GetByKey retrieves a node by its composite key.
func (nr *NodeRepository) GetByKey(ctx context.Context, key models.NodeKey) (*models.Node, error) {
	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return nil, persistence.NewNodeError("GetByKey", key, err)
	}

	query := `
		SELECT id, name, unique_id, type, metadata
		FROM definition_nodes
		WHERE id = $1 AND process_id = $2 AND process_version = $3
	`

	process := key.Process()
	row := nr.db.QueryRowContext(ctx, query, key.ID(), process.ID(), process.Version())

	node, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewNodeError("GetByKey", key, persistence.ErrNodeNotFound)
		}

		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	return node, nil
}

// GetByProcess retrieves all nodes of a definition in declaration order.
func (nr *NodeRepository) GetByProcess(ctx context.Context, process models.ProcessDefinitionKey) ([]*models.Node, error) {
	err := persistence.ValidateProcessDefinitionKey(process)
	if err != nil {
		return nil, persistence.NewProcessDefinitionError("GetByProcess", process, err)
	}

	return queryNodes(ctx, nr.db, nr.logger, process)
}

// Save saves a node of an existing definition (insert or update).
func (nr *NodeRepository) Save(ctx context.Context, process models.ProcessDefinitionKey, node *models.Node) error {
	key := node.Key(process)

	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return persistence.NewNodeError("Save", key, err)
	}

	metadataJSON, err := json.Marshal(node.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal node metadata: %w", err)
	}

	query := `
		INSERT INTO definition_nodes (id, process_id, process_version, name, unique_id, type, metadata, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, (
			SELECT COALESCE(MAX(position) + 1, 0) FROM definition_nodes
			WHERE process_id = $2 AND process_version = $3
		))
		ON CONFLICT (id, process_id, process_version) DO UPDATE SET
			name = EXCLUDED.name,
			unique_id = EXCLUDED.unique_id,
			type = EXCLUDED.type,
			metadata = EXCLUDED.metadata
	`

	_, err = nr.db.ExecContext(ctx, query,
		node.ID, process.ID(), process.Version(), node.Name, node.UniqueID, node.Type, metadataJSON)
	if err != nil {
		if isForeignKeyViolation(err) {
			return persistence.NewNodeError("Save", key, persistence.ErrProcessDefinitionNotFound)
		}

		return fmt.Errorf("failed to save node: %w", err)
	}

	return nil
}

// Delete removes a node from the database.
func (nr *NodeRepository) Delete(ctx context.Context, key models.NodeKey) error {
	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return persistence.NewNodeError("Delete", key, err)
	}

	process := key.Process()

	result, err := nr.db.ExecContext(ctx,
		`DELETE FROM definition_nodes WHERE id = $1 AND process_id = $2 AND process_version = $3`,
		key.ID(), process.ID(), process.Version())
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewNodeError("Delete", key, persistence.ErrNodeNotFound)
	}

	return nil
}

func queryNodes(ctx context.Context, db querier, logger *slog.Logger, process models.ProcessDefinitionKey) ([]*models.Node, error) {
	query := `
		SELECT id, name, unique_id, type, metadata
		FROM definition_nodes
		WHERE process_id = $1 AND process_version = $2
		ORDER BY position, id
	`

	rows, err := db.QueryContext(ctx, query, process.ID(), process.Version())
	if err != nil {
		return nil, fmt.Errorf("failed to query definition nodes: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var nodes []*models.Node

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func upsertNode(ctx context.Context, db execer, process models.ProcessDefinitionKey, node *models.Node, position int) error {
	metadataJSON, err := json.Marshal(node.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal node metadata: %w", err)
	}

	query := `
		INSERT INTO definition_nodes (id, process_id, process_version, name, unique_id, type, metadata, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id, process_id, process_version) DO UPDATE SET
			name = EXCLUDED.name,
			unique_id = EXCLUDED.unique_id,
			type = EXCLUDED.type,
			metadata = EXCLUDED.metadata,
			position = EXCLUDED.position
	`

	_, err = db.ExecContext(ctx, query,
		node.ID, process.ID(), process.Version(), node.Name, node.UniqueID, node.Type, metadataJSON, position)
	if err != nil {
		return fmt.Errorf("failed to upsert node: %w", err)
	}

	return nil
}

// scanNode scans a node from a database row.
func scanNode(row scanner) (*models.Node, error) {
	var (
		node         models.Node
		name         sql.NullString
		uniqueID     sql.NullString
		metadataJSON []byte
	)

	err := row.Scan(&node.ID, &name, &uniqueID, &node.Type, &metadataJSON)
	if err != nil {
		return nil, err
	}

	node.Name = name.String
	node.UniqueID = uniqueID.String

	if len(metadataJSON) > 0 {
		err := json.Unmarshal(metadataJSON, &node.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal node metadata: %w", err)
		}
	}

	return &node, nil
}
