package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
	"github.com/lib/pq"
)

const selectDefinitionColumns = `
	SELECT
		id
	  , version
	  , name
	  , description
	  , type
	  , endpoint
	  , source
	  , roles
	  , addons
	  , annotations
	  , metadata
	  , updated_at
	FROM process_definitions
`

// ProcessDefinitionRepository handles definition-related database operations.
type ProcessDefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProcessDefinitionRepository creates a new definition repository.
func NewProcessDefinitionRepository(db *sql.DB, logger *slog.Logger) *ProcessDefinitionRepository {
	return &ProcessDefinitionRepository{db: db, logger: logger}
}

// GetAll returns every stored definition with its nodes.
func (r *ProcessDefinitionRepository) GetAll(ctx context.Context) ([]*models.ProcessDefinition, error) {
	return r.query(ctx, selectDefinitionColumns+" ORDER BY id, version")
}

// GetVersions returns every stored version of a process.
func (r *ProcessDefinitionRepository) GetVersions(ctx context.Context, processID string) ([]*models.ProcessDefinition, error) {
	return r.query(ctx, selectDefinitionColumns+" WHERE id = $1 ORDER BY version", processID)
}

// GetByKey returns the definition stored under key.
func (r *ProcessDefinitionRepository) GetByKey(ctx context.Context, key models.ProcessDefinitionKey) (*models.ProcessDefinition, error) {
	err := persistence.ValidateProcessDefinitionKey(key)
	if err != nil {
		return nil, persistence.NewProcessDefinitionError("GetByKey", key, err)
	}

	row := r.db.QueryRowContext(ctx, selectDefinitionColumns+" WHERE id = $1 AND version = $2", key.ID(), key.Version())

	definition, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewProcessDefinitionError("GetByKey", key, persistence.ErrProcessDefinitionNotFound)
		}

		return nil, fmt.Errorf("failed to scan process definition: %w", err)
	}

	definition.Nodes, err = queryNodes(ctx, r.db, r.logger, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load process definition nodes: %w", err)
	}

	return definition, nil
}

// Save upserts the definition and replaces its nodes in one transaction.
func (r *ProcessDefinitionRepository) Save(ctx context.Context, definition *models.ProcessDefinition) error {
	err := persistence.ValidateProcessDefinition(definition)
	if err != nil {
		return fmt.Errorf("failed to save process definition: %w", err)
	}

	key := definition.Key()
	definition.UpdatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(definition.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO process_definitions (id, version, name, description, type, endpoint, source,
			roles, addons, annotations, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id, version) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			endpoint = EXCLUDED.endpoint,
			source = EXCLUDED.source,
			roles = EXCLUDED.roles,
			addons = EXCLUDED.addons,
			annotations = EXCLUDED.annotations,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		key.ID(),
		key.Version(),
		definition.Name,
		definition.Description,
		definition.Type,
		definition.Endpoint,
		definition.Source,
		pq.Array(definition.Roles),
		pq.Array(definition.Addons),
		pq.Array(definition.Annotations),
		metadataJSON,
		definition.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save process definition base: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM definition_nodes WHERE process_id = $1 AND process_version = $2", key.ID(), key.Version())
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	for position, node := range definition.Nodes {
		err = upsertNode(ctx, tx, key, node, position)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes the definition. Its nodes are removed by the foreign key cascade.
func (r *ProcessDefinitionRepository) Delete(ctx context.Context, key models.ProcessDefinitionKey) error {
	err := persistence.ValidateProcessDefinitionKey(key)
	if err != nil {
		return persistence.NewProcessDefinitionError("Delete", key, err)
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM process_definitions WHERE id = $1 AND version = $2", key.ID(), key.Version())
	if err != nil {
		return fmt.Errorf("failed to delete process definition: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewProcessDefinitionError("Delete", key, persistence.ErrProcessDefinitionNotFound)
	}

	return nil
}

func (r *ProcessDefinitionRepository) query(ctx context.Context, query string, args ...any) ([]*models.ProcessDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query process definitions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	definitions := make([]*models.ProcessDefinition, 0)

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating process definitions: %w", err)
	}

	for _, definition := range definitions {
		definition.Nodes, err = queryNodes(ctx, r.db, r.logger, definition.Key())
		if err != nil {
			return nil, fmt.Errorf("failed to load process definition nodes: %w", err)
		}
	}

	return definitions, nil
}

func scanDefinition(row scanner) (*models.ProcessDefinition, error) {
	var (
		definition   models.ProcessDefinition
		name         sql.NullString
		description  sql.NullString
		kind         sql.NullString
		endpoint     sql.NullString
		source       sql.NullString
		metadataJSON []byte
	)

	err := row.Scan(
		&definition.ID,
		&definition.Version,
		&name,
		&description,
		&kind,
		&endpoint,
		&source,
		pq.Array(&definition.Roles),
		pq.Array(&definition.Addons),
		pq.Array(&definition.Annotations),
		&metadataJSON,
		&definition.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	definition.Name = name.String
	definition.Description = description.String
	definition.Type = kind.String
	definition.Endpoint = endpoint.String
	definition.Source = source.String

	if len(metadataJSON) > 0 {
		err := json.Unmarshal(metadataJSON, &definition.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &definition, nil
}
