// Package postgresql provides the PostgreSQL persistence implementation for
// process definitions and their nodes.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/dataindex/pkg/persistence"
	"github.com/dukex/dataindex/pkg/persistence/sqlbase"
	"github.com/lib/pq"
)

const foreignKeyViolation pq.ErrorCode = "23503"

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	definitionRepo *ProcessDefinitionRepository
	nodeRepo       *NodeRepository
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		definitionRepo: NewProcessDefinitionRepository(database, logger),
		nodeRepo:       NewNodeRepository(database, logger),
	}, nil
}

// ProcessDefinitionRepository returns the definition repository.
func (p *Persistence) ProcessDefinitionRepository() persistence.ProcessDefinitionRepository {
	return p.definitionRepo
}

// NodeRepository returns the node repository.
func (p *Persistence) NodeRepository() persistence.NodeRepository {
	return p.nodeRepo
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}

type scanner interface {
	Scan(dest ...any) error
}
