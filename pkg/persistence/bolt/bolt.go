// Package bolt provides an embedded persistence implementation on top of
// bbolt. The composite keys map onto nested bucket paths:
//
//	definitions/<process id>/<version>        -> definition document
//	nodes/<process id>/<version>/<node id>    -> node document
package bolt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/dataindex/pkg/persistence"
	"go.etcd.io/bbolt"
)

var (
	definitionsBucket = []byte("definitions")
	nodesBucket       = []byte("nodes")
)

// Persistence implements the persistence layer for bbolt.
type Persistence struct {
	db             *bbolt.DB
	logger         *slog.Logger
	definitionRepo *ProcessDefinitionRepository
	nodeRepo       *NodeRepository
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence opens (creating if needed) the database file at path. path
// may carry a bolt:// prefix.
func NewPersistence(logger *slog.Logger, path string) (*Persistence, error) {
	cleanPath := strings.TrimPrefix(path, "bolt://")

	db, err := bbolt.Open(cleanPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", cleanPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{definitionsBucket, nodesBucket} {
			_, err := tx.CreateBucketIfNotExists(name)
			if err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	logger.Info("Opened bolt database", "path", cleanPath)

	p := &Persistence{db: db, logger: logger}
	p.definitionRepo = &ProcessDefinitionRepository{db: db}
	p.nodeRepo = &NodeRepository{db: db}

	return p, nil
}

// ProcessDefinitionRepository returns the definition repository.
func (p *Persistence) ProcessDefinitionRepository() persistence.ProcessDefinitionRepository {
	return p.definitionRepo
}

// NodeRepository returns the node repository.
func (p *Persistence) NodeRepository() persistence.NodeRepository {
	return p.nodeRepo
}

// HealthCheck runs an empty read transaction.
func (p *Persistence) HealthCheck(_ context.Context) error {
	err := p.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(definitionsBucket) == nil {
			return errors.New("definitions bucket is missing")
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read bolt database: %w", err)
	}

	return nil
}

// Close closes the database file.
func (p *Persistence) Close(_ context.Context) error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close bolt database: %w", err)
	}

	return nil
}

type bucketParent interface {
	Bucket(name []byte) *bbolt.Bucket
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

// createBucketIfNotExists creates nested buckets with names given by the elements of path.
func createBucketIfNotExists(p bucketParent, path ...string) (*bbolt.Bucket, error) {
	var b *bbolt.Bucket

	for _, name := range path {
		var err error

		b, err = p.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", name, err)
		}

		p = b
	}

	return b, nil
}

// bucket gets nested buckets with names given by the elements of path. It
// returns nil if any of them does not exist.
func bucket(p bucketParent, path ...string) *bbolt.Bucket {
	var b *bbolt.Bucket

	for _, name := range path {
		b = p.Bucket([]byte(name))
		if b == nil {
			return nil
		}

		p = b
	}

	return b
}
