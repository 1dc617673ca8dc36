package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
	"go.etcd.io/bbolt"
)

// ProcessDefinitionRepository handles definition-related bolt operations.
type ProcessDefinitionRepository struct {
	db *bbolt.DB
}

// GetAll returns every stored definition ordered by key.
func (r *ProcessDefinitionRepository) GetAll(_ context.Context) ([]*models.ProcessDefinition, error) {
	definitions := make([]*models.ProcessDefinition, 0)

	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(definitionsBucket).ForEachBucket(func(processID []byte) error {
			versions, err := readVersions(tx, string(processID))
			if err != nil {
				return err
			}

			definitions = append(definitions, versions...)

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read process definitions: %w", err)
	}

	return definitions, nil
}

// GetVersions returns every stored version of a process ordered by version.
func (r *ProcessDefinitionRepository) GetVersions(_ context.Context, processID string) ([]*models.ProcessDefinition, error) {
	var definitions []*models.ProcessDefinition

	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error

		definitions, err = readVersions(tx, processID)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read process definition versions: %w", err)
	}

	return definitions, nil
}

// GetByKey returns the definition stored under key.
func (r *ProcessDefinitionRepository) GetByKey(_ context.Context, key models.ProcessDefinitionKey) (*models.ProcessDefinition, error) {
	err := persistence.ValidateProcessDefinitionKey(key)
	if err != nil {
		return nil, persistence.NewProcessDefinitionError("GetByKey", key, err)
	}

	var definition *models.ProcessDefinition

	err = r.db.View(func(tx *bbolt.Tx) error {
		var err error

		definition, err = readDefinition(tx, key)

		return err
	})
	if err != nil {
		return nil, err
	}

	return definition, nil
}

// Save stores the definition and replaces its node bucket in one transaction.
func (r *ProcessDefinitionRepository) Save(_ context.Context, definition *models.ProcessDefinition) error {
	err := persistence.ValidateProcessDefinition(definition)
	if err != nil {
		return fmt.Errorf("failed to save process definition: %w", err)
	}

	definition.UpdatedAt = time.Now().UTC()
	key := definition.Key()

	header := *definition
	header.Nodes = nil

	data, err := json.Marshal(&header)
	if err != nil {
		return fmt.Errorf("failed to marshal process definition %s: %w", key, err)
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		versions, err := createBucketIfNotExists(tx.Bucket(definitionsBucket), key.ID())
		if err != nil {
			return err
		}

		err = versions.Put([]byte(key.Version()), data)
		if err != nil {
			return fmt.Errorf("failed to put process definition: %w", err)
		}

		err = deleteNodeBucket(tx, key)
		if err != nil {
			return err
		}

		nodes, err := createBucketIfNotExists(tx.Bucket(nodesBucket), key.ID(), key.Version())
		if err != nil {
			return err
		}

		for _, node := range definition.Nodes {
			err := putNode(nodes, node)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save process definition %s: %w", key, err)
	}

	return nil
}

// Delete removes the definition and its node bucket.
func (r *ProcessDefinitionRepository) Delete(_ context.Context, key models.ProcessDefinitionKey) error {
	err := persistence.ValidateProcessDefinitionKey(key)
	if err != nil {
		return persistence.NewProcessDefinitionError("Delete", key, err)
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		versions := bucket(tx.Bucket(definitionsBucket), key.ID())
		if versions == nil || versions.Get([]byte(key.Version())) == nil {
			return persistence.NewProcessDefinitionError("Delete", key, persistence.ErrProcessDefinitionNotFound)
		}

		err := versions.Delete([]byte(key.Version()))
		if err != nil {
			return fmt.Errorf("failed to delete process definition %s: %w", key, err)
		}

		if isEmpty(versions) {
			err := tx.Bucket(definitionsBucket).DeleteBucket([]byte(key.ID()))
			if err != nil {
				return fmt.Errorf("failed to delete process bucket: %w", err)
			}
		}

		return deleteNodeBucket(tx, key)
	})
}

func readDefinition(tx *bbolt.Tx, key models.ProcessDefinitionKey) (*models.ProcessDefinition, error) {
	versions := bucket(tx.Bucket(definitionsBucket), key.ID())
	if versions == nil {
		return nil, persistence.NewProcessDefinitionError("GetByKey", key, persistence.ErrProcessDefinitionNotFound)
	}

	data := versions.Get([]byte(key.Version()))
	if data == nil {
		return nil, persistence.NewProcessDefinitionError("GetByKey", key, persistence.ErrProcessDefinitionNotFound)
	}

	var definition models.ProcessDefinition

	err := json.Unmarshal(data, &definition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal process definition %s: %w", key, err)
	}

	definition.Nodes, err = readNodes(tx, key)
	if err != nil {
		return nil, err
	}

	return &definition, nil
}

func readVersions(tx *bbolt.Tx, processID string) ([]*models.ProcessDefinition, error) {
	definitions := make([]*models.ProcessDefinition, 0)

	versions := bucket(tx.Bucket(definitionsBucket), processID)
	if versions == nil {
		return definitions, nil
	}

	err := versions.ForEach(func(version, _ []byte) error {
		definition, err := readDefinition(tx, models.NewProcessDefinitionKey(processID, string(version)))
		if err != nil {
			return err
		}

		definitions = append(definitions, definition)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return definitions, nil
}

func isEmpty(b *bbolt.Bucket) bool {
	k, _ := b.Cursor().First()

	return k == nil
}
