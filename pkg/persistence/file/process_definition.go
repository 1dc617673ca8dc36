package file

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
)

// ProcessDefinitionRepository handles definition-related file operations.
type ProcessDefinitionRepository struct {
	persistence *Persistence
}

// GetAll returns every stored definition ordered by key.
func (r *ProcessDefinitionRepository) GetAll(_ context.Context) ([]*models.ProcessDefinition, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(r.persistence.root, definitionsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make([]*models.ProcessDefinition, 0), nil
		}

		return nil, fmt.Errorf("failed to list process definitions: %w", err)
	}

	definitions := make([]*models.ProcessDefinition, 0)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		versions, err := r.readDir(filepath.Join(r.persistence.root, definitionsDir, entry.Name()))
		if err != nil {
			return nil, err
		}

		definitions = append(definitions, versions...)
	}

	sortDefinitions(definitions)

	return definitions, nil
}

// GetVersions returns every stored version of a process ordered by version.
func (r *ProcessDefinitionRepository) GetVersions(_ context.Context, processID string) ([]*models.ProcessDefinition, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	definitions, err := r.readDir(r.persistence.processDir(processID))
	if err != nil {
		return nil, err
	}

	sortDefinitions(definitions)

	return definitions, nil
}

// GetByKey retrieves a definition from the file system.
func (r *ProcessDefinitionRepository) GetByKey(_ context.Context, key models.ProcessDefinitionKey) (*models.ProcessDefinition, error) {
	err := persistence.ValidateProcessDefinitionKey(key)
	if err != nil {
		return nil, persistence.NewProcessDefinitionError("GetByKey", key, err)
	}

	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	return r.load(key)
}

// Save writes the definition document, replacing any previous version of it.
func (r *ProcessDefinitionRepository) Save(_ context.Context, definition *models.ProcessDefinition) error {
	err := persistence.ValidateProcessDefinition(definition)
	if err != nil {
		return fmt.Errorf("failed to save process definition: %w", err)
	}

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	definition.UpdatedAt = time.Now().UTC()

	return r.store(definition)
}

// Delete removes the definition file.
func (r *ProcessDefinitionRepository) Delete(_ context.Context, key models.ProcessDefinitionKey) error {
	err := persistence.ValidateProcessDefinitionKey(key)
	if err != nil {
		return persistence.NewProcessDefinitionError("Delete", key, err)
	}

	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	err = os.Remove(r.persistence.definitionPath(key.ID(), key.Version()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewProcessDefinitionError("Delete", key, persistence.ErrProcessDefinitionNotFound)
		}

		return fmt.Errorf("failed to delete process definition %s: %w", key, err)
	}

	// Drop the process directory once its last version is gone.
	_ = os.Remove(r.persistence.processDir(key.ID()))

	return nil
}

// load reads a definition. Callers hold the persistence lock.
func (r *ProcessDefinitionRepository) load(key models.ProcessDefinitionKey) (*models.ProcessDefinition, error) {
	definition, err := readDefinition(r.persistence.definitionPath(key.ID(), key.Version()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewProcessDefinitionError("GetByKey", key, persistence.ErrProcessDefinitionNotFound)
		}

		return nil, err
	}

	return definition, nil
}

// store writes a definition through a temporary file and a rename so readers
// never observe a partial document. Callers hold the persistence lock.
func (r *ProcessDefinitionRepository) store(definition *models.ProcessDefinition) error {
	dir := r.persistence.processDir(definition.ID)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create process definition directory: %w", err)
	}

	data, err := json.MarshalIndent(definition, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal process definition %s: %w", definition.Key(), err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write process definition %s: %w", definition.Key(), err)
	}

	err = os.Rename(tmp.Name(), r.persistence.definitionPath(definition.ID, definition.Version))
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to store process definition %s: %w", definition.Key(), err)
	}

	return nil
}

func (r *ProcessDefinitionRepository) readDir(dir string) ([]*models.ProcessDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make([]*models.ProcessDefinition, 0), nil
		}

		return nil, fmt.Errorf("failed to list process definition versions: %w", err)
	}

	definitions := make([]*models.ProcessDefinition, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		definition, err := readDefinition(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		definitions = append(definitions, definition)
	}

	return definitions, nil
}

func readDefinition(filePath string) (*models.ProcessDefinition, error) {
	body, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to read process definition %s: %w", filePath, err)
	}

	var definition models.ProcessDefinition

	err = json.Unmarshal(body, &definition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal process definition %s: %w", filePath, err)
	}

	return &definition, nil
}

func sortDefinitions(definitions []*models.ProcessDefinition) {
	slices.SortFunc(definitions, func(a, b *models.ProcessDefinition) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Version, b.Version))
	})
}
