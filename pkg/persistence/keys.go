package persistence

import (
	"fmt"
	"slices"

	"github.com/dukex/dataindex/pkg/models"
)

// ValidateProcessDefinitionKey rejects keys with an empty id or version.
func ValidateProcessDefinitionKey(key models.ProcessDefinitionKey) error {
	if !key.IsComplete() {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}

	return nil
}

// ValidateNodeKey rejects node keys with an empty node id or an incomplete
// process definition key.
func ValidateNodeKey(key models.NodeKey) error {
	if !key.IsComplete() {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}

	return nil
}

// ValidateProcessDefinition checks the definition key and the key of every
// node it declares. Node ids must be unique inside the definition.
func ValidateProcessDefinition(definition *models.ProcessDefinition) error {
	if definition == nil {
		return fmt.Errorf("%w: nil process definition", ErrInvalidKey)
	}

	err := ValidateProcessDefinitionKey(definition.Key())
	if err != nil {
		return err
	}

	if slices.Contains(definition.Nodes, nil) {
		return fmt.Errorf("%w: nil node in %s", ErrInvalidKey, definition.Key())
	}

	seen := make(map[models.NodeKey]struct{}, len(definition.Nodes))

	for _, key := range definition.NodeKeys() {
		err := ValidateNodeKey(key)
		if err != nil {
			return err
		}

		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: duplicate node %s", ErrInvalidKey, key)
		}

		seen[key] = struct{}{}
	}

	return nil
}
