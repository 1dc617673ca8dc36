package persistence

import (
	"errors"
	"fmt"

	"github.com/dukex/dataindex/pkg/models"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrProcessDefinitionNotFound indicates no definition is stored for the given key.
	ErrProcessDefinitionNotFound = errors.New("process definition not found")

	// ErrNodeNotFound indicates no node is stored for the given key.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidKey indicates a key with an empty component reached the storage layer.
	ErrInvalidKey = errors.New("invalid key")
)

// ProcessDefinitionError wraps definition-related errors with additional context.
type ProcessDefinitionError struct {
	Op  string // Operation being performed (e.g., "GetByKey", "Save", "Delete")
	Key models.ProcessDefinitionKey
	Err error
}

func (e *ProcessDefinitionError) Error() string {
	return fmt.Sprintf("%s operation failed for process definition %s:%s: %v",
		e.Op, e.Key.ID(), e.Key.Version(), e.Err)
}

func (e *ProcessDefinitionError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for process definition errors.
func (e *ProcessDefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProcessDefinitionError creates a new process definition error with context.
func NewProcessDefinitionError(op string, key models.ProcessDefinitionKey, err error) *ProcessDefinitionError {
	return &ProcessDefinitionError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// NodeError wraps node-related errors with additional context.
type NodeError struct {
	Op  string
	Key models.NodeKey
	Err error
}

func (e *NodeError) Error() string {
	process := e.Key.Process()

	return fmt.Sprintf("%s operation failed for node %s in process definition %s:%s: %v",
		e.Op, e.Key.ID(), process.ID(), process.Version(), e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func (e *NodeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewNodeError creates a new node error with context.
func NewNodeError(op string, key models.NodeKey, err error) *NodeError {
	return &NodeError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// IsProcessDefinitionNotFound checks if an error indicates a definition was not found.
func IsProcessDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrProcessDefinitionNotFound)
}

// IsNodeNotFound checks if an error indicates a node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsInvalidKey checks if an error was caused by an incomplete key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}
