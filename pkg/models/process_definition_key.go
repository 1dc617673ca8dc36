package models

import "fmt"

// ProcessDefinitionKey identifies a process definition by its id and version.
// It is an immutable value; the With methods return modified copies.
type ProcessDefinitionKey struct {
	id      string
	version string
}

var _ Identity = ProcessDefinitionKey{}

// NewProcessDefinitionKey creates the key of the definition id at version.
func NewProcessDefinitionKey(id, version string) ProcessDefinitionKey {
	return ProcessDefinitionKey{id: id, version: version}
}

func (k ProcessDefinitionKey) ID() string {
	return k.id
}

func (k ProcessDefinitionKey) Version() string {
	return k.version
}

// WithID returns a copy of k with its id replaced.
func (k ProcessDefinitionKey) WithID(id string) ProcessDefinitionKey {
	k.id = id

	return k
}

// WithVersion returns a copy of k with its version replaced.
func (k ProcessDefinitionKey) WithVersion(version string) ProcessDefinitionKey {
	k.version = version

	return k
}

// IsZero reports whether both fields are empty.
func (k ProcessDefinitionKey) IsZero() bool {
	return k.id == "" && k.version == ""
}

// IsComplete reports whether both fields are set. Only complete keys may be
// persisted.
func (k ProcessDefinitionKey) IsComplete() bool {
	return k.id != "" && k.version != ""
}

// Equal reports whether other is a ProcessDefinitionKey (or a non-nil pointer
// to one) with the same id and version. Values of any other type, including
// types embedding ProcessDefinitionKey, are never equal.
func (k ProcessDefinitionKey) Equal(other any) bool {
	switch o := other.(type) {
	case ProcessDefinitionKey:
		return k.id == o.id && k.version == o.version
	case *ProcessDefinitionKey:
		if o == nil {
			return false
		}

		return k.id == o.id && k.version == o.version
	default:
		return false
	}
}

// Hash returns a deterministic hash of the id and version.
func (k ProcessDefinitionKey) Hash() uint64 {
	return combineHash(hashString(k.id), hashString(k.version))
}

// String returns a diagnostic representation. The format is not stable and
// must not be parsed.
func (k ProcessDefinitionKey) String() string {
	return fmt.Sprintf("ProcessDefinitionKey{id='%s', version='%s'}", k.id, k.version)
}
