package models

import "fmt"

// NodeKey identifies a node within the process definition that declares it.
// The node id is only unique inside that definition, so the key carries the
// definition's own key rather than a reference to the definition itself.
//
// NodeKey is an immutable, comparable value and is safe to use as a map key
// or to share between goroutines.
type NodeKey struct {
	id      string
	process ProcessDefinitionKey
}

var _ Identity = NodeKey{}

// NewNodeKey creates the key of node id inside the given process definition.
func NewNodeKey(id string, process ProcessDefinitionKey) NodeKey {
	return NodeKey{id: id, process: process}
}

// ID returns the node id local to its process definition.
func (k NodeKey) ID() string {
	return k.id
}

// Process returns the key of the owning process definition.
func (k NodeKey) Process() ProcessDefinitionKey {
	return k.process
}

// WithID returns a copy of k identifying node id in the same definition.
// k itself is left untouched, so a key already stored in a map stays valid.
func (k NodeKey) WithID(id string) NodeKey {
	k.id = id

	return k
}

// WithProcess returns a copy of k scoped to another process definition.
func (k NodeKey) WithProcess(process ProcessDefinitionKey) NodeKey {
	k.process = process

	return k
}

// IsZero reports whether the key has neither a node id nor a process.
func (k NodeKey) IsZero() bool {
	return k.id == "" && k.process.IsZero()
}

// IsComplete reports whether the node id and both process fields are set.
func (k NodeKey) IsComplete() bool {
	return k.id != "" && k.process.IsComplete()
}

// Equal reports whether other identifies the same node: same node id and an
// equal process key. other must be a NodeKey or a non-nil *NodeKey; nil and
// every other type compare unequal.
func (k NodeKey) Equal(other any) bool {
	switch o := other.(type) {
	case NodeKey:
		return k.id == o.id && k.process.Equal(o.process)
	case *NodeKey:
		if o == nil {
			return false
		}

		return k.id == o.id && k.process.Equal(o.process)
	default:
		return false
	}
}

// Hash returns a deterministic hash of the node id and the process key.
func (k NodeKey) Hash() uint64 {
	return combineHash(hashString(k.id), k.process.Hash())
}

// String returns a diagnostic representation. The format is not stable and
// must not be parsed.
func (k NodeKey) String() string {
	return fmt.Sprintf("NodeKey{id='%s', process='%s'}", k.id, k.process)
}
