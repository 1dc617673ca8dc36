package models

import (
	"maps"
	"slices"
	"time"
)

// ProcessDefinition is a deployed version of a process, as reported by the
// runtime that hosts it.
type ProcessDefinition struct {
	ID          string         `json:"id"                    validate:"required"`
	Version     string         `json:"version"               validate:"required"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type,omitempty"`
	Endpoint    string         `json:"endpoint,omitempty"    validate:"omitempty,url"`
	Source      string         `json:"source,omitempty"`
	Roles       []string       `json:"roles,omitempty"`
	Addons      []string       `json:"addons,omitempty"`
	Annotations []string       `json:"annotations,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Nodes       []*Node        `json:"nodes,omitempty"       validate:"dive,required"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Key returns the identity of the definition.
func (d *ProcessDefinition) Key() ProcessDefinitionKey {
	return NewProcessDefinitionKey(d.ID, d.Version)
}

// NodeKeys returns the keys of every node declared by the definition, in
// declaration order.
func (d *ProcessDefinition) NodeKeys() []NodeKey {
	key := d.Key()

	keys := make([]NodeKey, 0, len(d.Nodes))
	for _, node := range d.Nodes {
		keys = append(keys, node.Key(key))
	}

	return keys
}

// Node returns the declared node with the given id.
func (d *ProcessDefinition) Node(id string) (*Node, bool) {
	for _, node := range d.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// Clone returns a deep copy of d, nodes included.
func (d *ProcessDefinition) Clone() *ProcessDefinition {
	clone := *d

	clone.Roles = slices.Clone(d.Roles)
	clone.Addons = slices.Clone(d.Addons)
	clone.Annotations = slices.Clone(d.Annotations)
	clone.Metadata = maps.Clone(d.Metadata)

	if d.Nodes != nil {
		clone.Nodes = make([]*Node, 0, len(d.Nodes))
		for _, node := range d.Nodes {
			clone.Nodes = append(clone.Nodes, node.Clone())
		}
	}

	return &clone
}
