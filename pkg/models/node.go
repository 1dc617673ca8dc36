// Package models defines the process definition and node models indexed by
// the data index, together with their identity keys.
package models

import "maps"

// Well-known node types emitted by process runtimes.
const (
	NodeTypeStart      = "StartNode"
	NodeTypeEnd        = "EndNode"
	NodeTypeAction     = "ActionNode"
	NodeTypeHumanTask  = "HumanTaskNode"
	NodeTypeSplit      = "Split"
	NodeTypeJoin       = "Join"
	NodeTypeSubProcess = "SubProcessNode"
	NodeTypeEvent      = "EventNode"
	NodeTypeBoundary   = "BoundaryEventNode"
	NodeTypeTimer      = "TimerNode"
	NodeTypeWorkItem   = "WorkItemNode"
	NodeTypeMilestone  = "MilestoneNode"
	NodeTypeComposite  = "CompositeContextNode"
)

// Node is a node declared by a process definition. Its id is only unique
// within the definition; use Key to obtain its full identity.
type Node struct {
	ID       string            `json:"id"                  validate:"required"`
	Name     string            `json:"name"`
	UniqueID string            `json:"unique_id"`
	Type     string            `json:"type"                validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Key returns the identity of n inside the given process definition.
func (n *Node) Key(process ProcessDefinitionKey) NodeKey {
	return NewNodeKey(n.ID, process)
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	clone := *n
	clone.Metadata = maps.Clone(n.Metadata)

	return &clone
}
