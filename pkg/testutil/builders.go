// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"fmt"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	id := uuid.New().String()

	node := &models.Node{
		ID:       id,
		Name:     "Test Node",
		UniqueID: id,
		Type:     models.NodeTypeAction,
		Metadata: map[string]string{"UniqueId": id},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithNodeID sets the node id and unique id.
func WithNodeID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
		n.UniqueID = id
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// WithType sets the node type.
func WithType(nodeType string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithMetadata sets the node metadata.
func WithMetadata(metadata map[string]string) func(*models.Node) {
	return func(n *models.Node) {
		n.Metadata = metadata
	}
}

// CreateTestProcessDefinition creates a definition with a random process id,
// version "1.0" and a start, action and end node.
func CreateTestProcessDefinition(overrides ...func(*models.ProcessDefinition)) *models.ProcessDefinition {
	processID := "process-" + uuid.New().String()

	definition := &models.ProcessDefinition{
		ID:          processID,
		Version:     "1.0",
		Name:        "Test Process",
		Description: "A process used in tests",
		Type:        "ProcessDefinition",
		Endpoint:    "http://localhost:8080/" + processID,
		Roles:       []string{"admin"},
		Addons:      []string{"process-management"},
		Metadata:    map[string]any{"owner": "test-user"},
		Nodes: []*models.Node{
			CreateTestNode(WithNodeID("1"), WithName("Start"), WithType(models.NodeTypeStart)),
			CreateTestNode(WithNodeID("2"), WithName("Work")),
			CreateTestNode(WithNodeID("3"), WithName("End"), WithType(models.NodeTypeEnd)),
		},
	}

	for _, override := range overrides {
		override(definition)
	}

	return definition
}

// WithProcessID sets the process id.
func WithProcessID(id string) func(*models.ProcessDefinition) {
	return func(d *models.ProcessDefinition) {
		d.ID = id
	}
}

// WithVersion sets the process version.
func WithVersion(version string) func(*models.ProcessDefinition) {
	return func(d *models.ProcessDefinition) {
		d.Version = version
	}
}

// WithNodes replaces the declared nodes.
func WithNodes(nodes ...*models.Node) func(*models.ProcessDefinition) {
	return func(d *models.ProcessDefinition) {
		d.Nodes = nodes
	}
}

// WithNodeCount replaces the declared nodes with count action nodes with ids
// "1".."count".
func WithNodeCount(count int) func(*models.ProcessDefinition) {
	return func(d *models.ProcessDefinition) {
		d.Nodes = make([]*models.Node, 0, count)
		for i := range count {
			d.Nodes = append(d.Nodes, CreateTestNode(WithNodeID(fmt.Sprint(i+1))))
		}
	}
}
