// Package persistencetest holds the behaviour every persistence backend must
// share. Backend test files call Run with a constructor for a fresh, empty
// store.
package persistencetest

import (
	"testing"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
	"github.com/dukex/dataindex/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty persistence layer. It registers its own cleanup.
type Factory func(t *testing.T) persistence.Persistence

// Run executes the shared repository behaviour against the backend built by newPersistence.
func Run(t *testing.T, newPersistence Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, p persistence.Persistence)
	}{
		{name: "save and get definition", fn: testSaveAndGetDefinition},
		{name: "missing definition", fn: testMissingDefinition},
		{name: "invalid keys are rejected", fn: testInvalidKeys},
		{name: "versions are distinct identities", fn: testVersions},
		{name: "get all is ordered by key", fn: testGetAllOrdered},
		{name: "save replaces the node set", fn: testSaveReplacesNodes},
		{name: "node lifecycle", fn: testNodeLifecycle},
		{name: "node of missing definition", fn: testNodeOfMissingDefinition},
		{name: "delete definition removes nodes", fn: testDeleteDefinition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newPersistence(t))
		})
	}
}

func testSaveAndGetDefinition(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	definition := testutil.CreateTestProcessDefinition()

	err := p.ProcessDefinitionRepository().Save(ctx, definition)
	require.NoError(t, err)

	stored, err := p.ProcessDefinitionRepository().GetByKey(ctx, definition.Key())
	require.NoError(t, err)

	assert.True(t, stored.Key().Equal(definition.Key()))
	assert.Equal(t, definition.Name, stored.Name)
	assert.Equal(t, definition.Description, stored.Description)
	assert.Equal(t, definition.Endpoint, stored.Endpoint)
	assert.Equal(t, definition.Roles, stored.Roles)
	assert.Equal(t, definition.Addons, stored.Addons)
	assert.Equal(t, "test-user", stored.Metadata["owner"])
	assert.False(t, stored.UpdatedAt.IsZero())
	assert.Equal(t, definition.NodeKeys(), stored.NodeKeys())

	for _, node := range definition.Nodes {
		storedNode, err := p.NodeRepository().GetByKey(ctx, node.Key(definition.Key()))
		require.NoError(t, err)
		assert.Equal(t, node.Name, storedNode.Name)
		assert.Equal(t, node.Type, storedNode.Type)
		assert.Equal(t, node.UniqueID, storedNode.UniqueID)
		assert.Equal(t, node.Metadata, storedNode.Metadata)
	}
}

func testMissingDefinition(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	key := models.NewProcessDefinitionKey("missing", "1.0")

	_, err := p.ProcessDefinitionRepository().GetByKey(ctx, key)
	assert.True(t, persistence.IsProcessDefinitionNotFound(err))

	err = p.ProcessDefinitionRepository().Delete(ctx, key)
	assert.True(t, persistence.IsProcessDefinitionNotFound(err))

	versions, err := p.ProcessDefinitionRepository().GetVersions(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, versions)

	_, err = p.NodeRepository().GetByKey(ctx, models.NewNodeKey("1", key))
	assert.True(t, persistence.IsNodeNotFound(err))
}

func testInvalidKeys(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()

	_, err := p.ProcessDefinitionRepository().GetByKey(ctx, models.NewProcessDefinitionKey("travels", ""))
	assert.True(t, persistence.IsInvalidKey(err))

	err = p.ProcessDefinitionRepository().Save(ctx, testutil.CreateTestProcessDefinition(testutil.WithVersion("")))
	assert.True(t, persistence.IsInvalidKey(err))

	_, err = p.NodeRepository().GetByKey(ctx, models.NewNodeKey("", models.NewProcessDefinitionKey("travels", "1.0")))
	assert.True(t, persistence.IsInvalidKey(err))

	err = p.NodeRepository().Delete(ctx, models.NodeKey{})
	assert.True(t, persistence.IsInvalidKey(err))
}

func testVersions(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()

	v1 := testutil.CreateTestProcessDefinition()
	v2 := testutil.CreateTestProcessDefinition(testutil.WithProcessID(v1.ID), testutil.WithVersion("2.0"))
	v2.Nodes[0].Name = "Begin"

	require.NoError(t, p.ProcessDefinitionRepository().Save(ctx, v1))
	require.NoError(t, p.ProcessDefinitionRepository().Save(ctx, v2))

	versions, err := p.ProcessDefinitionRepository().GetVersions(ctx, v1.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "1.0", versions[0].Version)
	assert.Equal(t, "2.0", versions[1].Version)

	// The same node id under two versions names two different nodes.
	first, err := p.NodeRepository().GetByKey(ctx, models.NewNodeKey("1", v1.Key()))
	require.NoError(t, err)

	second, err := p.NodeRepository().GetByKey(ctx, models.NewNodeKey("1", v2.Key()))
	require.NoError(t, err)

	assert.Equal(t, "Start", first.Name)
	assert.Equal(t, "Begin", second.Name)
}

func testGetAllOrdered(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()

	for _, key := range []models.ProcessDefinitionKey{
		models.NewProcessDefinitionKey("b", "1.0"),
		models.NewProcessDefinitionKey("a", "2.0"),
		models.NewProcessDefinitionKey("a", "1.0"),
	} {
		definition := testutil.CreateTestProcessDefinition(testutil.WithProcessID(key.ID()), testutil.WithVersion(key.Version()))
		require.NoError(t, p.ProcessDefinitionRepository().Save(ctx, definition))
	}

	all, err := p.ProcessDefinitionRepository().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, []models.ProcessDefinitionKey{
		models.NewProcessDefinitionKey("a", "1.0"),
		models.NewProcessDefinitionKey("a", "2.0"),
		models.NewProcessDefinitionKey("b", "1.0"),
	}, []models.ProcessDefinitionKey{all[0].Key(), all[1].Key(), all[2].Key()})

	assert.Len(t, all[0].Nodes, 3)
}

func testSaveReplacesNodes(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	definition := testutil.CreateTestProcessDefinition()

	require.NoError(t, p.ProcessDefinitionRepository().Save(ctx, definition))

	definition.Nodes = definition.Nodes[1:]
	definition.Name = "Renamed"
	require.NoError(t, p.ProcessDefinitionRepository().Save(ctx, definition))

	nodes, err := p.NodeRepository().GetByProcess(ctx, definition.Key())
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "2", nodes[0].ID)
	assert.Equal(t, "3", nodes[1].ID)

	_, err = p.NodeRepository().GetByKey(ctx, models.NewNodeKey("1", definition.Key()))
	assert.True(t, persistence.IsNodeNotFound(err))

	stored, err := p.ProcessDefinitionRepository().GetByKey(ctx, definition.Key())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
}

func testNodeLifecycle(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	definition := testutil.CreateTestProcessDefinition()
	key := definition.Key()

	require.NoError(t, p.ProcessDefinitionRepository().Save(ctx, definition))

	added := testutil.CreateTestNode(testutil.WithNodeID("4"), testutil.WithName("Review"),
		testutil.WithType(models.NodeTypeHumanTask))
	require.NoError(t, p.NodeRepository().Save(ctx, key, added))

	nodes, err := p.NodeRepository().GetByProcess(ctx, key)
	require.NoError(t, err)
	require.Len(t, nodes, 4)
	assert.Equal(t, "4", nodes[3].ID)

	added.Name = "Approve"
	require.NoError(t, p.NodeRepository().Save(ctx, key, added))

	stored, err := p.NodeRepository().GetByKey(ctx, added.Key(key))
	require.NoError(t, err)
	assert.Equal(t, "Approve", stored.Name)
	assert.Equal(t, models.NodeTypeHumanTask, stored.Type)

	nodes, err = p.NodeRepository().GetByProcess(ctx, key)
	require.NoError(t, err)
	assert.Len(t, nodes, 4)

	require.NoError(t, p.NodeRepository().Delete(ctx, added.Key(key)))

	_, err = p.NodeRepository().GetByKey(ctx, added.Key(key))
	assert.True(t, persistence.IsNodeNotFound(err))

	err = p.NodeRepository().Delete(ctx, added.Key(key))
	assert.True(t, persistence.IsNodeNotFound(err))

	withNodes, err := p.ProcessDefinitionRepository().GetByKey(ctx, key)
	require.NoError(t, err)
	assert.Len(t, withNodes.Nodes, 3)
}

func testNodeOfMissingDefinition(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	key := models.NewProcessDefinitionKey("missing", "1.0")

	err := p.NodeRepository().Save(ctx, key, testutil.CreateTestNode(testutil.WithNodeID("1")))
	assert.True(t, persistence.IsProcessDefinitionNotFound(err))
}

func testDeleteDefinition(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()

	v1 := testutil.CreateTestProcessDefinition()
	v2 := testutil.CreateTestProcessDefinition(testutil.WithProcessID(v1.ID), testutil.WithVersion("2.0"))

	require.NoError(t, p.ProcessDefinitionRepository().Save(ctx, v1))
	require.NoError(t, p.ProcessDefinitionRepository().Save(ctx, v2))

	require.NoError(t, p.ProcessDefinitionRepository().Delete(ctx, v1.Key()))

	_, err := p.ProcessDefinitionRepository().GetByKey(ctx, v1.Key())
	assert.True(t, persistence.IsProcessDefinitionNotFound(err))

	nodes, err := p.NodeRepository().GetByProcess(ctx, v1.Key())
	require.NoError(t, err)
	assert.Empty(t, nodes)

	_, err = p.NodeRepository().GetByKey(ctx, models.NewNodeKey("1", v1.Key()))
	assert.True(t, persistence.IsNodeNotFound(err))

	remaining, err := p.NodeRepository().GetByProcess(ctx, v2.Key())
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}
