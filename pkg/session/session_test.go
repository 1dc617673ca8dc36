package session_test

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/dukex/dataindex/pkg/mocks"
	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
	"github.com/dukex/dataindex/pkg/session"
	"github.com/dukex/dataindex/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) (*session.Session, *mocks.MockProcessDefinitionRepository, *mocks.MockNodeRepository) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	backend := mocks.NewMockPersistence()

	t.Cleanup(func() {
		backend.GetMockProcessDefinitionRepository().AssertExpectations(t)
		backend.GetMockNodeRepository().AssertExpectations(t)
	})

	return session.New(logger, backend), backend.GetMockProcessDefinitionRepository(), backend.GetMockNodeRepository()
}

func TestSession_DefinitionIsLoadedOnce(t *testing.T) {
	t.Parallel()

	s, definitions, _ := newSession(t)
	stored := testutil.CreateTestProcessDefinition()

	definitions.On("GetByKey", mock.Anything, stored.Key()).Return(stored, nil).Once()

	first, err := s.Definition(t.Context(), stored.Key())
	require.NoError(t, err)

	second, err := s.Definition(t.Context(), models.NewProcessDefinitionKey(stored.ID, stored.Version))
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestSession_NodesOfLoadedDefinitionAreTracked(t *testing.T) {
	t.Parallel()

	s, definitions, _ := newSession(t)
	stored := testutil.CreateTestProcessDefinition()

	definitions.On("GetByKey", mock.Anything, stored.Key()).Return(stored, nil).Once()

	definition, err := s.Definition(t.Context(), stored.Key())
	require.NoError(t, err)

	node, err := s.Node(t.Context(), models.NewNodeKey("2", stored.Key()))
	require.NoError(t, err)
	assert.Same(t, definition.Nodes[1], node)

	_, err = s.Node(t.Context(), models.NewNodeKey("404", stored.Key()))
	assert.True(t, persistence.IsNodeNotFound(err))
}

func TestSession_NodeLoadedFirstIsReusedByDefinition(t *testing.T) {
	t.Parallel()

	s, definitions, nodes := newSession(t)
	stored := testutil.CreateTestProcessDefinition()
	key := models.NewNodeKey("1", stored.Key())
	loadedNode := stored.Nodes[0].Clone()

	nodes.On("GetByKey", mock.Anything, key).Return(loadedNode, nil).Once()
	definitions.On("GetByKey", mock.Anything, stored.Key()).Return(stored, nil).Once()

	node, err := s.Node(t.Context(), key)
	require.NoError(t, err)

	again, err := s.Node(t.Context(), key.WithID("1"))
	require.NoError(t, err)
	assert.Same(t, node, again)

	definition, err := s.Definition(t.Context(), stored.Key())
	require.NoError(t, err)
	assert.Same(t, node, definition.Nodes[0])
}

func TestSession_RegisterAndCommit(t *testing.T) {
	t.Parallel()

	s, definitions, _ := newSession(t)
	definition := testutil.CreateTestProcessDefinition()

	definitions.On("Save", mock.Anything, definition).Return(nil).Once()

	require.NoError(t, s.Register(definition))
	assert.Equal(t, 1, s.Pending())

	tracked, err := s.Definition(t.Context(), definition.Key())
	require.NoError(t, err)
	assert.Same(t, definition, tracked)

	node, err := s.Node(t.Context(), models.NewNodeKey("3", definition.Key()))
	require.NoError(t, err)
	assert.Same(t, definition.Nodes[2], node)

	require.NoError(t, s.Commit(t.Context()))
	assert.Zero(t, s.Pending())

	// Nothing left to write.
	require.NoError(t, s.Commit(t.Context()))
}

func TestSession_RegisterReplacesTrackedNodes(t *testing.T) {
	t.Parallel()

	s, definitions, _ := newSession(t)
	first := testutil.CreateTestProcessDefinition()
	second := first.Clone()
	second.Nodes = second.Nodes[:1]

	definitions.On("Save", mock.Anything, second).Return(nil).Once()

	require.NoError(t, s.Register(first))
	require.NoError(t, s.Register(second))
	assert.Equal(t, 1, s.Pending())

	_, err := s.Node(t.Context(), models.NewNodeKey("3", first.Key()))
	assert.True(t, persistence.IsNodeNotFound(err))

	require.NoError(t, s.Commit(t.Context()))
}

func TestSession_RemoveAndCommit(t *testing.T) {
	t.Parallel()

	s, definitions, _ := newSession(t)
	definition := testutil.CreateTestProcessDefinition()

	definitions.On("Delete", mock.Anything, definition.Key()).Return(nil).Once()

	require.NoError(t, s.Register(definition))
	require.NoError(t, s.Remove(definition.Key()))

	_, err := s.Definition(t.Context(), definition.Key())
	assert.True(t, persistence.IsProcessDefinitionNotFound(err))

	_, err = s.Node(t.Context(), models.NewNodeKey("1", definition.Key()))
	assert.True(t, persistence.IsNodeNotFound(err))

	require.NoError(t, s.Commit(t.Context()))
}

func TestSession_RemoveOfUnknownDefinitionCommits(t *testing.T) {
	t.Parallel()

	s, definitions, _ := newSession(t)
	key := models.NewProcessDefinitionKey("unknown", "1.0")

	definitions.On("Delete", mock.Anything, key).
		Return(persistence.NewProcessDefinitionError("Delete", key, persistence.ErrProcessDefinitionNotFound)).Once()

	require.NoError(t, s.Remove(key))
	require.NoError(t, s.Commit(t.Context()))
	assert.Zero(t, s.Pending())
}

func TestSession_CommitFailureKeepsRemainingChanges(t *testing.T) {
	t.Parallel()

	s, definitions, _ := newSession(t)
	a := testutil.CreateTestProcessDefinition(testutil.WithProcessID("a"))
	b := testutil.CreateTestProcessDefinition(testutil.WithProcessID("b"))
	boom := errors.New("connection reset")

	definitions.On("Save", mock.Anything, a).Return(nil).Once()
	definitions.On("Save", mock.Anything, b).Return(boom).Once()

	require.NoError(t, s.Register(b))
	require.NoError(t, s.Register(a))

	err := s.Commit(t.Context())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "save")
	assert.Contains(t, err.Error(), "id='b'")
	assert.Equal(t, 1, s.Pending())
}

func TestSession_Rollback(t *testing.T) {
	t.Parallel()

	s, definitions, _ := newSession(t)
	stored := testutil.CreateTestProcessDefinition()
	registered := stored.Clone()
	registered.Name = "Pending change"

	definitions.On("GetByKey", mock.Anything, stored.Key()).Return(stored, nil).Once()

	require.NoError(t, s.Register(registered))
	s.Rollback()
	assert.Zero(t, s.Pending())

	definition, err := s.Definition(t.Context(), stored.Key())
	require.NoError(t, err)
	assert.Same(t, stored, definition)

	require.NoError(t, s.Commit(t.Context()))
}

func TestSession_RejectsIncompleteKeys(t *testing.T) {
	t.Parallel()

	s, _, _ := newSession(t)
	ctx := t.Context()

	_, err := s.Definition(ctx, models.NewProcessDefinitionKey("travels", ""))
	assert.True(t, persistence.IsInvalidKey(err))

	_, err = s.Node(ctx, models.NewNodeKey("", models.NewProcessDefinitionKey("travels", "1.0")))
	assert.True(t, persistence.IsInvalidKey(err))

	err = s.Register(testutil.CreateTestProcessDefinition(testutil.WithProcessID("")))
	assert.True(t, persistence.IsInvalidKey(err))

	err = s.Remove(models.ProcessDefinitionKey{})
	assert.True(t, persistence.IsInvalidKey(err))

	assert.Zero(t, s.Pending())
}

func TestSession_ConcurrentLoadsShareOneInstance(t *testing.T) {
	t.Parallel()

	s, definitions, _ := newSession(t)
	key := models.NewProcessDefinitionKey("travels", "1.0")

	definitions.On("GetByKey", mock.Anything, key).
		Return(testutil.CreateTestProcessDefinition(testutil.WithProcessID("travels")), nil).Maybe()

	const goroutines = 16

	results := make([]*models.ProcessDefinition, goroutines)

	var wg sync.WaitGroup

	for i := range goroutines {
		wg.Add(1)

		go func() {
			defer wg.Done()

			definition, err := s.Definition(t.Context(), key)
			assert.NoError(t, err)

			results[i] = definition
		}()
	}

	wg.Wait()

	for _, result := range results {
		assert.Same(t, results[0], result)
	}
}

func TestSession_RemoveDuringLoadIsNotUndone(t *testing.T) {
	t.Parallel()

	s, definitions, nodes := newSession(t)
	stored := testutil.CreateTestProcessDefinition()
	key := stored.Key()
	nodeKey := models.NewNodeKey("1", key)

	definitions.On("GetByKey", mock.Anything, key).
		Run(func(mock.Arguments) { assert.NoError(t, s.Remove(key)) }).
		Return(stored, nil).Once()

	_, err := s.Definition(t.Context(), key)
	require.True(t, persistence.IsProcessDefinitionNotFound(err))

	definitions.On("Delete", mock.Anything, key).Return(nil).Once()
	require.NoError(t, s.Commit(t.Context()))

	nodes.On("GetByKey", mock.Anything, nodeKey).
		Run(func(mock.Arguments) { assert.NoError(t, s.Remove(key)) }).
		Return(stored.Nodes[0], nil).Once()

	_, err = s.Node(t.Context(), nodeKey)
	require.True(t, persistence.IsNodeNotFound(err))

	definitions.On("Delete", mock.Anything, key).Return(nil).Once()
	require.NoError(t, s.Commit(t.Context()))

	definitions.On("GetByKey", mock.Anything, key).
		Return(nil, persistence.NewProcessDefinitionError("GetByKey", key, persistence.ErrProcessDefinitionNotFound)).Once()
	nodes.On("GetByKey", mock.Anything, nodeKey).
		Return(nil, persistence.NewNodeError("GetByKey", nodeKey, persistence.ErrNodeNotFound)).Once()

	_, err = s.Definition(t.Context(), key)
	assert.True(t, persistence.IsProcessDefinitionNotFound(err))

	_, err = s.Node(t.Context(), nodeKey)
	assert.True(t, persistence.IsNodeNotFound(err))
}

func TestSession_RegisterDuringNodeLoadWins(t *testing.T) {
	t.Parallel()

	s, _, nodes := newSession(t)
	registered := testutil.CreateTestProcessDefinition(testutil.WithNodeCount(2))
	key := registered.Key()
	droppedKey := models.NewNodeKey("3", key)

	nodes.On("GetByKey", mock.Anything, droppedKey).
		Run(func(mock.Arguments) { assert.NoError(t, s.Register(registered)) }).
		Return(testutil.CreateTestNode(testutil.WithNodeID("3")), nil).Once()

	_, err := s.Node(t.Context(), droppedKey)
	assert.True(t, persistence.IsNodeNotFound(err))
}
