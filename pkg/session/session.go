// Package session implements a unit of work over a persistence layer. Within
// a session every identity resolves to a single in-memory instance, and
// registered or removed definitions are only written on Commit.
package session

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dukex/dataindex/pkg/identitymap"
	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
)

type operation int

const (
	operationSave operation = iota + 1
	operationDelete
)

func (o operation) String() string {
	switch o {
	case operationSave:
		return "save"
	case operationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Session tracks loaded and pending process definitions and nodes. It is
// safe for concurrent use.
type Session struct {
	persistence persistence.Persistence
	logger      *slog.Logger

	mu          sync.Mutex
	definitions *identitymap.Map[models.ProcessDefinitionKey, *models.ProcessDefinition]
	nodes       *identitymap.Map[models.NodeKey, *models.Node]
	pending     *identitymap.Map[models.ProcessDefinitionKey, operation]
}

// New creates an empty session.
func New(logger *slog.Logger, p persistence.Persistence) *Session {
	return &Session{
		persistence: p,
		logger:      logger.With("component", "session"),
		definitions: identitymap.New[models.ProcessDefinitionKey, *models.ProcessDefinition](identitymap.DefaultShards),
		nodes:       identitymap.New[models.NodeKey, *models.Node](identitymap.DefaultShards),
		pending:     identitymap.New[models.ProcessDefinitionKey, operation](identitymap.DefaultShards),
	}
}

// Definition returns the tracked definition for key, loading it on first
// access. Equal keys yield the same instance for the lifetime of the session.
func (s *Session) Definition(ctx context.Context, key models.ProcessDefinitionKey) (*models.ProcessDefinition, error) {
	err := persistence.ValidateProcessDefinitionKey(key)
	if err != nil {
		return nil, persistence.NewProcessDefinitionError("Definition", key, err)
	}

	if s.removed(key) {
		return nil, persistence.NewProcessDefinitionError("Definition", key, persistence.ErrProcessDefinitionNotFound)
	}

	if definition, ok := s.definitions.Get(key); ok {
		return definition, nil
	}

	loaded, err := s.persistence.ProcessDefinitionRepository().GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load process definition: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove may have run while the row was loading.
	if s.removed(key) {
		return nil, persistence.NewProcessDefinitionError("Definition", key, persistence.ErrProcessDefinitionNotFound)
	}

	definition, found := s.definitions.LoadOrStore(key, loaded)
	if found {
		return definition, nil
	}

	s.trackNodes(definition)

	s.logger.DebugContext(ctx, "Loaded process definition", "process", key.String(), "nodes", len(definition.Nodes))

	return definition, nil
}

// Node returns the tracked node for key, loading it on first access.
func (s *Session) Node(ctx context.Context, key models.NodeKey) (*models.Node, error) {
	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return nil, persistence.NewNodeError("Node", key, err)
	}

	if op, ok := s.pending.Get(key.Process()); ok && op == operationDelete {
		return nil, persistence.NewNodeError("Node", key, persistence.ErrNodeNotFound)
	}

	if node, ok := s.nodes.Get(key); ok {
		return node, nil
	}

	// A tracked definition is authoritative for its nodes.
	if _, ok := s.definitions.Get(key.Process()); ok {
		return nil, persistence.NewNodeError("Node", key, persistence.ErrNodeNotFound)
	}

	loaded, err := s.persistence.NodeRepository().GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load node: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove or Register may have run while the row was loading.
	if s.removed(key.Process()) {
		return nil, persistence.NewNodeError("Node", key, persistence.ErrNodeNotFound)
	}

	if node, ok := s.nodes.Get(key); ok {
		return node, nil
	}

	if _, ok := s.definitions.Get(key.Process()); ok {
		return nil, persistence.NewNodeError("Node", key, persistence.ErrNodeNotFound)
	}

	node, _ := s.nodes.LoadOrStore(key, loaded)

	return node, nil
}

func (s *Session) removed(key models.ProcessDefinitionKey) bool {
	op, ok := s.pending.Get(key)

	return ok && op == operationDelete
}

// Register tracks definition as the current state of its key and schedules
// it to be saved. Nodes previously tracked for the key are replaced.
func (s *Session) Register(definition *models.ProcessDefinition) error {
	err := persistence.ValidateProcessDefinition(definition)
	if err != nil {
		return fmt.Errorf("failed to register process definition: %w", err)
	}

	key := definition.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.untrackNodes(key)
	s.definitions.Put(key, definition)
	s.trackNodes(definition)
	s.pending.Put(key, operationSave)

	return nil
}

// Remove schedules the definition stored under key, and its nodes, for deletion.
func (s *Session) Remove(key models.ProcessDefinitionKey) error {
	err := persistence.ValidateProcessDefinitionKey(key)
	if err != nil {
		return persistence.NewProcessDefinitionError("Remove", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.untrackNodes(key)
	s.definitions.Delete(key)
	s.pending.Put(key, operationDelete)

	return nil
}

// Pending returns the number of definitions waiting for Commit.
func (s *Session) Pending() int {
	return s.pending.Len()
}

// Commit writes pending changes in key order. It stops at the first failure;
// changes not yet written stay pending. Deleting a definition that is not
// stored is not an error.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.pending.Keys()
	slices.SortFunc(keys, func(a, b models.ProcessDefinitionKey) int {
		return cmp.Or(cmp.Compare(a.ID(), b.ID()), cmp.Compare(a.Version(), b.Version()))
	})

	for _, key := range keys {
		op, _ := s.pending.Get(key)

		err := s.apply(ctx, key, op)
		if err != nil {
			return fmt.Errorf("failed to commit %s of %s: %w", op, key, err)
		}

		s.pending.Delete(key)

		s.logger.InfoContext(ctx, "Committed process definition", "process", key.String(), "operation", op.String())
	}

	return nil
}

// Rollback drops pending changes and forgets every tracked instance, so the
// next read observes the stored state.
func (s *Session) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.Clear()
	s.definitions.Clear()
	s.nodes.Clear()
}

func (s *Session) apply(ctx context.Context, key models.ProcessDefinitionKey, op operation) error {
	switch op {
	case operationSave:
		definition, ok := s.definitions.Get(key)
		if !ok {
			return persistence.NewProcessDefinitionError("Commit", key, persistence.ErrProcessDefinitionNotFound)
		}

		return s.persistence.ProcessDefinitionRepository().Save(ctx, definition)
	case operationDelete:
		err := s.persistence.ProcessDefinitionRepository().Delete(ctx, key)
		if persistence.IsProcessDefinitionNotFound(err) {
			s.logger.WarnContext(ctx, "Removed process definition was not stored", "process", key.String())

			return nil
		}

		return err
	default:
		return fmt.Errorf("unknown operation %d", op)
	}
}

// trackNodes adds the nodes of definition to the node map. Nodes already
// tracked win, and definition is rewired to point at them. Callers hold s.mu.
func (s *Session) trackNodes(definition *models.ProcessDefinition) {
	key := definition.Key()

	for i, node := range definition.Nodes {
		definition.Nodes[i], _ = s.nodes.LoadOrStore(node.Key(key), node)
	}
}

// untrackNodes forgets every tracked node of process. Callers hold s.mu.
func (s *Session) untrackNodes(process models.ProcessDefinitionKey) {
	s.nodes.Range(func(key models.NodeKey, _ *models.Node) bool {
		if key.Process().Equal(process) {
			s.nodes.Delete(key)
		}

		return true
	})
}
