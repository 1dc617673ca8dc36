package mocks

import (
	"context"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockProcessDefinitionRepository is a mock implementation of persistence.ProcessDefinitionRepository interface.
type MockProcessDefinitionRepository struct {
	mock.Mock
}

func (m *MockProcessDefinitionRepository) GetAll(ctx context.Context) ([]*models.ProcessDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ProcessDefinition), args.Error(1)
}

func (m *MockProcessDefinitionRepository) GetByKey(ctx context.Context, key models.ProcessDefinitionKey) (*models.ProcessDefinition, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ProcessDefinition), args.Error(1)
}

func (m *MockProcessDefinitionRepository) GetVersions(ctx context.Context, processID string) ([]*models.ProcessDefinition, error) {
	args := m.Called(ctx, processID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ProcessDefinition), args.Error(1)
}

func (m *MockProcessDefinitionRepository) Save(ctx context.Context, definition *models.ProcessDefinition) error {
	args := m.Called(ctx, definition)

	return args.Error(0)
}

func (m *MockProcessDefinitionRepository) Delete(ctx context.Context, key models.ProcessDefinitionKey) error {
	args := m.Called(ctx, key)

	return args.Error(0)
}

// MockNodeRepository is a mock implementation of persistence.NodeRepository interface.
type MockNodeRepository struct {
	mock.Mock
}

func (m *MockNodeRepository) GetByKey(ctx context.Context, key models.NodeKey) (*models.Node, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Node), args.Error(1)
}

func (m *MockNodeRepository) GetByProcess(ctx context.Context, process models.ProcessDefinitionKey) ([]*models.Node, error) {
	args := m.Called(ctx, process)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Node), args.Error(1)
}

func (m *MockNodeRepository) Save(ctx context.Context, process models.ProcessDefinitionKey, node *models.Node) error {
	args := m.Called(ctx, process, node)

	return args.Error(0)
}

func (m *MockNodeRepository) Delete(ctx context.Context, key models.NodeKey) error {
	args := m.Called(ctx, key)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	definitionRepo *MockProcessDefinitionRepository
	nodeRepo       *MockNodeRepository
}

// NewMockPersistence creates a new MockPersistence with all mock repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		definitionRepo: &MockProcessDefinitionRepository{},
		nodeRepo:       &MockNodeRepository{},
	}
}

// GetMockProcessDefinitionRepository returns the underlying mock definition repository for setting up expectations.
func (m *MockPersistence) GetMockProcessDefinitionRepository() *MockProcessDefinitionRepository {
	return m.definitionRepo
}

// GetMockNodeRepository returns the underlying mock node repository for setting up expectations.
func (m *MockPersistence) GetMockNodeRepository() *MockNodeRepository {
	return m.nodeRepo
}

func (m *MockPersistence) ProcessDefinitionRepository() persistence.ProcessDefinitionRepository {
	return m.definitionRepo
}

func (m *MockPersistence) NodeRepository() persistence.NodeRepository {
	return m.nodeRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
