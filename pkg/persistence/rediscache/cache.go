// Package rediscache decorates a persistence layer with a redis read-through
// cache. Definitions are cached as one string per (id, version); nodes are
// cached as fields of one redis hash per owning definition.
//
// Every (id, version) has a generation counter that is part of its cache key
// names. Writes bump the generation, so a reader that loaded a row before the
// write can only store it under a generation nobody reads anymore.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is used when a non-positive TTL is configured.
	DefaultTTL = 10 * time.Minute

	keyPrefix = "dataindex"
)

// Persistence wraps another persistence layer and caches key lookups in redis.
type Persistence struct {
	next           persistence.Persistence
	client         redis.UniversalClient
	logger         *slog.Logger
	ttl            time.Duration
	definitionRepo *ProcessDefinitionRepository
	nodeRepo       *NodeRepository
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence connects to the redis server at redisURL and wraps next.
func NewPersistence(ctx context.Context, logger *slog.Logger, next persistence.Persistence, redisURL string, ttl time.Duration) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cache URL: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return New(logger, next, client, ttl), nil
}

// New wraps next with a cache backed by an existing client.
func New(logger *slog.Logger, next persistence.Persistence, client redis.UniversalClient, ttl time.Duration) *Persistence {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	p := &Persistence{
		next:   next,
		client: client,
		logger: logger,
		ttl:    ttl,
	}
	p.definitionRepo = &ProcessDefinitionRepository{cache: p, next: next.ProcessDefinitionRepository()}
	p.nodeRepo = &NodeRepository{cache: p, next: next.NodeRepository()}

	return p
}

func (p *Persistence) ProcessDefinitionRepository() persistence.ProcessDefinitionRepository {
	return p.definitionRepo
}

func (p *Persistence) NodeRepository() persistence.NodeRepository {
	return p.nodeRepo
}

// HealthCheck checks both redis and the wrapped layer.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return p.next.HealthCheck(ctx)
}

// Close closes the redis client and the wrapped layer.
func (p *Persistence) Close(ctx context.Context) error {
	return errors.Join(p.client.Close(), p.next.Close(ctx))
}

// invalidate bumps the generation of process, then drops the entries of the
// previous generation.
func (p *Persistence) invalidate(ctx context.Context, process models.ProcessDefinitionKey) error {
	generation, err := p.client.Incr(ctx, generationKey(process)).Result()
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to invalidate cache", "process", process.String(), "error", err)

		return fmt.Errorf("failed to invalidate cache for %s: %w", process, err)
	}

	err = p.client.Del(ctx, definitionKey(process, generation-1), nodesKey(process, generation-1)).Err()
	if err != nil {
		p.logger.WarnContext(ctx, "failed to drop stale cache entries", "process", process.String(), "error", err)
	}

	return nil
}

// generation returns the current generation of process. A missing counter
// is generation 0.
func (p *Persistence) generation(ctx context.Context, process models.ProcessDefinitionKey) (int64, error) {
	generation, err := p.client.Get(ctx, generationKey(process)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return generation, err
}

func processSegment(process models.ProcessDefinitionKey) string {
	return url.QueryEscape(process.ID()) + ":" + url.QueryEscape(process.Version())
}

func generationKey(process models.ProcessDefinitionKey) string {
	return fmt.Sprintf("%s:generation:%s", keyPrefix, processSegment(process))
}

func definitionKey(process models.ProcessDefinitionKey, generation int64) string {
	return fmt.Sprintf("%s:definition:%s:%d", keyPrefix, processSegment(process), generation)
}

func nodesKey(process models.ProcessDefinitionKey, generation int64) string {
	return fmt.Sprintf("%s:nodes:%s:%d", keyPrefix, processSegment(process), generation)
}

// ProcessDefinitionRepository caches GetByKey; other reads go straight to
// the wrapped repository.
type ProcessDefinitionRepository struct {
	cache *Persistence
	next  persistence.ProcessDefinitionRepository
}

func (r *ProcessDefinitionRepository) GetAll(ctx context.Context) ([]*models.ProcessDefinition, error) {
	return r.next.GetAll(ctx)
}

func (r *ProcessDefinitionRepository) GetVersions(ctx context.Context, processID string) ([]*models.ProcessDefinition, error) {
	return r.next.GetVersions(ctx, processID)
}

func (r *ProcessDefinitionRepository) GetByKey(ctx context.Context, key models.ProcessDefinitionKey) (*models.ProcessDefinition, error) {
	err := persistence.ValidateProcessDefinitionKey(key)
	if err != nil {
		return nil, persistence.NewProcessDefinitionError("GetByKey", key, err)
	}

	generation, err := r.cache.generation(ctx, key)
	if err != nil {
		r.cache.logger.WarnContext(ctx, "cache read failed", "process", key.String(), "error", err)

		return r.next.GetByKey(ctx, key)
	}

	cacheKey := definitionKey(key, generation)

	data, err := r.cache.client.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var definition models.ProcessDefinition

		err = json.Unmarshal(data, &definition)
		if err == nil {
			return &definition, nil
		}
	}

	if err != nil && !errors.Is(err, redis.Nil) {
		r.cache.logger.WarnContext(ctx, "cache read failed", "process", key.String(), "error", err)
	}

	definition, err := r.next.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal process definition: %w", err)
	}

	err = r.cache.client.Set(ctx, cacheKey, data, r.cache.ttl).Err()
	if err != nil {
		r.cache.logger.WarnContext(ctx, "cache write failed", "process", key.String(), "error", err)
	}

	return definition, nil
}

func (r *ProcessDefinitionRepository) Save(ctx context.Context, definition *models.ProcessDefinition) error {
	err := r.next.Save(ctx, definition)
	if err != nil {
		return err
	}

	return r.cache.invalidate(ctx, definition.Key())
}

func (r *ProcessDefinitionRepository) Delete(ctx context.Context, key models.ProcessDefinitionKey) error {
	err := r.next.Delete(ctx, key)
	if err != nil {
		return err
	}

	return r.cache.invalidate(ctx, key)
}

// NodeRepository caches GetByKey in the owning definition's hash.
type NodeRepository struct {
	cache *Persistence
	next  persistence.NodeRepository
}

func (nr *NodeRepository) GetByKey(ctx context.Context, key models.NodeKey) (*models.Node, error) {
	err := persistence.ValidateNodeKey(key)
	if err != nil {
		return nil, persistence.NewNodeError("GetByKey", key, err)
	}

	generation, err := nr.cache.generation(ctx, key.Process())
	if err != nil {
		nr.cache.logger.WarnContext(ctx, "cache read failed", "node", key.String(), "error", err)

		return nr.next.GetByKey(ctx, key)
	}

	hash := nodesKey(key.Process(), generation)

	data, err := nr.cache.client.HGet(ctx, hash, key.ID()).Bytes()
	if err == nil {
		var node models.Node

		err = json.Unmarshal(data, &node)
		if err == nil {
			return &node, nil
		}
	}

	if err != nil && !errors.Is(err, redis.Nil) {
		nr.cache.logger.WarnContext(ctx, "cache read failed", "node", key.String(), "error", err)
	}

	node, err := nr.next.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node: %w", err)
	}

	_, err = nr.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hash, key.ID(), data)
		pipe.Expire(ctx, hash, nr.cache.ttl)

		return nil
	})
	if err != nil {
		nr.cache.logger.WarnContext(ctx, "cache write failed", "node", key.String(), "error", err)
	}

	return node, nil
}

func (nr *NodeRepository) GetByProcess(ctx context.Context, process models.ProcessDefinitionKey) ([]*models.Node, error) {
	return nr.next.GetByProcess(ctx, process)
}

func (nr *NodeRepository) Save(ctx context.Context, process models.ProcessDefinitionKey, node *models.Node) error {
	err := nr.next.Save(ctx, process, node)
	if err != nil {
		return err
	}

	return nr.cache.invalidate(ctx, process)
}

func (nr *NodeRepository) Delete(ctx context.Context, key models.NodeKey) error {
	err := nr.next.Delete(ctx, key)
	if err != nil {
		return err
	}

	return nr.cache.invalidate(ctx, key.Process())
}
