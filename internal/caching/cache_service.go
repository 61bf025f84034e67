package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix                 = "storefront:"
	CategoryTreeKey           = keyPrefix + "category_tree"
	CategoryTreeGenerationKey = CategoryTreeKey + ":generation"
	lockPrefix                = keyPrefix + "lock:"
)

var (
	// ErrUndecodable is returned when a cached payload cannot be decoded.
	ErrUndecodable = errors.New("cached payload is not decodable")
	// ErrStaleTree is returned when the tree was invalidated after the
	// generation passed to SetCategoryTree was read.
	ErrStaleTree = errors.New("category tree was invalidated while it was built")
)

type CacheService interface {
	// Category tree caching. A miss returns (nil, nil). Every invalidation
	// bumps the generation; a tree is only stored under the generation it
	// was built from.
	GetCategoryTree(ctx context.Context) ([]*models.CategoryNode, error)
	CategoryTreeGeneration(ctx context.Context) (int64, error)
	SetCategoryTree(ctx context.Context, tree []*models.CategoryNode, ttl time.Duration, generation int64) error
	InvalidateCategoryTree(ctx context.Context) error

	// AcquireLock takes a best-effort lock shared across instances. It
	// returns false when another holder already owns the key.
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisClient builds a client from an address that may carry a redis:// scheme.
func NewRedisClient(addr, password string, db int) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsedAddr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}
	return redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})
}

func NewRedisCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetCategoryTree(ctx context.Context) ([]*models.CategoryNode, error) {
	data, err := r.client.Get(ctx, CategoryTreeKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var tree []*models.CategoryNode
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if tree == nil {
		return nil, ErrUndecodable
	}
	return tree, nil
}

func (r *redisCacheService) CategoryTreeGeneration(ctx context.Context) (int64, error) {
	generation, err := r.client.Get(ctx, CategoryTreeGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

// SetCategoryTree stores tree only while the generation is still the one the
// caller read before building it. The check and the write share a WATCH.
func (r *redisCacheService) SetCategoryTree(ctx context.Context, tree []*models.CategoryNode, ttl time.Duration, generation int64) error {
	if tree == nil {
		tree = []*models.CategoryNode{}
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, CategoryTreeGenerationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return ErrStaleTree
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, CategoryTreeKey, data, ttl)
			return nil
		})
		return err
	}, CategoryTreeGenerationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStaleTree
	}
	return err
}

func (r *redisCacheService) InvalidateCategoryTree(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, CategoryTreeGenerationKey)
		pipe.Del(ctx, CategoryTreeKey)
		return nil
	})
	return err
}

func (r *redisCacheService) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, lockPrefix+name, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}
