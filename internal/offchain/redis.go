package offchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"idledger/pkg/platform/sentinel"
)

// RedisStore persists mappings in Redis. SETNX gives the one-mapping-per-id
// guarantee without a read-modify-write race.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func mappingKey(assetID string) string {
	return "offchain:mapping:" + assetID
}

func (s *RedisStore) Put(ctx context.Context, mapping Mapping) error {
	raw, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	set, err := s.client.SetNX(ctx, mappingKey(mapping.AssetID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: redis setnx: %v", sentinel.ErrUnavailable, err)
	}
	if !set {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, assetID string) (Mapping, error) {
	raw, err := s.client.Get(ctx, mappingKey(assetID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Mapping{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: redis get: %v", sentinel.ErrUnavailable, err)
	}
	var mapping Mapping
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return Mapping{}, fmt.Errorf("decode mapping: %w", err)
	}
	return mapping, nil
}
