package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrModelNotFound marks a load from a store holding no model yet.
var ErrModelNotFound = errors.New("no stored model")

// ModelStore persists fitted models between service restarts.
type ModelStore interface {
	Load(ctx context.Context) (*StoredModel, error)
	Save(ctx context.Context, model *StoredModel) error
}

// RedisStore keeps the serialized model under a single Redis key, shared with
// the training job that refreshes it.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store talking to the given Redis address.
func NewRedisStore(addr, key string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

// Load fetches and deserializes the stored model.
func (s *RedisStore) Load(ctx context.Context) (*StoredModel, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", s.key, err)
	}

	var stored StoredModel
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode model %q: %w", s.key, err)
	}
	if stored.Model == nil || len(stored.Features) == 0 {
		return nil, fmt.Errorf("decode model %q: missing estimator or feature list", s.key)
	}
	return &stored, nil
}

// Save serializes and writes the model. Models have no TTL; the training job
// overwrites the key on each refresh.
func (s *RedisStore) Save(ctx context.Context, model *StoredModel) error {
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode model %q: %w", s.key, err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save model %q: %w", s.key, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
