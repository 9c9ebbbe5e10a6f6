package checkpoint

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisPushChunk = 1000

// RedisStore keeps each list as a Redis list under a key prefix. Saves replace
// all three lists inside one MULTI/EXEC so readers never see a mix.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// Save replaces the stored lists atomically.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		replaceList(ctx, pipe, s.key(linksName), snap.Links)
		replaceList(ctx, pipe, s.key(processedName), snap.Processed)
		replaceList(ctx, pipe, s.key(frontierName), snap.Frontier)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func replaceList(ctx context.Context, pipe redis.Pipeliner, key string, entries []string) {
	pipe.Del(ctx, key)
	for start := 0; start < len(entries); start += redisPushChunk {
		end := min(start+redisPushChunk, len(entries))
		values := make([]any, 0, end-start)
		for _, entry := range entries[start:end] {
			values = append(values, entry)
		}
		pipe.RPush(ctx, key, values...)
	}
}

// Load reads all lists in one transaction. Missing keys load as empty lists.
func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	var frontier, processed, links *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		frontier = pipe.LRange(ctx, s.key(frontierName), 0, -1)
		processed = pipe.LRange(ctx, s.key(processedName), 0, -1)
		links = pipe.LRange(ctx, s.key(linksName), 0, -1)
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis load: %w", err)
	}
	return Snapshot{
		Frontier:  frontier.Val(),
		Processed: processed.Val(),
		Links:     links.Val(),
	}, nil
}
