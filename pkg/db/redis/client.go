package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func (r *Store) ZAdd(ctx context.Context, key string, member string, score float64) error {
	return r.client.ZAdd(ctx, key, redis.Z{
		Score:  score,
		Member: member,
	}).Err()
}

// ZRem reports how many of members were present and removed.
func (r *Store) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.ZRem(ctx, key, args...).Result()
}

func (r *Store) ZCard(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

func (r *Store) ZRangeByScoreWithScores(ctx context.Context, key string, min string, max string) ([]redis.Z, error) {
	entries, err := r.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}

	return entries, nil
}
