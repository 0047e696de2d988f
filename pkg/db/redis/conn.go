package redis

import (
	"context"

	"evidence-portal/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func InitRedis(ctx context.Context, cfg config.Redis) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	log.Info("Connected to Redis successfully")
	return &Store{client: client}, nil
}

func (r *Store) Close() error {
	return r.client.Close()
}
