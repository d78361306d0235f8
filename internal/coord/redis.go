package coord

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"liquiditySniper/internal/model"
)

const (
	fieldWinner = "winnerNode"
	fieldExit   = "exit"
)

// RedisStore keeps the record in a hash. HSETNX on the winner field is the
// compare-and-swap.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(ctx context.Context, addr, password string, db int, runID string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", model.ErrConfig)
	}
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		Password:   password,
		DB:         db,
		MaxRetries: 3,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return newRedisStoreWithClient(client, runID), nil
}

func newRedisStoreWithClient(client *redis.Client, runID string) *RedisStore {
	if runID == "" {
		runID = "default"
	}
	return &RedisStore{client: client, key: "sniper:coord:" + runID}
}

func (s *RedisStore) Init(ctx context.Context) error {
	return s.client.HSetNX(ctx, s.key, fieldExit, "0").Err()
}

func (s *RedisStore) Load(ctx context.Context) (model.CoordinationRecord, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return model.CoordinationRecord{}, err
	}
	var record model.CoordinationRecord
	if winner, ok := values[fieldWinner]; ok && winner != "" {
		record.WinnerNode = &winner
	}
	record.Exit = values[fieldExit] == "1"
	return record, nil
}

func (s *RedisStore) ClaimWinner(ctx context.Context, node string) (bool, error) {
	set, err := s.client.HSetNX(ctx, s.key, fieldWinner, node).Result()
	if err != nil {
		return false, err
	}
	if set {
		return true, nil
	}
	winner, err := s.client.HGet(ctx, s.key, fieldWinner).Result()
	if err != nil {
		if err == redis.Nil {
			return false, fmt.Errorf("winner field vanished")
		}
		return false, err
	}
	return winner == node, nil
}

func (s *RedisStore) RequestExit(ctx context.Context) error {
	return s.client.HSet(ctx, s.key, fieldExit, "1").Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
