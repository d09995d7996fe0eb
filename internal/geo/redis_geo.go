package geo

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/AuraReaper/voom/internal/models"
)

// RedisIndex implements Index on Redis sets, one set per geohash cell plus a
// reverse key per actor so membership moves atomically between cells. It lets
// the websocket server and the Kafka location consumer share one index.
type RedisIndex struct {
	client    *redis.Client
	precision uint
}

func NewRedisIndex(addr, password string, precision uint) *RedisIndex {
	if precision == 0 {
		precision = DefaultPrecision
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, precision: precision}
}

// NewRedisIndexFromClient wraps an existing client, used by the consumer.
func NewRedisIndexFromClient(c *redis.Client, precision uint) *RedisIndex {
	if precision == 0 {
		precision = DefaultPrecision
	}
	return &RedisIndex{client: c, precision: precision}
}

func (r *RedisIndex) Upsert(ctx context.Context, actorID string, c models.Coordinate) (string, error) {
	cell := Encode(c, r.precision)
	prev, err := r.client.GetSet(ctx, actorKey(actorID), cell).Result()
	if err != nil && err != redis.Nil {
		return "", err
	}
	pipe := r.client.TxPipeline()
	if prev != "" && prev != cell {
		pipe.SRem(ctx, cellKey(prev), actorID)
	}
	pipe.SAdd(ctx, cellKey(cell), actorID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return cell, nil
}

func (r *RedisIndex) Query(ctx context.Context, cells []string) ([]string, error) {
	keys := make([]string, len(cells))
	for i, cell := range cells {
		keys[i] = cellKey(cell)
	}
	return r.client.SUnion(ctx, keys...).Result()
}

func (r *RedisIndex) Remove(ctx context.Context, actorID string) error {
	cell, err := r.client.GetDel(ctx, actorKey(actorID)).Result()
	if err == redis.Nil || cell == "" {
		return nil
	}
	if err != nil {
		return err
	}
	return r.client.SRem(ctx, cellKey(cell), actorID).Err()
}

func (r *RedisIndex) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisIndex) Close() error { return r.client.Close() }

func cellKey(cell string) string { return "geo:cell:" + cell }

func actorKey(id string) string { return "geo:actor:" + id }
