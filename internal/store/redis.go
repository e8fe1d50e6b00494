package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis implements Store on a single go-redis client. Atomic batches run as
// MULTI/EXEC transactions.
type Redis struct {
	client *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedis(cfg RedisConfig) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

func (r *Redis) Ping(ctx context.Context) error {
	return errors.Wrap(r.client.Ping(ctx).Err(), "ping redis")
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) BLPop(ctx context.Context, key string) (string, error) {
	res, err := r.client.BLPop(ctx, 0, key).Result()
	if err != nil {
		return "", errors.Wrapf(err, "blpop %s", key)
	}
	if len(res) < 2 {
		return "", errors.Errorf("blpop %s returned short reply", key)
	}
	return res[1], nil
}

func (r *Redis) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return errors.Wrapf(r.client.RPush(ctx, key, args...).Err(), "rpush %s", key)
}

func (r *Redis) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := r.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "hget %s %s", key, field)
	}
	return v, nil
}

func (r *Redis) HSet(ctx context.Context, key, field, value string) error {
	return errors.Wrapf(r.client.HSet(ctx, key, field, value).Err(), "hset %s %s", key, field)
}

func (r *Redis) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return errors.Wrapf(r.client.HDel(ctx, key, fields...).Err(), "hdel %s", key)
}

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "hgetall %s", key)
	}
	return res, nil
}

func (r *Redis) HScanMatch(ctx context.Context, key, pattern string) ([]string, error) {
	var fields []string
	var cursor uint64
	for {
		pairs, next, err := r.client.HScan(ctx, key, cursor, pattern, 1000).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "hscan %s %s", key, pattern)
		}
		for i := 0; i < len(pairs); i += 2 {
			fields = append(fields, pairs[i])
		}
		if next == 0 {
			return fields, nil
		}
		cursor = next
	}
}

func (r *Redis) ZAdd(ctx context.Context, key, member string, score float64) error {
	err := r.client.ZAdd(ctx, key, redis.Z{Member: member, Score: score}).Err()
	return errors.Wrapf(err, "zadd %s", key)
}

func (r *Redis) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return errors.Wrapf(r.client.ZRem(ctx, key, args...).Err(), "zrem %s", key)
}

func (r *Redis) ZRangeByScore(ctx context.Context, key, min, max string) ([]ScoredMember, error) {
	res, err := r.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "zrangebyscore %s [%s,%s]", key, min, max)
	}
	out := make([]ScoredMember, 0, len(res))
	for _, z := range res {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, ScoredMember{Member: m, Score: z.Score})
	}
	return out, nil
}

func (r *Redis) ZScanMatch(ctx context.Context, key, pattern string) ([]string, error) {
	var members []string
	var cursor uint64
	for {
		pairs, next, err := r.client.ZScan(ctx, key, cursor, pattern, 1000).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "zscan %s %s", key, pattern)
		}
		for i := 0; i < len(pairs); i += 2 {
			members = append(members, pairs[i])
		}
		if next == 0 {
			return members, nil
		}
		cursor = next
	}
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	res, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "smembers %s", key)
	}
	return res, nil
}

func (r *Redis) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		return fn(redisTx{ctx: ctx, p: p})
	})
	return errors.Wrap(err, "exec transaction")
}

type redisTx struct {
	ctx context.Context
	p   redis.Pipeliner
}

func (t redisTx) HSet(key, field, value string) {
	t.p.HSet(t.ctx, key, field, value)
}

func (t redisTx) HDel(key string, fields ...string) {
	if len(fields) == 0 {
		return
	}
	t.p.HDel(t.ctx, key, fields...)
}

func (t redisTx) ZAdd(key, member string, score float64) {
	t.p.ZAdd(t.ctx, key, redis.Z{Member: member, Score: score})
}

func (t redisTx) ZRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	t.p.ZRem(t.ctx, key, args...)
}

func (t redisTx) RPush(key string, values ...string) {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	t.p.RPush(t.ctx, key, args...)
}
