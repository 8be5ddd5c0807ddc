package subscription

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// Redis hash fields of a subscription record.
const (
	fieldEndpoint  = "endpoint"
	fieldCreatedAt = "created_at_ms"
)

// RedisRepository stores each subscription as a hash and keeps the ids in a set.
//
//	<prefix>subscription:<id>  hash {endpoint, created_at_ms}
//	<prefix>subscriptions      set of ids
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository wraps an existing client. Keys are namespaced with prefix.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	return &RedisRepository{
		client: client,
		prefix: prefix,
	}
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, options *redis.Options, prefix string) (*RedisRepository, error) {
	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable("ping redis", err)
	}

	return NewRedisRepository(client, prefix), nil
}

// Register stores endpoint under a new id.
func (r *RedisRepository) Register(ctx context.Context, endpoint []byte) (string, error) {
	if len(endpoint) == 0 {
		return "", ErrEmptyEndpoint
	}

	id := newID()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.recordKey(id),
			fieldEndpoint, endpoint,
			fieldCreatedAt, strconv.FormatInt(now().UnixMilli(), 10),
		)
		pipe.SAdd(ctx, r.indexKey(), id)

		return nil
	})
	if err != nil {
		return "", unavailable("store subscription", err)
	}

	return id, nil
}

// Exists reports whether id is stored.
func (r *RedisRepository) Exists(ctx context.Context, id string) (bool, error) {
	found, err := r.client.SIsMember(ctx, r.indexKey(), id).Result()
	if err != nil {
		return false, unavailable("query subscription", err)
	}

	return found, nil
}

// ListAll returns every stored endpoint. Ids whose hash is missing are skipped.
func (r *RedisRepository) ListAll(ctx context.Context) ([][]byte, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, unavailable("list subscription ids", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	commands := make([]*redis.StringCmd, 0, len(ids))

	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			commands = append(commands, pipe.HGet(ctx, r.recordKey(id), fieldEndpoint))
		}

		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("list subscriptions", err)
	}

	result := make([][]byte, 0, len(commands))

	for _, cmd := range commands {
		endpoint, cmdErr := cmd.Bytes()
		if errors.Is(cmdErr, redis.Nil) {
			continue
		}

		if cmdErr != nil {
			return nil, unavailable("read subscription", cmdErr)
		}

		result = append(result, endpoint)
	}

	return result, nil
}

// Close closes the redis client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) recordKey(id string) string {
	return r.prefix + "subscription:" + id
}

func (r *RedisRepository) indexKey() string {
	return r.prefix + "subscriptions"
}
