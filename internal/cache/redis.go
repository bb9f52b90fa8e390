package cache

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

var _ LocalStore = (*RedisStore)(nil)

// RedisStore is a LocalStore backed by Redis. Values live under
// notecache:<kind>:v:<id>, the owning parent under notecache:<kind>:owner:<id>
// and parent membership in the set notecache:<kind>:children:<parent>.
type RedisStore struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		Protocol: 2,
	})

	return &RedisStore{client: client}
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Get(ctx context.Context, kind Kind, id string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, valueKey(kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, unavailable(err)
	}

	return value, true, nil
}

func (r *RedisStore) Put(ctx context.Context, kind Kind, id, parentID string, value []byte) error {
	var oldParent string
	if parentID != "" {
		owner, err := r.owner(ctx, kind, id)
		if err != nil {
			return err
		}
		oldParent = owner
	}

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, valueKey(kind, id), value, 0)
		if parentID == "" {
			return nil
		}

		if oldParent != "" && oldParent != parentID {
			p.SRem(ctx, childrenKey(kind, oldParent), id)
		}
		p.Set(ctx, ownerKey(kind, id), parentID, 0)
		p.SAdd(ctx, childrenKey(kind, parentID), id)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}

	return nil
}

func (r *RedisStore) Remove(ctx context.Context, kind Kind, id string) error {
	parentID, err := r.owner(ctx, kind, id)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, valueKey(kind, id), ownerKey(kind, id))
		if parentID != "" {
			p.SRem(ctx, childrenKey(kind, parentID), id)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}

	return nil
}

func (r *RedisStore) GetBulkByParent(ctx context.Context, kind Kind, parentID string) ([][]byte, error) {
	ids, err := r.client.SMembers(ctx, childrenKey(kind, parentID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = valueKey(kind, id)
	}

	raw, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	values := make([][]byte, 0, len(raw))
	for _, v := range raw {
		// a member without a value is a stale index entry
		s, ok := v.(string)
		if !ok {
			continue
		}
		values = append(values, []byte(s))
	}

	return values, nil
}

func (r *RedisStore) PutBulk(ctx context.Context, kind Kind, parentID string, entries []Entry) error {
	existing, err := r.client.SMembers(ctx, childrenKey(kind, parentID)).Result()
	if err != nil {
		return unavailable(err)
	}

	owners := make([]*redis.StringCmd, len(entries))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, e := range entries {
			owners[i] = p.Get(ctx, ownerKey(kind, e.ID))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}

	keep := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		keep[e.ID] = struct{}{}
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range existing {
			if _, ok := keep[id]; !ok {
				p.Del(ctx, valueKey(kind, id), ownerKey(kind, id))
			}
		}
		p.Del(ctx, childrenKey(kind, parentID))

		for i, e := range entries {
			if old := owners[i].Val(); old != "" && old != parentID {
				p.SRem(ctx, childrenKey(kind, old), e.ID)
			}
			p.Set(ctx, valueKey(kind, e.ID), e.Value, 0)
			p.Set(ctx, ownerKey(kind, e.ID), parentID, 0)
			p.SAdd(ctx, childrenKey(kind, parentID), e.ID)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}

	return nil
}

func (r *RedisStore) owner(ctx context.Context, kind Kind, id string) (string, error) {
	parentID, err := r.client.Get(ctx, ownerKey(kind, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", unavailable(err)
	}

	return parentID, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
}
