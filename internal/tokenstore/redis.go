// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ra486/hacs-renpho-health/internal/platform/constants"
)

// RedisStore implements [Store] on top of Redis. Documents are stored
// without a TTL: the whole point of the cache is surviving restarts, and a
// stale token is detected (and replaced) by the session client itself.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed token store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

/*
Load retrieves the session document for an account.

Description: Returns ErrNotFound when the key is absent or when the stored
document predates the current schema version or fails the token/user-id
invariant, so callers fall back to a fresh login.

Parameters:
  - ctx: context.Context
  - account: Account key (configured email)

Returns:
  - *Document: The persisted session state
  - error: ErrNotFound or connectivity errors
*/
func (store *RedisStore) Load(ctx context.Context, account string) (*Document, error) {
	raw, err := store.client.Get(ctx, redisKey(account)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tokenstore_redis_load_failed: %w", err)
	}

	document := &Document{}
	if err := json.Unmarshal([]byte(raw), document); err != nil {
		return nil, fmt.Errorf("tokenstore_redis_decode_failed: %w", err)
	}

	// Discard incompatible or incomplete documents instead of seeding the
	// client with a half-session.
	if document.Version != SchemaVersion || !document.Valid() {
		return nil, ErrNotFound
	}

	return document, nil
}

/*
Save writes the session document for an account.

Parameters:
  - ctx: context.Context
  - account: Account key (configured email)
  - document: Session state; must satisfy the token/user-id invariant

Returns:
  - error: Validation or execution errors
*/
func (store *RedisStore) Save(ctx context.Context, account string, document *Document) error {
	if !document.Valid() {
		return fmt.Errorf("tokenstore: refusing to save incomplete document")
	}

	document.Version = SchemaVersion

	raw, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("tokenstore_redis_encode_failed: %w", err)
	}

	if err := store.client.Set(ctx, redisKey(account), raw, 0).Err(); err != nil {
		return fmt.Errorf("tokenstore_redis_save_failed: %w", err)
	}

	return nil
}

/*
Delete removes the session document for an account.

Parameters:
  - ctx: context.Context
  - account: Account key (configured email)

Returns:
  - error: Execution errors
*/
func (store *RedisStore) Delete(ctx context.Context, account string) error {
	if err := store.client.Del(ctx, redisKey(account)).Err(); err != nil {
		return fmt.Errorf("tokenstore_redis_delete_failed: %w", err)
	}
	return nil
}

// redisKey builds the per-account cache key.
func redisKey(account string) string {
	return constants.RedisPrefixSessionToken + account
}
