// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taibuivan/datamira/internal/platform/apperr"
	"github.com/taibuivan/datamira/internal/platform/constants"
)

// # Session Cache Implementation

// RedisSessionCache implements [SessionCache] using go-redis.
//
// Sessions are stored as JSON under the auth:session: prefix with a TTL
// matching the session's remaining lifetime, so stale entries evict
// themselves without a sweeper.
type RedisSessionCache struct {
	client *redis.Client
}

// NewSessionCache creates a Redis-backed session cache.
func NewSessionCache(client *redis.Client) *RedisSessionCache {
	return &RedisSessionCache{client: client}
}

// cachedSession is the wire form of a session in the cache. RefreshToken is
// carried here deliberately; the JSON "-" tag on [Session] only guards the
// public API surface.
type cachedSession struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `json:"ip_address"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	AccessedAt   time.Time `json:"accessed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

func sessionKey(sessionID string) string {
	return constants.RedisPrefixSession + sessionID
}

/*
Set stores the session with the given TTL.

Parameters:
  - context: context.Context
  - session: *Session
  - ttl: time.Duration

Returns:
  - error: Serialization or cache write failures
*/
func (cache *RedisSessionCache) Set(context context.Context, session *Session, ttl time.Duration) error {
	payload, err := json.Marshal(cachedSession{
		ID:           session.ID,
		UserID:       session.UserID,
		Username:     session.Username,
		UserAgent:    session.UserAgent,
		IPAddress:    session.IPAddress,
		Status:       string(session.Status),
		CreatedAt:    session.CreatedAt,
		AccessedAt:   session.AccessedAt,
		ExpiresAt:    session.ExpiresAt,
		RefreshToken: session.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("redis_session_cache_marshal_failed: %w", err)
	}

	if err := cache.client.Set(context, sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_session_cache_set_failed: %w", err)
	}

	return nil
}

/*
Get retrieves a cached session.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: Cached entity
  - error: apperr.NotFound on miss, or cache failures
*/
func (cache *RedisSessionCache) Get(context context.Context, sessionID string) (*Session, error) {
	payload, err := cache.client.Get(context, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("redis_session_cache_get_failed: %w", err)
	}

	var cached cachedSession
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, fmt.Errorf("redis_session_cache_unmarshal_failed: %w", err)
	}

	return &Session{
		ID:           cached.ID,
		UserID:       cached.UserID,
		Username:     cached.Username,
		UserAgent:    cached.UserAgent,
		IPAddress:    cached.IPAddress,
		Status:       SessionStatus(cached.Status),
		CreatedAt:    cached.CreatedAt,
		AccessedAt:   cached.AccessedAt,
		ExpiresAt:    cached.ExpiresAt,
		RefreshToken: cached.RefreshToken,
	}, nil
}

/*
Delete removes the session from the cache.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: Cache failures
*/
func (cache *RedisSessionCache) Delete(context context.Context, sessionID string) error {
	if err := cache.client.Del(context, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis_session_cache_delete_failed: %w", err)
	}
	return nil
}
