package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/models"
	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

type sessionRedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int
	codec    sessionCodec
	clockNow func() time.Time
}

func NewSessionRedisStore(client *redis.Client, opts SessionOptions) *sessionRedisStore {
	return &sessionRedisStore{
		client:   client,
		ttl:      opts.TTL,
		maxTurns: opts.MaxTurns,
		codec:    sessionCodec{cipher: opts.Cipher},
		clockNow: time.Now,
	}
}

func (s *sessionRedisStore) Get(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	payload, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errs.NewNotFoundError("session not found")
	}
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to get session", err)
	}
	sc, err := s.codec.decode(ctx, payload)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse session data", err)
	}
	return sc, nil
}

// Save overwrites the whole context and resets the TTL.
func (s *sessionRedisStore) Save(ctx context.Context, sessionID string, sc *models.SessionContext) error {
	sc.SessionID = sessionID
	sc.Trim(s.maxTurns)
	payload, err := s.codec.encode(ctx, sc)
	if err != nil {
		return errs.NewDatabaseError("update", "failed to encode session", err)
	}
	if err := s.client.Set(ctx, sessionKey(sessionID), payload, s.ttl).Err(); err != nil {
		return errs.NewDatabaseError("update", "failed to save session", err)
	}
	return nil
}

// Append adds one turn under WATCH so a concurrent writer forces a retry
// instead of silently overwriting.
func (s *sessionRedisStore) Append(ctx context.Context, sessionID, query, response string, metadata map[string]any) error {
	log := logger.FromContext(ctx)
	key := sessionKey(sessionID)

	txf := func(tx *redis.Tx) error {
		var current *models.SessionContext
		payload, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			current, err = s.codec.decode(ctx, payload)
			if err != nil {
				return err
			}
		}

		now := s.clockNow().UTC()
		next := appendTurn(current, sessionID, models.ConversationTurn{
			Timestamp: now,
			Query:     query,
			Response:  response,
			Metadata:  metadata,
		}, s.maxTurns, now)

		encoded, err := s.codec.encode(ctx, next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return errs.NewDatabaseError("update", "failed to append conversation", err)
		}
		log.Debug("session append conflict, retrying", "session_id", sessionID, "attempt", attempt)
	}
	return errs.NewDatabaseError("update", "session append retries exhausted", redis.TxFailedErr)
}

func (s *sessionRedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return errs.NewDatabaseError("delete", "failed to delete session", err)
	}
	return nil
}

func (s *sessionRedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
