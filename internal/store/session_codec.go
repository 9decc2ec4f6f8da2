package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/models"
)

const sessionKeyPrefix = "session:"

// maxAppendAttempts bounds optimistic retries when concurrent writers
// touch the same session.
const maxAppendAttempts = 5

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// SessionStore is implemented by every session backend.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.SessionContext, error)
	Save(ctx context.Context, sessionID string, sc *models.SessionContext) error
	Append(ctx context.Context, sessionID, query, response string, metadata map[string]any) error
	Delete(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

// payloadCipher is satisfied by *crypto.PayloadCipher.
type payloadCipher interface {
	Seal(ctx context.Context, plaintext []byte) (string, error)
	Open(ctx context.Context, ciphertext string) ([]byte, error)
}

// SessionOptions are shared by every session backend.
type SessionOptions struct {
	TTL      time.Duration
	MaxTurns int
	// Cipher seals the serialized context when set.
	Cipher payloadCipher
}

type sessionCodec struct {
	cipher payloadCipher
}

func (c sessionCodec) encode(ctx context.Context, sc *models.SessionContext) (string, error) {
	raw, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("marshal session context: %w", err)
	}
	if c.cipher == nil {
		return string(raw), nil
	}
	return c.cipher.Seal(ctx, raw)
}

func (c sessionCodec) decode(ctx context.Context, payload string) (*models.SessionContext, error) {
	raw := []byte(payload)
	if c.cipher != nil {
		opened, err := c.cipher.Open(ctx, payload)
		if err != nil {
			return nil, err
		}
		raw = opened
	}
	var sc models.SessionContext
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("unmarshal session context: %w", err)
	}
	return &sc, nil
}

// appendTurn applies one append to sc (nil means a fresh session) and
// returns the context to write back.
func appendTurn(sc *models.SessionContext, sessionID string, turn models.ConversationTurn, maxTurns int, now time.Time) *models.SessionContext {
	if sc == nil {
		sc = &models.SessionContext{SessionID: sessionID, CreatedAt: now}
	}
	sc.Conversations = append(sc.Conversations, turn)
	sc.Trim(maxTurns)
	sc.UpdatedAt = now
	return sc
}
