package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/models"
)

// sessionDoc is the stored form. ExpiresAt backs a Firestore TTL policy;
// Sealed holds the encrypted context when a cipher is configured, in which
// case Conversations is left empty.
type sessionDoc struct {
	SessionID     string                    `firestore:"sessionId"`
	CreatedAt     time.Time                 `firestore:"createdAt"`
	UpdatedAt     time.Time                 `firestore:"updatedAt"`
	Conversations []models.ConversationTurn `firestore:"conversations"`
	ExpiresAt     time.Time                 `firestore:"expiresAt"`
	Sealed        string                    `firestore:"sealed,omitempty"`
}

type sessionFirestoreStore struct {
	client   *firestore.Client
	ttl      time.Duration
	maxTurns int
	codec    sessionCodec
	clockNow func() time.Time
}

func NewSessionFirestoreStore(client *firestore.Client, opts SessionOptions) *sessionFirestoreStore {
	return &sessionFirestoreStore{
		client:   client,
		ttl:      opts.TTL,
		maxTurns: opts.MaxTurns,
		codec:    sessionCodec{cipher: opts.Cipher},
		clockNow: time.Now,
	}
}

func (s *sessionFirestoreStore) doc(sessionID string) *firestore.DocumentRef {
	return s.client.Collection("sessions").Doc(sessionKey(sessionID))
}

func (s *sessionFirestoreStore) toDoc(ctx context.Context, sc *models.SessionContext, now time.Time) (*sessionDoc, error) {
	d := &sessionDoc{
		SessionID: sc.SessionID,
		CreatedAt: sc.CreatedAt,
		UpdatedAt: sc.UpdatedAt,
		ExpiresAt: now.Add(s.ttl),
	}
	if s.codec.cipher == nil {
		d.Conversations = sc.Conversations
		return d, nil
	}
	sealed, err := s.codec.encode(ctx, sc)
	if err != nil {
		return nil, err
	}
	d.Sealed = sealed
	return d, nil
}

// fromSnapshot returns nil for a missing or expired document.
func (s *sessionFirestoreStore) fromSnapshot(ctx context.Context, snap *firestore.DocumentSnapshot) (*models.SessionContext, error) {
	if snap == nil || !snap.Exists() {
		return nil, nil
	}
	var d sessionDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	// the TTL policy deletes lazily, so expiry is also checked on read
	if !d.ExpiresAt.IsZero() && !s.clockNow().Before(d.ExpiresAt) {
		return nil, nil
	}
	if d.Sealed != "" {
		return s.codec.decode(ctx, d.Sealed)
	}
	return &models.SessionContext{
		SessionID:     d.SessionID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		Conversations: d.Conversations,
	}, nil
}

func (s *sessionFirestoreStore) Get(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	snap, err := s.doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errs.NewNotFoundError("session not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get session", err)
	}
	sc, err := s.fromSnapshot(ctx, snap)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to parse session data", err)
	}
	if sc == nil {
		return nil, errs.NewNotFoundError("session not found")
	}
	return sc, nil
}

func (s *sessionFirestoreStore) Save(ctx context.Context, sessionID string, sc *models.SessionContext) error {
	sc.SessionID = sessionID
	sc.Trim(s.maxTurns)
	d, err := s.toDoc(ctx, sc, s.clockNow())
	if err != nil {
		return errs.NewDatabaseError("update", "failed to encode session", err)
	}
	if _, err := s.doc(sessionID).Set(ctx, d); err != nil {
		return errs.NewDatabaseError("update", "failed to save session", err)
	}
	return nil
}

// Append runs read-modify-write in a transaction; Firestore retries it on
// contention.
func (s *sessionFirestoreStore) Append(ctx context.Context, sessionID, query, response string, metadata map[string]any) error {
	ref := s.doc(sessionID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		current, err := s.fromSnapshot(ctx, snap)
		if err != nil {
			return err
		}

		now := s.clockNow().UTC()
		next := appendTurn(current, sessionID, models.ConversationTurn{
			Timestamp: now,
			Query:     query,
			Response:  response,
			Metadata:  metadata,
		}, s.maxTurns, now)

		d, err := s.toDoc(ctx, next, now)
		if err != nil {
			return err
		}
		return tx.Set(ref, d)
	}, firestore.MaxAttempts(maxAppendAttempts))
	if err != nil {
		return errs.NewDatabaseError("update", "failed to append conversation", err)
	}
	return nil
}

func (s *sessionFirestoreStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.doc(sessionID).Delete(ctx); err != nil {
		return errs.NewDatabaseError("delete", "failed to delete session", err)
	}
	return nil
}

func (s *sessionFirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection("sessions").Limit(1).Documents(ctx).GetAll()
	return err
}
