package models

import "time"

// SessionContext is the stored conversation for one session id.
type SessionContext struct {
	SessionID     string             `firestore:"sessionId" json:"session_id"`
	CreatedAt     time.Time          `firestore:"createdAt" json:"created_at"`
	UpdatedAt     time.Time          `firestore:"updatedAt" json:"updated_at"`
	Conversations []ConversationTurn `firestore:"conversations" json:"conversations"`
}

// ConversationTurn is immutable once appended.
type ConversationTurn struct {
	Timestamp time.Time      `firestore:"timestamp" json:"timestamp"`
	Query     string         `firestore:"query" json:"query"`
	Response  string         `firestore:"response" json:"response"`
	Metadata  map[string]any `firestore:"metadata,omitempty" json:"metadata,omitempty"`
}

// Trim drops the oldest turns so at most max remain.
func (c *SessionContext) Trim(max int) {
	if max <= 0 || len(c.Conversations) <= max {
		return
	}
	kept := make([]ConversationTurn, max)
	copy(kept, c.Conversations[len(c.Conversations)-max:])
	c.Conversations = kept
}

// Recent returns up to n of the newest turns, oldest first.
func (c *SessionContext) Recent(n int) []ConversationTurn {
	if c == nil || len(c.Conversations) == 0 {
		return nil
	}
	if n <= 0 || n >= len(c.Conversations) {
		return append([]ConversationTurn(nil), c.Conversations...)
	}
	return append([]ConversationTurn(nil), c.Conversations[len(c.Conversations)-n:]...)
}
