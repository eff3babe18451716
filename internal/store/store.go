// Package store persists the conversation log: one row per session and one
// row per transcript turn, queryable for the analytics endpoints.
package store

import (
	"context"
	"time"
)

// SessionRecord is the stored metadata of one conversation.
type SessionRecord struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Language  string    `json:"language"`
	TurnCount int       `json:"turn_count"`
}

// TurnRecord is one stored transcript turn.
type TurnRecord struct {
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id"`
	Origin    string    `json:"origin"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the persistence contract for the conversation log.
type Repository interface {
	// SaveSession inserts a session row. Saving an existing ID is a no-op.
	SaveSession(ctx context.Context, rec SessionRecord) error

	// SaveTurn appends a turn row.
	SaveTurn(ctx context.Context, rec TurnRecord) error

	// RecentSessions returns up to limit sessions, newest first, with their
	// turn counts filled in.
	RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error)

	// Turns returns the stored turns of one session in append order.
	Turns(ctx context.Context, sessionID string) ([]TurnRecord, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}
