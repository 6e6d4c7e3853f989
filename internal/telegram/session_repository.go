package telegram

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"budget-meal-planner/internal/planner"
)

// SessionTypePlanning marks sessions that track the user's current plan
// and the preferences it was generated with.
const SessionTypePlanning = "planning"

// StateActive is the only state the planning flow needs today.
const StateActive = "active"

// Session is one row of conversational state for a chat user.
type Session struct {
	ID          int64
	UserID      string
	SessionType string
	State       string
	ContextData string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// SessionContextData is the structured payload stored in context_data.
// Keeping the generation preferences here lets follow-up commands such
// as day regeneration reuse them without asking the user again.
type SessionContextData struct {
	PlanID      string              `json:"plan_id,omitempty"`
	Preferences planner.Preferences `json:"preferences"`
}

// GetContextData parses the session's JSON payload.
func (s *Session) GetContextData() (SessionContextData, error) {
	var data SessionContextData
	if err := json.Unmarshal([]byte(s.ContextData), &data); err != nil {
		return SessionContextData{}, fmt.Errorf("failed to parse session context: %w", err)
	}
	return data, nil
}

// SessionRepository persists chat sessions in the telegram_sessions table.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session and returns its ID.
func (r *SessionRepository) Create(ctx context.Context, userID, sessionType, state string, data SessionContextData, ttl time.Duration) (int64, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal session context: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO telegram_sessions (user_id, session_type, state, context_data, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, sessionType, state, string(payload), now.Add(ttl), now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read session id: %w", err)
	}
	return id, nil
}

// GetActive returns the newest unexpired session for the user, or nil
// when there is none.
func (r *SessionRepository) GetActive(ctx context.Context, userID string, now time.Time) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_type, state, context_data, expires_at, created_at
		FROM telegram_sessions
		WHERE user_id = ? AND expires_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID, now.UTC())

	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.SessionType, &s.State, &s.ContextData, &s.ExpiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &s, nil
}

// Update replaces the state and context payload of a session.
func (r *SessionRepository) Update(ctx context.Context, sessionID int64, state string, data SessionContextData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session context: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE telegram_sessions SET state = ?, context_data = ? WHERE id = ?
	`, state, string(payload), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, sessionID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM telegram_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpired removes every expired session and reports how many
// rows were dropped.
func (r *SessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM telegram_sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return res.RowsAffected()
}
