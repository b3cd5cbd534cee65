package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kamir/goalbot/internal/domain"
)

const tgUserColumns = `chat_id, COALESCE(username, ''), COALESCE(user_id, 0), COALESCE(verification_code, '')`

func scanTgUser(row *sql.Row) (*domain.ChatIdentity, error) {
	var id domain.ChatIdentity
	if err := row.Scan(&id.ChatID, &id.Username, &id.UserID, &id.VerificationCode); err != nil {
		return nil, err
	}
	return &id, nil
}

// GetOrCreateTgUser returns the identity for chatID, inserting an unlinked
// row on first contact. A changed username is refreshed.
func (s *Store) GetOrCreateTgUser(ctx context.Context, chatID int64, username string) (*domain.ChatIdentity, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tg_users (chat_id, username) VALUES (?, NULLIF(?, ''))
		ON CONFLICT(chat_id) DO UPDATE SET
			username = COALESCE(NULLIF(excluded.username, ''), tg_users.username),
			updated_at = datetime('now')
	`, chatID, username)
	if err != nil {
		return nil, fmt.Errorf("upsert tg user: %w", err)
	}
	return s.GetTgUser(ctx, chatID)
}

// GetTgUser returns the identity for chatID or ErrNotFound.
func (s *Store) GetTgUser(ctx context.Context, chatID int64) (*domain.ChatIdentity, error) {
	id, err := scanTgUser(s.db.QueryRowContext(ctx,
		`SELECT `+tgUserColumns+` FROM tg_users WHERE chat_id = ?`, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tg user %d: %w", chatID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tg user: %w", err)
	}
	return id, nil
}

// SaveVerificationCode replaces the chat's current code.
func (s *Store) SaveVerificationCode(ctx context.Context, chatID int64, code string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tg_users SET verification_code = ?, updated_at = datetime('now') WHERE chat_id = ?`, code, chatID)
	if err != nil {
		return fmt.Errorf("save verification code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("tg user %d: %w", chatID, ErrNotFound)
	}
	return nil
}

// LinkIdentity attaches userID to the chat holding code and consumes the code.
func (s *Store) LinkIdentity(ctx context.Context, code string, userID int64) (*domain.ChatIdentity, error) {
	if code == "" {
		return nil, ErrInvalidCode
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var chatID, linked int64
	err = tx.QueryRowContext(ctx,
		`SELECT chat_id, COALESCE(user_id, 0) FROM tg_users WHERE verification_code = ?`, code).Scan(&chatID, &linked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("lookup code: %w", err)
	}
	if linked != 0 {
		return nil, ErrAlreadyVerified
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tg_users SET user_id = ?, verification_code = NULL, updated_at = datetime('now')
		WHERE chat_id = ?
	`, userID, chatID); err != nil {
		return nil, fmt.Errorf("link tg user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetTgUser(ctx, chatID)
}
