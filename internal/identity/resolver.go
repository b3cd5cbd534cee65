// Package identity resolves Telegram chats to application users and issues
// the verification codes used to link them.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kamir/goalbot/internal/domain"
)

// ErrAlreadyVerified is returned by EnsureVerificationCode for a linked chat;
// callers branch on IsVerified first.
var ErrAlreadyVerified = errors.New("identity already verified")

// Repository persists chat identities.
type Repository interface {
	GetOrCreateTgUser(ctx context.Context, chatID int64, username string) (*domain.ChatIdentity, error)
	SaveVerificationCode(ctx context.Context, chatID int64, code string) error
}

// Resolver maps chat ids to identities.
type Resolver struct {
	repo    Repository
	newCode func() string
	logger  *slog.Logger
}

// NewResolver creates a Resolver backed by repo.
func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, newCode: NewCode, logger: logger}
}

// NewCode returns a fresh 26-character base32 token (128 bits of entropy).
func NewCode() string {
	return rand.Text()
}

// Resolve returns the identity for chatID, creating an unlinked one on first contact.
func (r *Resolver) Resolve(ctx context.Context, chatID int64, username string) (*domain.ChatIdentity, error) {
	id, err := r.repo.GetOrCreateTgUser(ctx, chatID, username)
	if err != nil {
		return nil, fmt.Errorf("resolve chat %d: %w", chatID, err)
	}
	return id, nil
}

// EnsureVerificationCode issues a new code for an unverified identity,
// invalidating any earlier one.
func (r *Resolver) EnsureVerificationCode(ctx context.Context, id *domain.ChatIdentity) (string, error) {
	if r.IsVerified(id) {
		return "", ErrAlreadyVerified
	}
	code := r.newCode()
	if err := r.repo.SaveVerificationCode(ctx, id.ChatID, code); err != nil {
		return "", fmt.Errorf("store verification code for chat %d: %w", id.ChatID, err)
	}
	id.VerificationCode = code
	r.logger.Info("verification_code_issued", "chat_id", id.ChatID)
	return code, nil
}

// IsVerified reports whether the identity is linked to a user.
func (r *Resolver) IsVerified(id *domain.ChatIdentity) bool {
	return id.IsVerified()
}
