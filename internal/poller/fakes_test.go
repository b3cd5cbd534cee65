package poller

import (
	"context"
	"fmt"
	"sync"

	"github.com/kamir/goalbot/internal/domain"
)

// verifiedIdentities treats every chat as linked to user 100+chatID.
type verifiedIdentities struct{}

func (verifiedIdentities) Resolve(_ context.Context, chatID int64, username string) (*domain.ChatIdentity, error) {
	return &domain.ChatIdentity{ChatID: chatID, Username: username, UserID: 100 + chatID}, nil
}

func (verifiedIdentities) EnsureVerificationCode(context.Context, *domain.ChatIdentity) (string, error) {
	return "", fmt.Errorf("unexpected verification request")
}

func (verifiedIdentities) IsVerified(id *domain.ChatIdentity) bool { return id.IsVerified() }

type memBackend struct {
	mu sync.Mutex
	// categories maps a user to the category ids visible to them.
	categories map[int64][]int64
	created    []string
}

func (b *memBackend) ListGoals(context.Context, int64) ([]domain.Goal, error) { return nil, nil }

func (b *memBackend) ListCategories(_ context.Context, userID int64) ([]domain.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Category
	for _, id := range b.categories[userID] {
		out = append(out, domain.Category{ID: id, Title: fmt.Sprintf("cat-%d", id)})
	}
	return out, nil
}

func (b *memBackend) CreateGoal(_ context.Context, userID, categoryID int64, title string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, fmt.Sprintf("%d/%d/%s", userID, categoryID, title))
	return int64(len(b.created)), nil
}
