package identity

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/kamir/goalbot/internal/domain"
	"github.com/kamir/goalbot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu    sync.Mutex
	users map[int64]*domain.ChatIdentity
	fail  error
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[int64]*domain.ChatIdentity)}
}

func (m *memRepo) GetOrCreateTgUser(_ context.Context, chatID int64, username string) (*domain.ChatIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	u, ok := m.users[chatID]
	if !ok {
		u = &domain.ChatIdentity{ChatID: chatID, Username: username}
		m.users[chatID] = u
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) SaveVerificationCode(_ context.Context, chatID int64, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[chatID].VerificationCode = code
	return nil
}

func TestResolveIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	r := NewResolver(repo, logging.Discard())

	a, err := r.Resolve(context.Background(), 10, "alice")
	require.NoError(t, err)
	b, err := r.Resolve(context.Background(), 10, "alice")
	require.NoError(t, err)

	assert.Equal(t, a.ChatID, b.ChatID)
	assert.False(t, r.IsVerified(a))
	assert.Len(t, repo.users, 1)
}

func TestEnsureVerificationCodeRotates(t *testing.T) {
	repo := newMemRepo()
	r := NewResolver(repo, logging.Discard())
	ctx := context.Background()

	id, err := r.Resolve(ctx, 10, "")
	require.NoError(t, err)

	first, err := r.EnsureVerificationCode(ctx, id)
	require.NoError(t, err)
	second, err := r.EnsureVerificationCode(ctx, id)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, second, repo.users[10].VerificationCode)
	assert.Equal(t, second, id.VerificationCode)
	assert.GreaterOrEqual(t, len(second), 20)
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_-]+$`), second)
}

func TestEnsureVerificationCodeVerified(t *testing.T) {
	r := NewResolver(newMemRepo(), logging.Discard())
	_, err := r.EnsureVerificationCode(context.Background(), &domain.ChatIdentity{ChatID: 1, UserID: 3})
	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestResolveWrapsRepositoryError(t *testing.T) {
	repo := newMemRepo()
	repo.fail = errors.New("db down")
	r := NewResolver(repo, logging.Discard())

	_, err := r.Resolve(context.Background(), 5, "")
	require.ErrorIs(t, err, repo.fail)
}
